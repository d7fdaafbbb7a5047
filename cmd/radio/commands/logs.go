package commands

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/NicolasHaas/radiolink/pkg/api"
	"github.com/NicolasHaas/radiolink/pkg/auth"
	"github.com/NicolasHaas/radiolink/pkg/model"
)

func newLogsCmd(o *options) *cobra.Command {
	var page int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the room join log (admin only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(o)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			if err := rt.signedIn(ctx); err != nil {
				return err
			}
			if rt.guard.Admin() != auth.Allow {
				return errors.New("the join log is only available to admins")
			}

			bearer, _ := rt.guard.Credential()
			logs, err := rt.api.JoinLogs(ctx, bearer, page)
			if errors.Is(err, api.ErrUnauthorized) {
				rt.guard.Invalidate()
				return errors.New("credential rejected, run 'radio login'")
			}
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "USER\tFREQUENCY\tJOINED")
			for _, l := range logs.Results {
				fmt.Fprintf(w, "%s\t%s\t%s\n", l.Username, model.FormatFrequency(l.Frequency), l.JoinedAt.Local().Format("2006-01-02 15:04:05"))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if logs.Next != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "\n%d joins total, more with --page %d\n", logs.Count, page+1)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	return cmd
}
