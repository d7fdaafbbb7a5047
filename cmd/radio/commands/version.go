package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NicolasHaas/radiolink/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// Skips settings and logging setup.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "radio %s\n", version.Full())
		},
	}
}
