package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/NicolasHaas/radiolink/pkg/model"
)

// readLine prompts on out and reads one trimmed line from in. A final
// line without a newline is accepted.
func readLine(in *bufio.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func newLoginCmd(o *options) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the access credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			in := bufio.NewReader(cmd.InOrStdin())
			if username == "" {
				if username, err = readLine(in, cmd.OutOrStdout(), "Username: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = readLine(in, cmd.OutOrStdout(), "Password: "); err != nil {
					return err
				}
			}

			rt, err := openRuntime(o)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			raw, err := rt.api.Login(ctx, username, password)
			if err != nil {
				return err
			}
			if err := rt.guard.SetCredential(ctx, raw); err != nil {
				return err
			}
			if id := rt.guard.Identity(); id != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", id.Username)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Signed in")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username (prompted if empty)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted if empty)")
	return cmd
}

func newRegisterCmd(o *options) *cobra.Command {
	var reg model.Registration

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if reg.Password == "" {
				pw, err := readLine(bufio.NewReader(cmd.InOrStdin()), cmd.OutOrStdout(), "Password: ")
				if err != nil {
					return err
				}
				reg.Password = pw
			}
			if errs := reg.Validate(); errs != nil {
				return fieldErrors(errs)
			}

			rt, err := openRuntime(o)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.api.Register(cmd.Context(), reg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account %s created, run 'radio login' to sign in\n", reg.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&reg.Username, "username", "u", "", "username")
	cmd.Flags().StringVar(&reg.Email, "email", "", "email address (optional)")
	cmd.Flags().StringVarP(&reg.Password, "password", "p", "", "password (prompted if empty)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func fieldErrors(errs map[string]error) error {
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	joined := make([]error, 0, len(fields))
	for _, f := range fields {
		joined = append(joined, fmt.Errorf("%s: %w", f, errs[f]))
	}
	return errors.Join(joined...)
}

func newLogoutCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(o)
			if err != nil {
				return err
			}
			defer rt.Close()

			rt.guard.Logout()
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(o)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.signedIn(cmd.Context()); err != nil {
				return err
			}
			id := rt.guard.Identity()
			if id == nil {
				return errors.New("signed in, but the profile could not be loaded")
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "username: %s\n", id.Username)
			if id.Email != "" {
				fmt.Fprintf(out, "email:    %s\n", id.Email)
			}
			fmt.Fprintf(out, "role:     %s\n", id.Role())
			return nil
		},
	}
}
