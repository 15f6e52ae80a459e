package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GMosna/ContabilApp/internal/cli"
)

// passwordEnv lets scripts log in without the password on the command line.
const passwordEnv = "CONTABIL_PASSWORD"

func newLoginCommand(open Opener) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and keep the session for the server and worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv(passwordEnv)
			}
			if password == "" {
				return errors.New("password required: use --password or " + passwordEnv)
			}
			return withApp(cmd, open, func(ctx context.Context, app *cli.App) error {
				sess, err := app.Finance.Login(ctx, email, password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s <%s>\n", sess.User.Name, sess.User.Email)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account e-mail (required)")
	_ = cmd.MarkFlagRequired("email")
	cmd.Flags().StringVar(&password, "password", "", "account password (default $"+passwordEnv+")")

	return cmd
}

func newLogoutCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session and cached data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(ctx context.Context, app *cli.App) error {
				if err := app.Finance.Logout(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return nil
			})
		},
	}
}
