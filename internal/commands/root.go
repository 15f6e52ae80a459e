// Package commands implements contabilctl, the operator command line: it
// reads balances and reports, inspects the offline queue and the export
// sheet, using the same configuration as the server.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/GMosna/ContabilApp/internal/buildinfo"
	"github.com/GMosna/ContabilApp/internal/cli"
	"github.com/GMosna/ContabilApp/internal/config"
	"github.com/GMosna/ContabilApp/internal/log"
)

// Opener builds the application a command works on.
type Opener func(ctx context.Context) (*cli.App, error)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	return newRootCommand(openFromEnv)
}

func newRootCommand(open Opener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "contabilctl",
		Short:   "Inspect ContabilApp balances, reports and the offline queue",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newLoginCommand(open),
		newLogoutCommand(open),
		newBalancesCommand(open),
		newReportCommand(open),
		newOutboxCommand(open),
		newExportCommand(open),
	)

	return rootCmd
}

// openFromEnv loads .env, the config file and the environment like the
// server does. Logs go to stderr so they never mix with command output.
func openFromEnv(ctx context.Context) (*cli.App, error) {
	cli.LoadEnvFile()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := log.New(log.Config{
		Level:     slog.LevelWarn,
		Format:    cfg.LogFormat,
		Component: log.ComponentApp,
		Output:    os.Stderr,
	})
	log.SetDefault(logger)
	return cli.BuildApp(ctx, logger, cfg)
}

// withApp opens the application for the duration of run.
func withApp(cmd *cobra.Command, open Opener, run func(ctx context.Context, app *cli.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := open(ctx)
	if err != nil {
		return fmt.Errorf("opening application: %w", err)
	}
	defer app.Close()
	return run(ctx, app)
}
