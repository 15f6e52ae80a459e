package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GMosna/ContabilApp/internal/cli"
)

func newOutboxCommand(open Opener) *cobra.Command {
	outboxCmd := &cobra.Command{
		Use:   "outbox",
		Short: "Offline queue operations",
	}
	outboxCmd.AddCommand(
		newOutboxStatsCommand(open),
		newOutboxRetryCommand(open),
		newOutboxReplayCommand(open),
	)
	return outboxCmd
}

func newOutboxStatsCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count queued changes by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(ctx context.Context, app *cli.App) error {
				stats, err := app.Outbox.Stats(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pending=%d processing=%d done=%d failed=%d\n",
					stats.Pending, stats.Processing, stats.Done, stats.Failed)
				return nil
			})
		},
	}
}

func newOutboxRetryCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Put failed changes back in the queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(ctx context.Context, app *cli.App) error {
				n, err := app.Outbox.RetryFailed(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d change(s) requeued\n", n)
				return nil
			})
		},
	}
}

func newOutboxReplayCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Send one batch of queued changes to the backend now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(ctx context.Context, app *cli.App) error {
				n := app.Outbox.ProcessBatch(ctx)
				fmt.Fprintf(cmd.OutOrStdout(), "%d change(s) replayed\n", n)
				return nil
			})
		},
	}
}
