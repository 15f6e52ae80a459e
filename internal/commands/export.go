package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/GMosna/ContabilApp/internal/cli"
)

func newExportCommand(open Opener) *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "List the transactions exported to the sheet for a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			year, m, err := parseMonth(month)
			if err != nil {
				return err
			}
			return withApp(cmd, open, func(ctx context.Context, app *cli.App) error {
				rows, err := app.Backend.Exporter.ListExported(ctx, year, int(m))
				if err != nil {
					return err
				}
				if len(rows) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "Nothing exported for %s\n", month)
					return nil
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "DATE\tDESCRIPTION\tTYPE\tCATEGORY\tACCOUNT\tAMOUNT\tID")
				for _, r := range rows {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
						r.Date, r.Description, r.Kind.Label(), r.Category, r.Account,
						r.Amount.Format(app.Config.Currency), r.TransactionID)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&month, "month", time.Now().Format("2006-01"), "month as YYYY-MM")

	return cmd
}
