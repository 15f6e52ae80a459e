package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/GMosna/ContabilApp/internal/cli"
	"github.com/GMosna/ContabilApp/internal/core"
	"github.com/GMosna/ContabilApp/internal/ledger"
)

func newReportCommand(open Opener) *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize one month by category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := parseMonth(month); err != nil {
				return err
			}
			return withApp(cmd, open, func(ctx context.Context, app *cli.App) error {
				list, err := app.Finance.Transactions(ctx, ledger.TransactionFilter{Month: month})
				if err != nil {
					return err
				}
				return printReport(cmd.OutOrStdout(), month, list.Transactions, list.Categories, app.Config.Currency)
			})
		},
	}

	cmd.Flags().StringVar(&month, "month", time.Now().Format("2006-01"), "month as YYYY-MM")

	return cmd
}

func printReport(out io.Writer, month string, txs []core.Transaction, categories []core.Category, currency string) error {
	totals := ledger.Totals(txs)
	fmt.Fprintf(out, "%s: %d transaction(s)\n", month, len(txs))

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, kind := range []core.Kind{core.Income, core.Expense} {
		rows := ledger.NameCategories(ledger.ByCategory(txs, kind), categories)
		if len(rows) == 0 {
			continue
		}
		fmt.Fprintf(tw, "\n%s\t\n", kind.Label())
		for _, r := range rows {
			fmt.Fprintf(tw, "  %s\t%s\n", r.Name, r.Amount.Format(currency))
		}
	}
	fmt.Fprintf(tw, "\nNet\t%s\n", totals.Net.Format(currency))
	return tw.Flush()
}

// parseMonth reads "YYYY-MM".
func parseMonth(s string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q: want YYYY-MM", s)
	}
	return t.Year(), t.Month(), nil
}
