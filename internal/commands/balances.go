package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GMosna/ContabilApp/internal/cli"
	"github.com/GMosna/ContabilApp/internal/services"
)

func newBalancesCommand(open Opener) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "balances",
		Short: "Show account balances, including changes still queued offline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(ctx context.Context, app *cli.App) error {
				d, err := app.Finance.Dashboard(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(d)
				}
				return printBalances(cmd.OutOrStdout(), d, app.Config.Currency)
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the dashboard as JSON")

	return cmd
}

func printBalances(out io.Writer, d services.Dashboard, currency string) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ACCOUNT\tBANK\tBALANCE\tCONFIRMED")
	for _, a := range d.Accounts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.Name, a.BankLabel, a.Balance.Format(currency), a.Confirmed.Format(currency))
	}
	fmt.Fprintf(tw, "TOTAL\t\t%s\t\n", d.TotalBalance.Format(currency))
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nIncome %s, expenses %s, net %s\n",
		d.Totals.Income.Format(currency),
		d.Totals.Expense.Format(currency),
		d.Totals.Net.Format(currency))
	if d.Pending > 0 {
		fmt.Fprintf(out, "%d change(s) waiting to be sent\n", d.Pending)
	}
	if d.Stale {
		fmt.Fprintln(out, "Backend unreachable: showing the last saved data")
	}
	return nil
}
