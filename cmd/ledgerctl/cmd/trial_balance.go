package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
)

func newTrialBalanceCmd(opts *rootOptions) *cobra.Command {
	var asOf string
	tb := &cobra.Command{
		Use:   "trial-balance",
		Short: "Print the trial balance",
		Long: `Print every account with a balance as of --as-of (today by default),
grouped by account type. Exits non-zero when the columns disagree.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDay(asOf)
			if err != nil {
				return err
			}
			return opts.withRuntime(cmd.Context(), func(rt *app.Runtime) error {
				report, err := rt.Ledger.Balances.TrialBalance(cmd.Context(), day)
				if err != nil {
					return err
				}
				if err := printTrialBalance(cmd.OutOrStdout(), report); err != nil {
					return err
				}
				if !report.IsBalanced() {
					return fmt.Errorf("trial balance out of balance by %s", report.Difference())
				}
				return nil
			})
		},
	}
	tb.Flags().StringVar(&asOf, "as-of", "", "as-of date YYYY-MM-DD (default: today)")
	return tb
}

var accountTypeOrder = []accounts.AccountType{
	accounts.AccountTypeAsset,
	accounts.AccountTypeLiability,
	accounts.AccountTypeEquity,
	accounts.AccountTypeIncome,
	accounts.AccountTypeExpense,
}

func printTrialBalance(w io.Writer, tb balances.TrialBalance) error {
	title := cases.Title(language.English)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Trial balance as of %s\t\t\t\n", tb.AsOf.Format(time.DateOnly))
	for _, t := range accountTypeOrder {
		var rows []balances.TrialBalanceRow
		for _, row := range tb.Rows {
			if row.Account.Type == t {
				rows = append(rows, row)
			}
		}
		if len(rows) == 0 {
			continue
		}
		fmt.Fprintf(tw, "%s\t\t\t\n", title.String(string(t)))
		for _, row := range rows {
			fmt.Fprintf(tw, "  %s %s\t%s\t%s\t\n", row.Account.Code, row.Account.Name, amount(row.Debit), amount(row.Credit))
		}
	}
	fmt.Fprintf(tw, "Total\t%s\t%s\t\n", tb.TotalDebit.StringFixed(2), tb.TotalCredit.StringFixed(2))
	return tw.Flush()
}

func amount(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.StringFixed(2)
}
