package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/fiscalyears"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
)

func newFiscalYearCmd(opts *rootOptions) *cobra.Command {
	group := &cobra.Command{
		Use:     "fiscal-year",
		Aliases: []string{"fy"},
		Short:   "Inspect and close fiscal years",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List fiscal years",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRuntime(cmd.Context(), func(rt *app.Runtime) error {
				years, err := rt.Ledger.FiscalYears.List(cmd.Context())
				if err != nil {
					return err
				}
				for _, fy := range years {
					status := "open"
					if fy.IsClosed {
						status = "closed"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s..%s\t%s\n", fy.ID, fy.Name, fy.StartDate.Format(time.DateOnly), fy.EndDate.Format(time.DateOnly), status)
				}
				return nil
			})
		},
	}

	var preview bool
	closeCmd := &cobra.Command{
		Use:   "close <id>",
		Short: "Close a fiscal year into retained earnings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid fiscal year id %q", args[0])
			}
			out := cmd.OutOrStdout()
			return opts.withRuntime(cmd.Context(), func(rt *app.Runtime) error {
				if preview {
					p, err := rt.Ledger.FiscalYears.PreviewClose(cmd.Context(), id)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s: revenue %s, expenses %s, net %s\n", p.FiscalYear.Name, p.Revenue.StringFixed(2), p.Expenses.StringFixed(2), p.NetIncome.StringFixed(2))
					return nil
				}
				res, err := rt.Ledger.FiscalYears.Close(cmd.Context(), fiscalyears.CloseInput{FiscalYearID: id, ActorID: opts.actorID})
				if err != nil {
					return err
				}
				if res.ClosingEntry == nil {
					fmt.Fprintf(out, "closed %s with no income or expense activity\n", res.FiscalYear.Name)
					return nil
				}
				fmt.Fprintf(out, "closed %s, net income %s posted as %s\n", res.FiscalYear.Name, res.NetIncome.StringFixed(2), res.ClosingEntry.Number)
				return nil
			})
		},
	}
	closeCmd.Flags().BoolVar(&preview, "preview", false, "show the closing totals without posting")

	group.AddCommand(list, closeCmd)
	return group
}
