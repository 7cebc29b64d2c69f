package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/recurring"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
)

func newRecurringCmd(opts *rootOptions) *cobra.Command {
	group := &cobra.Command{
		Use:   "recurring",
		Short: "Run recurring journal templates",
	}

	var (
		date   string
		dryRun bool
	)
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Generate every recurring entry due on a day",
		Long: `Generate posts one occurrence for every active template due on --date
(today in UTC by default). With --dry-run the due templates are listed and
nothing is written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDay(date)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return opts.withRuntime(cmd.Context(), func(rt *app.Runtime) error {
				if dryRun {
					due, err := rt.Ledger.Recurring.PreviewDue(cmd.Context(), day)
					if err != nil {
						return err
					}
					for _, p := range due {
						fmt.Fprintf(out, "due  #%d %-30s %s  next %s\n", p.TemplateID, p.Name, p.Amount.StringFixed(2), p.NextRunDate.Format(time.DateOnly))
					}
					fmt.Fprintf(out, "%d occurrence(s) due on %s\n", len(due), day.Format(time.DateOnly))
					return nil
				}

				results, err := rt.Ledger.Recurring.GenerateDue(cmd.Context(), day)
				if errors.Is(err, recurring.ErrRunInProgress) {
					fmt.Fprintln(out, "another recurring pass is running, nothing done")
					return nil
				}
				if err != nil {
					return err
				}
				for _, res := range results {
					if res.Err != nil {
						fmt.Fprintf(out, "fail #%d %-30s %v\n", res.TemplateID, res.Name, res.Err)
						continue
					}
					fmt.Fprintf(out, "ok   #%d %-30s %s\n", res.TemplateID, res.Name, res.Entry.Number)
				}
				generated, failed := recurring.Summarize(results)
				fmt.Fprintf(out, "generated %d, failed %d\n", generated, failed)
				if failed > 0 {
					return fmt.Errorf("%d recurring occurrence(s) failed", failed)
				}
				return nil
			})
		},
	}
	generate.Flags().StringVar(&date, "date", "", "run date YYYY-MM-DD (default: today)")
	generate.Flags().BoolVar(&dryRun, "dry-run", false, "list due templates without posting")
	group.AddCommand(generate)
	return group
}

func parseDay(raw string) (time.Time, error) {
	if raw == "" {
		return shared.DateOnly(time.Now().UTC()), nil
	}
	return shared.ParseDate(raw)
}
