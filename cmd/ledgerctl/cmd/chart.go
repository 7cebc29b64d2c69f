package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
)

func newChartCmd(opts *rootOptions) *cobra.Command {
	chart := &cobra.Command{
		Use:   "chart",
		Short: "Manage the chart of accounts",
	}

	var file string
	seed := &cobra.Command{
		Use:   "seed",
		Short: "Create missing accounts from a YAML chart",
		Long: `Seed creates every account of the chart whose code does not exist yet.
Existing codes are left untouched, so the command can be rerun safely.
Without --file the bundled default chart is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := loadChart(file)
			if err != nil {
				return err
			}
			return opts.withRuntime(cmd.Context(), func(rt *app.Runtime) error {
				res, err := rt.Ledger.Accounts.SeedChart(cmd.Context(), tree, opts.actorID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %d account(s), skipped %d existing\n", res.Created, res.Skipped)
				return nil
			})
		},
	}
	seed.Flags().StringVar(&file, "file", "", "YAML chart file (default: bundled chart)")
	chart.AddCommand(seed)
	return chart
}

func loadChart(path string) (accounts.Chart, error) {
	if path == "" {
		return accounts.DefaultChart()
	}
	f, err := os.Open(path)
	if err != nil {
		return accounts.Chart{}, fmt.Errorf("open chart: %w", err)
	}
	defer f.Close()
	return accounts.LoadChart(f)
}
