// Package cmd provides the ledgerctl commands.
package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/app"
)

// RuntimeOpener builds the ledger the commands operate on.
type RuntimeOpener func(ctx context.Context) (*app.Runtime, error)

// openFromEnv loads configuration the same way the server does.
func openFromEnv(ctx context.Context) (*app.Runtime, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	return app.Bootstrap(ctx, cfg, slog.Default())
}

type rootOptions struct {
	debug   bool
	actorID int64
	open    RuntimeOpener
}

// NewRootCmd assembles the command tree. A nil opener reads the environment.
func NewRootCmd(open RuntimeOpener) *cobra.Command {
	if open == nil {
		open = openFromEnv
	}
	opts := &rootOptions{open: open}

	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operate the double-entry ledger",
		Long: `ledgerctl runs ledger maintenance against the configured store.

Example:
  ledgerctl chart seed
  ledgerctl recurring generate --date 2025-01-31 --dry-run
  ledgerctl trial-balance --as-of 2025-12-31
  ledgerctl fiscal-year close 3
  ledgerctl jobs trigger gl-integrity`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if opts.debug {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().Int64Var(&opts.actorID, "actor", 0, "actor id recorded on writes")

	root.AddCommand(
		newChartCmd(opts),
		newRecurringCmd(opts),
		newTrialBalanceCmd(opts),
		newFiscalYearCmd(opts),
		newJobsCmd(),
	)
	return root
}

// Execute runs ledgerctl with the process arguments.
func Execute() error {
	return NewRootCmd(nil).Execute()
}

// withRuntime opens the ledger for the duration of fn.
func (o *rootOptions) withRuntime(ctx context.Context, fn func(rt *app.Runtime) error) error {
	rt, err := o.open(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}
