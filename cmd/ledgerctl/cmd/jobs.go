package cmd

import (
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

type jobsOptions struct {
	redisAddr string
}

func (o *jobsOptions) redisOpts() (asynq.RedisClientOpt, error) {
	if o.redisAddr != "" {
		return asynq.RedisClientOpt{Addr: o.redisAddr}, nil
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return cfg.AsynqRedis(), nil
}

func newJobsCmd() *cobra.Command {
	opts := &jobsOptions{}
	group := &cobra.Command{
		Use:   "jobs",
		Short: "Enqueue and inspect background ledger jobs",
	}
	group.PersistentFlags().StringVar(&opts.redisAddr, "redis-addr", "", "Redis address (default: REDIS_ADDR)")

	var (
		date   string
		dryRun bool
	)
	trigger := &cobra.Command{
		Use:       "trigger <recurring-generate|gl-integrity>",
		Short:     "Enqueue a job for the worker",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"recurring-generate", "gl-integrity"},
		RunE: func(cmd *cobra.Command, args []string) error {
			redisOpts, err := opts.redisOpts()
			if err != nil {
				return err
			}
			client := jobs.NewClient(redisOpts)
			defer client.Close()

			var info *asynq.TaskInfo
			switch args[0] {
			case "recurring-generate":
				info, err = client.EnqueueRecurringGenerate(cmd.Context(), date, dryRun)
			case "gl-integrity":
				info, err = client.EnqueueGLIntegrity(cmd.Context(), date)
			default:
				return fmt.Errorf("unsupported job %q", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}
	trigger.Flags().StringVar(&date, "date", "", "run or as-of date YYYY-MM-DD (default: today when the worker runs)")
	trigger.Flags().BoolVar(&dryRun, "dry-run", false, "recurring only: list due templates without posting")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show the ledger queue state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			redisOpts, err := opts.redisOpts()
			if err != nil {
				return err
			}
			inspector := asynq.NewInspector(redisOpts)
			defer inspector.Close()
			info, err := inspector.GetQueueInfo(jobs.QueueDefault)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queue %s: pending %d, active %d, scheduled %d, retry %d, archived %d\n",
				info.Queue, info.Pending, info.Active, info.Scheduled, info.Retry, info.Archived)
			return nil
		},
	}

	group.AddCommand(trigger, stats)
	return group
}
