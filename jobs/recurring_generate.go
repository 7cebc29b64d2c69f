package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/recurring"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// RecurringGeneratePayload selects the scheduler day. An empty date means
// today in UTC.
type RecurringGeneratePayload struct {
	Date   string `json:"date,omitempty"`
	DryRun bool   `json:"dry_run,omitempty"`
}

// RecurringScheduler is the slice of the recurring service the job drives.
type RecurringScheduler interface {
	PreviewDue(ctx context.Context, today time.Time) ([]recurring.Preview, error)
	GenerateDue(ctx context.Context, today time.Time) ([]recurring.RunResult, error)
}

// RecurringGenerateJob runs one scheduler pass per task.
type RecurringGenerateJob struct {
	Service RecurringScheduler
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewRecurringGenerateJob wires dependencies for the generate handler.
func NewRecurringGenerateJob(service RecurringScheduler, logger *slog.Logger, metrics *jobmetrics.Metrics) *RecurringGenerateJob {
	return &RecurringGenerateJob{
		Service: service,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// NewRecurringGenerateTask creates an Asynq task for one scheduler pass.
func NewRecurringGenerateTask(date string, dryRun bool) (*asynq.Task, error) {
	if date != "" {
		if _, err := shared.ParseDate(date); err != nil {
			return nil, err
		}
	}
	body, err := json.Marshal(RecurringGeneratePayload{Date: date, DryRun: dryRun})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRecurringGenerate, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// Handle executes the recurring generation job. Per-template failures are
// logged and counted without failing the task; the next pass retries them.
func (j *RecurringGenerateJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("recurring generate: dependencies not configured")
	}
	var payload RecurringGeneratePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("recurring generate: decode payload: %w", asynq.SkipRetry)
	}
	day := shared.DateOnly(j.now())
	if payload.Date != "" {
		parsed, err := shared.ParseDate(payload.Date)
		if err != nil {
			return fmt.Errorf("recurring generate: %v: %w", err, asynq.SkipRetry)
		}
		day = parsed
	}

	tracker := j.metrics().Track(TaskRecurringGenerate)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.log().With(slog.String("date", day.Format(time.DateOnly)), slog.Bool("dry_run", payload.DryRun))

	if payload.DryRun {
		due, err := j.Service.PreviewDue(ctx, day)
		if err != nil {
			resultErr = err
			logger.Error("preview recurring", slog.Any("error", err))
			return resultErr
		}
		for _, p := range due {
			logger.Info("recurring due", slog.Int64("template_id", p.TemplateID), slog.String("name", p.Name), slog.String("amount", p.Amount.String()))
		}
		logger.Info("recurring dry run complete", slog.Int("due", len(due)))
		return resultErr
	}

	start := j.now()
	results, err := j.Service.GenerateDue(ctx, day)
	if errors.Is(err, recurring.ErrRunInProgress) {
		logger.Info("recurring pass already running elsewhere")
		return resultErr
	}
	if err != nil {
		resultErr = err
		logger.Error("generate recurring", slog.Any("error", err))
		return resultErr
	}
	generated, failed := recurring.Summarize(results)
	j.metrics().AddRecurringRuns(generated, failed)
	for _, res := range results {
		if res.Err != nil {
			logger.Warn("recurring template failed", slog.Int64("template_id", res.TemplateID), slog.String("name", res.Name), slog.Any("error", res.Err))
		}
	}
	logger.Info("recurring pass complete", slog.Int("generated", generated), slog.Int("failed", failed), slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *RecurringGenerateJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *RecurringGenerateJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskRecurringGenerate))
	}
	return slog.Default().With(slog.String("job", TaskRecurringGenerate))
}

func (j *RecurringGenerateJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// WithClock overrides the internal clock for deterministic tests.
func (j *RecurringGenerateJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}
