package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/fiscalyears"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// ErrIntegrity marks a ledger that failed one of the integrity checks.
var ErrIntegrity = errors.New("gl integrity: ledger inconsistent")

// GLIntegrityPayload selects the as-of date. An empty date means today in UTC.
type GLIntegrityPayload struct {
	AsOf string `json:"as_of,omitempty"`
}

// TrialBalancer computes the cumulative trial balance.
type TrialBalancer interface {
	TrialBalance(ctx context.Context, asOf time.Time) (balances.TrialBalance, error)
}

// IncomeReporter computes period profit and loss.
type IncomeReporter interface {
	ProfitAndLoss(ctx context.Context, from, to time.Time) (reports.ProfitAndLoss, error)
}

// FiscalYearLister lists fiscal years.
type FiscalYearLister interface {
	List(ctx context.Context) ([]fiscalyears.FiscalYear, error)
}

// IntegrityIssue describes one failed check.
type IntegrityIssue struct {
	Check  string
	Detail string
}

// IntegrityReport is the outcome of one integrity run.
type IntegrityReport struct {
	AsOf        time.Time
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	ClosedYears int
	Issues      []IntegrityIssue
}

// OK reports whether every check passed.
func (r IntegrityReport) OK() bool {
	return len(r.Issues) == 0
}

// GLIntegrityJob verifies the trial balance and that every closed fiscal
// year nets its income and expense accounts to zero.
type GLIntegrityJob struct {
	Balances    TrialBalancer
	Reports     IncomeReporter
	FiscalYears FiscalYearLister
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
	clock       func() time.Time
}

// NewGLIntegrityJob wires dependencies for the integrity handler.
func NewGLIntegrityJob(balances TrialBalancer, reports IncomeReporter, fiscalYears FiscalYearLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *GLIntegrityJob {
	return &GLIntegrityJob{
		Balances:    balances,
		Reports:     reports,
		FiscalYears: fiscalYears,
		Logger:      logger,
		Metrics:     metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// NewGLIntegrityTask creates an Asynq task for the integrity check.
func NewGLIntegrityTask(asOf string) (*asynq.Task, error) {
	if asOf != "" {
		if _, err := shared.ParseDate(asOf); err != nil {
			return nil, err
		}
	}
	body, err := json.Marshal(GLIntegrityPayload{AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGLIntegrity, body, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}

// Handle executes the integrity job. An inconsistent ledger is not retried.
func (j *GLIntegrityJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil {
		return errors.New("gl integrity: handler not configured")
	}
	var payload GLIntegrityPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("gl integrity: decode payload: %w", asynq.SkipRetry)
	}
	asOf := shared.DateOnly(j.now())
	if payload.AsOf != "" {
		parsed, err := shared.ParseDate(payload.AsOf)
		if err != nil {
			return fmt.Errorf("gl integrity: %v: %w", err, asynq.SkipRetry)
		}
		asOf = parsed
	}

	tracker := j.metrics().Track(TaskGLIntegrity)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	report, err := j.Check(ctx, asOf)
	if err != nil {
		resultErr = err
		j.log().Error("gl integrity check", slog.Any("error", err))
		return resultErr
	}
	diff, _ := report.TotalDebit.Sub(report.TotalCredit).Float64()
	j.metrics().SetTrialBalanceDifference(diff)
	if !report.OK() {
		for _, issue := range report.Issues {
			j.log().Error("gl integrity issue", slog.String("check", issue.Check), slog.String("detail", issue.Detail))
		}
		resultErr = fmt.Errorf("%w: %d issue(s): %w", ErrIntegrity, len(report.Issues), asynq.SkipRetry)
		return resultErr
	}
	j.log().Info("GL integrity check passed",
		slog.String("as_of", asOf.Format(time.DateOnly)),
		slog.String("total_debit", report.TotalDebit.String()),
		slog.Int("closed_years", report.ClosedYears))
	return resultErr
}

// Check runs the trial balance and closed-year checks concurrently.
func (j *GLIntegrityJob) Check(ctx context.Context, asOf time.Time) (IntegrityReport, error) {
	if j == nil || j.Balances == nil || j.Reports == nil || j.FiscalYears == nil {
		return IntegrityReport{}, errors.New("gl integrity: dependencies not configured")
	}
	report := IntegrityReport{AsOf: shared.DateOnly(asOf)}
	var mu sync.Mutex
	addIssue := func(check, detail string) {
		mu.Lock()
		defer mu.Unlock()
		report.Issues = append(report.Issues, IntegrityIssue{Check: check, Detail: detail})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tb, err := j.Balances.TrialBalance(gctx, report.AsOf)
		if err != nil {
			return fmt.Errorf("trial balance: %w", err)
		}
		mu.Lock()
		report.TotalDebit, report.TotalCredit = tb.TotalDebit, tb.TotalCredit
		mu.Unlock()
		if !tb.IsBalanced() {
			addIssue("trial_balance", fmt.Sprintf("debit %s != credit %s", tb.TotalDebit, tb.TotalCredit))
		}
		return nil
	})

	years, err := j.FiscalYears.List(ctx)
	if err != nil {
		return IntegrityReport{}, fmt.Errorf("list fiscal years: %w", err)
	}
	for _, fy := range years {
		if !fy.IsClosed || fy.EndDate.After(report.AsOf) {
			continue
		}
		report.ClosedYears++
		g.Go(func() error {
			pl, err := j.Reports.ProfitAndLoss(gctx, fy.StartDate, fy.EndDate)
			if err != nil {
				return fmt.Errorf("profit and loss %s: %w", fy.Name, err)
			}
			if !pl.NetIncome.IsZero() {
				addIssue("closed_year", fmt.Sprintf("%s nets %s after close", fy.Name, pl.NetIncome))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return IntegrityReport{}, err
	}
	return report, nil
}

func (j *GLIntegrityJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *GLIntegrityJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskGLIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskGLIntegrity))
}

func (j *GLIntegrityJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// WithClock overrides the internal clock for deterministic tests.
func (j *GLIntegrityJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}
