package jobs_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/fiscalyears"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/recurring"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/testing/ledgertest"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newMetrics(t *testing.T) (*jobmetrics.Metrics, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	return jobmetrics.NewMetrics(registry), registry
}

func metricValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			if matchLabels(m, labels) {
				switch {
				case m.GetCounter() != nil:
					return m.GetCounter().GetValue()
				case m.GetGauge() != nil:
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	return 0
}

func matchLabels(m *dto.Metric, labels map[string]string) bool {
	for _, pair := range m.GetLabel() {
		if want, ok := labels[pair.GetName()]; ok && want != pair.GetValue() {
			return false
		}
	}
	return true
}

func task(t *testing.T, typ string, payload any) *asynq.Task {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(typ, body)
}

func createRent(t *testing.T, fx *ledgertest.Fixture) {
	t.Helper()
	amount := decimal.RequireFromString("1200")
	_, err := fx.Ledger.Recurring.CreateTemplate(context.Background(), recurring.CreateTemplateInput{
		Name:      "Office rent",
		Frequency: recurring.FrequencyMonthly,
		StartDate: shared.Date(2025, 1, 31),
		ActorID:   1,
		Lines: []journals.LineInput{
			{AccountID: fx.Account(t, accounts.SubtypeOperatingExpense).ID, Debit: amount},
			{AccountID: fx.Account(t, accounts.SubtypeBank).ID, Credit: amount},
		},
	})
	require.NoError(t, err)
}

func recurringEntries(t *testing.T, fx *ledgertest.Fixture) []journals.JournalEntry {
	t.Helper()
	entries, err := fx.Ledger.Journals.List(context.Background(), journals.ListFilter{Source: journals.SourceRecurring})
	require.NoError(t, err)
	return entries
}

func TestRecurringGenerateJobPostsOncePerDay(t *testing.T) {
	fx := ledgertest.New(t, time.Date(2025, 1, 31, 1, 0, 0, 0, time.UTC))
	createRent(t, fx)
	metrics, registry := newMetrics(t)
	job := jobs.NewRecurringGenerateJob(fx.Ledger.Recurring, quietLogger, metrics)
	job.WithClock(func() time.Time { return fx.Now })

	require.NoError(t, job.Handle(context.Background(), task(t, jobs.TaskRecurringGenerate, jobs.RecurringGeneratePayload{})))
	require.NoError(t, job.Handle(context.Background(), task(t, jobs.TaskRecurringGenerate, jobs.RecurringGeneratePayload{Date: "2025-01-31"})))

	require.Len(t, recurringEntries(t, fx), 1)
	assert.Equal(t, 1.0, metricValue(t, registry, "ledger_recurring_runs_total", map[string]string{"result": "generated"}))
	assert.Equal(t, 2.0, metricValue(t, registry, "ledger_jobs_total", map[string]string{"job": jobs.TaskRecurringGenerate, "status": "success"}))
}

func TestRecurringGenerateJobDryRunPostsNothing(t *testing.T) {
	fx := ledgertest.New(t, time.Date(2025, 1, 31, 1, 0, 0, 0, time.UTC))
	createRent(t, fx)
	metrics, _ := newMetrics(t)
	job := jobs.NewRecurringGenerateJob(fx.Ledger.Recurring, quietLogger, metrics)

	err := job.Handle(context.Background(), task(t, jobs.TaskRecurringGenerate, jobs.RecurringGeneratePayload{Date: "2025-01-31", DryRun: true}))
	require.NoError(t, err)
	assert.Empty(t, recurringEntries(t, fx))
}

func TestRecurringGenerateJobRejectsBadPayload(t *testing.T) {
	fx := ledgertest.New(t, time.Time{})
	metrics, _ := newMetrics(t)
	job := jobs.NewRecurringGenerateJob(fx.Ledger.Recurring, quietLogger, metrics)

	err := job.Handle(context.Background(), asynq.NewTask(jobs.TaskRecurringGenerate, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), task(t, jobs.TaskRecurringGenerate, jobs.RecurringGeneratePayload{Date: "31/01/2025"}))
	require.ErrorIs(t, err, asynq.SkipRetry)

	_, err = jobs.NewRecurringGenerateTask("2025-02-30", false)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRecurringGenerateJobYieldsToLockHolder(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := cache.NewLocker(client)

	fx := ledgertest.New(t, time.Date(2025, 1, 31, 1, 0, 0, 0, time.UTC), accounting.WithLocker(locker, time.Minute))
	createRent(t, fx)
	unlock, ok, err := locker.TryLock(context.Background(), internalShared.RecurringRunLockKey(shared.Date(2025, 1, 31)), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	defer unlock()

	metrics, _ := newMetrics(t)
	job := jobs.NewRecurringGenerateJob(fx.Ledger.Recurring, quietLogger, metrics)
	require.NoError(t, job.Handle(context.Background(), task(t, jobs.TaskRecurringGenerate, jobs.RecurringGeneratePayload{Date: "2025-01-31"})))
	assert.Empty(t, recurringEntries(t, fx))
}

func TestGLIntegrityPassesAfterClose(t *testing.T) {
	fx := ledgertest.New(t, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	fy, err := fx.Ledger.FiscalYears.Create(ctx, fiscalyears.CreateInput{
		Name: "FY2025", StartDate: shared.Date(2025, 1, 1), EndDate: shared.Date(2025, 12, 31), ActorID: 1,
	})
	require.NoError(t, err)
	fx.Post(t, shared.Date(2025, 3, 3), accounts.SubtypeBank, accounts.SubtypeSales, "900")
	fx.Post(t, shared.Date(2025, 4, 3), accounts.SubtypeOperatingExpense, accounts.SubtypeBank, "250.40")
	_, err = fx.Ledger.FiscalYears.Close(ctx, fiscalyears.CloseInput{FiscalYearID: fy.ID, ActorID: 1})
	require.NoError(t, err)

	metrics, registry := newMetrics(t)
	job := jobs.NewGLIntegrityJob(fx.Ledger.Balances, fx.Ledger.Reports, fx.Ledger.FiscalYears, quietLogger, metrics)
	job.WithClock(func() time.Time { return fx.Now })

	report, err := job.Check(ctx, shared.Date(2026, 1, 10))
	require.NoError(t, err)
	assert.True(t, report.OK(), "%+v", report.Issues)
	assert.Equal(t, 1, report.ClosedYears)
	assert.True(t, report.TotalDebit.Equal(report.TotalCredit))

	require.NoError(t, job.Handle(ctx, task(t, jobs.TaskGLIntegrity, jobs.GLIntegrityPayload{})))
	assert.Equal(t, 0.0, metricValue(t, registry, "ledger_trial_balance_difference", nil))
}

type skewedBalances struct{}

func (skewedBalances) TrialBalance(_ context.Context, asOf time.Time) (balances.TrialBalance, error) {
	return balances.TrialBalance{
		AsOf:        asOf,
		TotalDebit:  decimal.RequireFromString("100.00"),
		TotalCredit: decimal.RequireFromString("99.99"),
	}, nil
}

func TestGLIntegrityFlagsUnbalancedLedger(t *testing.T) {
	fx := ledgertest.New(t, time.Time{})
	metrics, registry := newMetrics(t)
	job := jobs.NewGLIntegrityJob(skewedBalances{}, fx.Ledger.Reports, fx.Ledger.FiscalYears, quietLogger, metrics)

	err := job.Handle(context.Background(), task(t, jobs.TaskGLIntegrity, jobs.GLIntegrityPayload{AsOf: "2025-12-31"}))
	require.ErrorIs(t, err, jobs.ErrIntegrity)
	require.ErrorIs(t, err, asynq.SkipRetry)
	assert.InDelta(t, 0.01, metricValue(t, registry, "ledger_trial_balance_difference", nil), 1e-9)
	assert.Equal(t, 1.0, metricValue(t, registry, "ledger_jobs_failures_total", map[string]string{"job": jobs.TaskGLIntegrity}))
}

type failingBalances struct{}

func (failingBalances) TrialBalance(context.Context, time.Time) (balances.TrialBalance, error) {
	return balances.TrialBalance{}, errors.New("connection reset")
}

func TestGLIntegrityPropagatesStoreErrors(t *testing.T) {
	fx := ledgertest.New(t, time.Time{})
	metrics, _ := newMetrics(t)
	job := jobs.NewGLIntegrityJob(failingBalances{}, fx.Ledger.Reports, fx.Ledger.FiscalYears, quietLogger, metrics)

	_, err := job.Check(context.Background(), shared.Date(2025, 12, 31))
	require.Error(t, err)
	assert.NotErrorIs(t, err, jobs.ErrIntegrity)
}

func TestClientCollapsesDuplicateDays(t *testing.T) {
	srv := miniredis.RunT(t)
	client := jobs.NewClient(asynq.RedisClientOpt{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	info, err := client.EnqueueRecurringGenerate(ctx, "2025-01-31", false)
	require.NoError(t, err)
	assert.Equal(t, jobs.TaskRecurringGenerate+":2025-01-31", info.ID)
	assert.Equal(t, jobs.QueueDefault, info.Queue)

	_, err = client.EnqueueRecurringGenerate(ctx, "2025-01-31", false)
	require.ErrorIs(t, err, asynq.ErrTaskIDConflict)

	_, err = client.EnqueueRecurringGenerate(ctx, "2025-01-31", true)
	require.NoError(t, err)
}

func TestHandlerEnqueuesTasks(t *testing.T) {
	srv := miniredis.RunT(t)
	client := jobs.NewClient(asynq.RedisClientOpt{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := chi.NewRouter()
	r.Route("/jobs", jobs.NewHandler(nil, client, quietLogger).MountRoutes)

	post := func(path, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body)))
		return rec
	}

	rec := post("/jobs/recurring-generate", `{"date":"2025-02-28"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	rec = post("/jobs/recurring-generate", `{"date":"2025-02-28"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = post("/jobs/recurring-generate", `{"date":"tomorrow"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	rec = post("/jobs/gl-integrity", "")
	assert.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	health := httptest.NewRecorder()
	r.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	assert.Equal(t, http.StatusOK, health.Code)
}
