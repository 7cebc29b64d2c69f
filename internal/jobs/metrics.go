package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs          *prometheus.CounterVec
	failures      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	recurringRuns *prometheus.CounterVec
	tbDifference  prometheus.Gauge
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddRecurringRuns counts generated and failed template runs of one pass.
func (m *Metrics) AddRecurringRuns(generated, failed int) {
	if m == nil {
		return
	}
	if generated > 0 {
		m.recurringRuns.WithLabelValues("generated").Add(float64(generated))
	}
	if failed > 0 {
		m.recurringRuns.WithLabelValues("failed").Add(float64(failed))
	}
}

// SetTrialBalanceDifference publishes total debit minus total credit from the
// latest integrity check.
func (m *Metrics) SetTrialBalanceDifference(diff float64) {
	if m == nil {
		return
	}
	m.tbDifference.Set(diff)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	recurringRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_recurring_runs_total",
		Help: "Recurring template runs grouped by result.",
	}, []string{"result"})
	tbDifference := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_trial_balance_difference",
		Help: "Total debit minus total credit of posted entries at the last integrity check.",
	})
	registerer.MustRegister(runs, failures, duration, recurringRuns, tbDifference)
	return &Metrics{
		runs:          runs,
		failures:      failures,
		duration:      duration,
		recurringRuns: recurringRuns,
		tbDifference:  tbDifference,
	}
}
