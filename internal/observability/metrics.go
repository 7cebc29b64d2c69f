// Package observability exposes the ledger's Prometheus collectors.
package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ledger requests mostly finish in a few milliseconds; fiscal close and
// reports can take seconds.
var latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Metrics owns a private registry for one ledger process.
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inFlight prometheus.Gauge
	events   *prometheus.CounterVec
}

// NewMetrics builds the registry with ledger and Go runtime collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_http_requests_total",
			Help: "Ledger API requests by component, route and status code.",
		}, []string{"component", "route", "method", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_http_request_duration_seconds",
			Help:    "Ledger API latency by component and route.",
			Buckets: latencyBuckets,
		}, []string{"component", "route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_http_requests_in_flight",
			Help: "Ledger API requests currently being served.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_integration_events_total",
			Help: "Business events received for posting, by event and outcome.",
		}, []string{"event", "outcome"}),
	}
	m.registry.MustRegister(
		m.requests,
		m.latency,
		m.inFlight,
		m.events,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return m
}

// Handler serves /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records count and latency per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)

		route := routePattern(r)
		component := Component(route)
		m.requests.WithLabelValues(component, route, r.Method, strconv.Itoa(recorder.status)).Inc()
		m.latency.WithLabelValues(component, route).Observe(time.Since(start).Seconds())
	})
}

// ObserveEvent counts one business event and what became of it.
func (m *Metrics) ObserveEvent(event, outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(event, outcome).Inc()
}

// Registerer exposes the registry so other packages can add collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// Component names the ledger area a route pattern belongs to, such as
// "journals" for /api/ledger/journals/{id}.
func Component(route string) string {
	switch {
	case route == "/healthz":
		return "health"
	case route == "/metrics":
		return "metrics"
	case strings.HasPrefix(route, "/jobs"):
		return "jobs"
	}
	rest, ok := strings.CutPrefix(route, "/api/ledger/")
	if !ok || rest == "" {
		return "other"
	}
	if head, _, found := strings.Cut(rest, "/"); found {
		return head
	}
	return rest
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
