package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the client.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Session lifecycle metrics
	SessionOperations *prometheus.CounterVec
	SessionDuration   *prometheus.HistogramVec
	SessionStale      *prometheus.CounterVec
	Authenticated     prometheus.Gauge

	// API request metrics
	APIRequests *prometheus.CounterVec
	APILatency  *prometheus.HistogramVec

	// Navigation metrics
	Redirects *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		SessionOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fisherman_session_operations_total",
				Help: "Total number of session operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		SessionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fisherman_session_operation_duration_seconds",
				Help:    "Session operation duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"operation"},
		),
		SessionStale: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fisherman_session_stale_results_total",
				Help: "Results discarded because a newer session operation started",
			},
			[]string{"operation"},
		),
		Authenticated: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "fisherman_session_authenticated",
				Help: "1 while a user is logged in, 0 otherwise",
			},
		),
		APIRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fisherman_api_requests_total",
				Help: "Total number of backend API requests",
			},
			[]string{"route", "status"},
		),
		APILatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fisherman_api_request_duration_seconds",
				Help:    "Backend API request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		Redirects: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fisherman_navigation_redirects_total",
				Help: "Route replacements issued by the navigation guard",
			},
			[]string{"target"},
		),
	}
}

// ObserveAPIRequest records one backend request
func (m *Metrics) ObserveAPIRequest(route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.APIRequests.WithLabelValues(route, status).Inc()
	m.APILatency.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveSessionOperation records a finished session operation
func (m *Metrics) ObserveSessionOperation(operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.SessionOperations.WithLabelValues(operation, outcome).Inc()
	m.SessionDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncStaleResult counts a discarded, superseded operation result
func (m *Metrics) IncStaleResult(operation string) {
	if m == nil {
		return
	}
	m.SessionStale.WithLabelValues(operation).Inc()
}

// SetAuthenticated tracks whether a user is logged in
func (m *Metrics) SetAuthenticated(authenticated bool) {
	if m == nil {
		return
	}
	if authenticated {
		m.Authenticated.Set(1)
		return
	}
	m.Authenticated.Set(0)
}

// IncRedirect counts a guard redirect to target
func (m *Metrics) IncRedirect(target string) {
	if m == nil {
		return
	}
	m.Redirects.WithLabelValues(target).Inc()
}
