package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	if m == nil {
		t.Fatal("expected metrics, got nil")
	}

	tests := []struct {
		name   string
		metric interface{}
	}{
		{"SessionOperations", m.SessionOperations},
		{"SessionDuration", m.SessionDuration},
		{"SessionStale", m.SessionStale},
		{"Authenticated", m.Authenticated},
		{"APIRequests", m.APIRequests},
		{"APILatency", m.APILatency},
		{"Redirects", m.Redirects},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s is nil", tt.name)
			}
		})
	}
}

func TestObserveAPIRequest(t *testing.T) {
	_, m := NewRegistry()

	m.ObserveAPIRequest("/users/me", "200", 120*time.Millisecond)
	m.ObserveAPIRequest("/users/me", "200", 80*time.Millisecond)
	m.ObserveAPIRequest("/users/me", "401", 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.APIRequests.WithLabelValues("/users/me", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.APIRequests.WithLabelValues("/users/me", "401")))
}

func TestSessionMetrics(t *testing.T) {
	_, m := NewRegistry()

	m.ObserveSessionOperation("login", "success", time.Second)
	m.IncStaleResult("reload")
	m.SetAuthenticated(true)
	m.IncRedirect("/home")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionOperations.WithLabelValues("login", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionStale.WithLabelValues("reload")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Authenticated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Redirects.WithLabelValues("/home")))

	m.SetAuthenticated(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Authenticated))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveAPIRequest("/users", "200", time.Millisecond)
		m.ObserveSessionOperation("logout", "success", time.Millisecond)
		m.IncStaleResult("reload")
		m.SetAuthenticated(true)
		m.IncRedirect("/")
	})
}
