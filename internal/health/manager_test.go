package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockChecker is a test double for health checks
type mockChecker struct {
	name   string
	result *Result
	delay  time.Duration
}

func (m *mockChecker) Name() string {
	return m.name
}

func (m *mockChecker) Check(ctx context.Context) *Result {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return Unhealthy("check cancelled").
				WithDetail("error", ctx.Err().Error())
		}
	}
	return m.result
}

func TestNewManager(t *testing.T) {
	manager := NewManager()

	assert.Equal(t, DefaultTimeout, manager.timeout)
	assert.Empty(t, manager.CheckNames())
	assert.Same(t, manager, manager.WithTimeout(time.Second))
	assert.Equal(t, time.Second, manager.timeout)
}

func TestCheck_KeepsRegistrationOrder(t *testing.T) {
	manager := NewManager()
	manager.AddChecker(&mockChecker{name: "slow", result: Healthy("ok"), delay: 20 * time.Millisecond})
	manager.AddChecker(&mockChecker{name: "fast", result: Degraded("meh")})

	reports := manager.Check(context.Background())

	require.Len(t, reports, 2)
	assert.Equal(t, "slow", reports[0].Name)
	assert.Equal(t, "fast", reports[1].Name)
	assert.Equal(t, StatusDegraded, reports[1].Status)
	assert.Positive(t, reports[0].Latency)
	assert.Equal(t, []string{"slow", "fast"}, manager.CheckNames())
}

func TestCheck_Timeout(t *testing.T) {
	manager := NewManager().WithTimeout(10 * time.Millisecond)
	manager.AddChecker(&mockChecker{name: "hang", result: Healthy("ok"), delay: time.Second})

	reports := manager.Check(context.Background())

	require.Len(t, reports, 1)
	assert.Equal(t, StatusUnhealthy, reports[0].Status)
	assert.Equal(t, "check cancelled", reports[0].Message)
}

func TestCheck_NilResult(t *testing.T) {
	manager := NewManager()
	manager.AddChecker(&mockChecker{name: "broken"})

	reports := manager.Check(context.Background())

	require.Len(t, reports, 1)
	assert.Equal(t, StatusUnhealthy, reports[0].Status)
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy wins", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reports []Report
			for _, s := range tt.statuses {
				reports = append(reports, Report{Name: string(s), Result: NewResult(s, "")})
			}
			assert.Equal(t, tt.want, OverallStatus(reports))
		})
	}
}

func TestResultHelpers(t *testing.T) {
	r := Healthy("ok").WithDetail("url", "http://x").WithLatency(time.Millisecond)

	assert.Equal(t, StatusHealthy, r.Status)
	assert.Equal(t, "http://x", r.Details["url"])
	assert.Equal(t, time.Millisecond, r.Latency)
	assert.Equal(t, "unhealthy", StatusUnhealthy.String())
}
