package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetflow/iccr/internal/registry"
)

func newTestMonitor(t *testing.T) (*Monitor, *registry.Registry) {
	t.Helper()
	reg := registry.New(nil)
	m := New(reg, prometheus.NewRegistry(), nil)
	return m, reg
}

func TestHealthCheckCycleRecordsHistory(t *testing.T) {
	m, reg := newTestMonitor(t)
	require.NoError(t, reg.Register("a", "stream", nil))
	reg.Heartbeat("a")

	m.RunHealthCheckCycle()

	hist := m.HealthHistory("a")
	require.Len(t, hist, 1)
	assert.Equal(t, registry.Healthy, hist[0].Health)
}

func TestHealthHistoryBoundedAt100(t *testing.T) {
	m, reg := newTestMonitor(t)
	require.NoError(t, reg.Register("a", "stream", nil))

	for i := 0; i < 150; i++ {
		reg.Heartbeat("a")
		m.RunHealthCheckCycle()
	}

	assert.Len(t, m.HealthHistory("a"), 100)
}

type fakeProvider struct{ metrics map[string]float64 }

func (f fakeProvider) GetMetrics() map[string]float64 { return f.metrics }

func TestMetricsCycleCollectsBaseAndProviderMetrics(t *testing.T) {
	m, reg := newTestMonitor(t)
	require.NoError(t, reg.Register("a", "stream", nil))
	m.RegisterProvider("a", fakeProvider{metrics: map[string]float64{
		"memory_bytes":         1024,
		"message_queue_length": 3,
		"custom_gauge":         42,
	}})

	m.RunMetricsCycle()

	hist := m.MetricsHistory("a")
	require.Len(t, hist, 1)
	assert.Equal(t, 1024.0, hist[0].Base.MemoryBytes)
	assert.Equal(t, 3.0, hist[0].Base.MessageQueueLength)
	assert.Equal(t, 42.0, hist[0].Extra["custom_gauge"])
	assert.GreaterOrEqual(t, hist[0].Base.UptimeSeconds, 0.0)
}

func TestAlertTransitionsFollowHealthBand(t *testing.T) {
	m, reg := newTestMonitor(t)
	require.NoError(t, reg.Register("a", "stream", nil))

	m.applyAlertTransition("a", registry.Unhealthy)
	alerts := m.ActiveAlerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, SeverityCritical, alerts[0].Severity)

	m.applyAlertTransition("a", registry.Degraded)
	alerts = m.ActiveAlerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, SeverityWarning, alerts[0].Severity)

	m.applyAlertTransition("a", registry.Healthy)
	assert.Empty(t, m.ActiveAlerts())
}

func TestRecentAlertsCappedAt10(t *testing.T) {
	m, reg := newTestMonitor(t)
	for i := 0; i < 15; i++ {
		id := string(rune('a' + i))
		require.NoError(t, reg.Register(id, "stream", nil))
		m.applyAlertTransition(id, registry.Unhealthy)
	}
	assert.Len(t, m.RecentAlerts(), recentAlertsCap)
}

func TestSnapshotAggregatesComponents(t *testing.T) {
	m, reg := newTestMonitor(t)
	require.NoError(t, reg.Register("a", "stream", nil))
	require.NoError(t, reg.Register("b", "stream", nil))
	reg.Heartbeat("a")
	m.RunHealthCheckCycle()
	m.applyAlertTransition("b", registry.Unhealthy)

	snap := m.Snapshot()
	assert.Equal(t, 2, snap.TotalComponents)
	// Register stamps a heartbeat, so b is still healthy by heartbeat age;
	// applyAlertTransition records an alert but does not change registry health.
	assert.Equal(t, 2, snap.HealthyCount)
	assert.Len(t, snap.Components, 2)
}

func TestWatchReceivesHealthCheckCompletedEvent(t *testing.T) {
	m, reg := newTestMonitor(t)
	require.NoError(t, reg.Register("a", "stream", nil))
	ch := m.Watch()

	m.RunHealthCheckCycle()

	select {
	case ev := <-ch:
		assert.Equal(t, EventHealthCheckCompleted, ev.Kind)
		assert.Equal(t, "a", ev.ComponentID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for health_check_completed event")
	}
}
