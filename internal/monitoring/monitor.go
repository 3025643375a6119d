// Package monitoring implements the ICCR monitoring layer: periodic
// health-check and metrics-collection cycles over the component
// registry, bounded per-component history, alert lifecycle, and a
// dashboard snapshot exposed over HTTP/websocket.
package monitoring

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/packetflow/iccr/internal/realtime"
	"github.com/packetflow/iccr/internal/registry"
)

const (
	healthHistoryCap  = 100
	metricsHistoryCap = 1000
	recentAlertsCap   = 10
)

// BaseMetrics is the fixed set of metrics collected for every
// component regardless of what it additionally exposes.
type BaseMetrics struct {
	UptimeSeconds      float64
	MemoryBytes        float64
	MessageQueueLength float64
}

// MetricsProvider lets a component expose additional named metrics
// beyond the base set, resolved each metrics-collection cycle.
type MetricsProvider interface {
	GetMetrics() map[string]float64
}

// HealthRecord is one health-check history entry.
type HealthRecord struct {
	At     time.Time
	Health registry.Health
}

// MetricsRecord is one metrics-collection history entry.
type MetricsRecord struct {
	At      time.Time
	Base    BaseMetrics
	Extra   map[string]float64
}

// EventKind names events broadcast to monitoring subscribers.
type EventKind string

const (
	EventHealthCheckCompleted EventKind = "health_check_completed"
	EventMetricRecorded       EventKind = "metric_recorded"
)

// Event is delivered to monitoring watchers.
type Event struct {
	Kind        EventKind
	ComponentID string
	At          time.Time
}

// Monitor runs the periodic health/metrics cycles and keeps bounded
// history, alerts, and a dashboard snapshot. Internally serialized
// like every other long-lived ICCR component.
type Monitor struct {
	mu sync.Mutex

	reg    *registry.Registry
	prom   *PrometheusMetrics
	logger *slog.Logger
	now    func() time.Time

	providers map[string]MetricsProvider
	firstSeen map[string]time.Time

	healthHistory  map[string][]HealthRecord
	metricsHistory map[string][]MetricsRecord

	alerts       map[string]Alert
	recentAlerts []Alert

	watchers []chan Event

	// realtimeBus and realtimePublisher fan health/metrics/registry
	// events out to external websocket subscribers, in parallel with
	// the in-process Watch() channel above. Nil until EnableRealtime
	// is called.
	realtimeBus       *realtime.DefaultEventBus
	realtimePublisher *realtime.EventPublisher
}

// EnableRealtime wires a realtime.DefaultEventBus into the monitor, so
// external subscribers (dashboard websocket clients) receive the same
// health/metrics/registry transitions as in-process Watch() callers.
// Must be called before Start.
func (m *Monitor) EnableRealtime(metrics *realtime.RealtimeMetrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.realtimeBus = realtime.NewEventBus(m.logger, metrics)
	m.realtimePublisher = realtime.NewEventPublisher(m.realtimeBus, m.logger, metrics)
}

// RealtimeBus returns the monitor's websocket event bus, or nil if
// EnableRealtime was never called.
func (m *Monitor) RealtimeBus() *realtime.DefaultEventBus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.realtimeBus
}

// New builds a Monitor over reg, registering its own Prometheus series
// against promReg (pass prometheus.NewRegistry() in tests).
func New(reg *registry.Registry, promReg prometheus.Registerer, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		reg:            reg,
		prom:           NewPrometheusMetrics(promReg),
		logger:         logger.With("component", "monitoring"),
		now:            time.Now,
		providers:      make(map[string]MetricsProvider),
		firstSeen:      make(map[string]time.Time),
		healthHistory:  make(map[string][]HealthRecord),
		metricsHistory: make(map[string][]MetricsRecord),
		alerts:         make(map[string]Alert),
	}
}

// RegisterProvider binds a component's additional metrics source,
// consulted each metrics-collection cycle alongside the base set.
func (m *Monitor) RegisterProvider(id string, p MetricsProvider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[id] = p
}

// Watch subscribes to monitoring events.
func (m *Monitor) Watch() <-chan Event {
	ch := make(chan Event, 64)
	m.mu.Lock()
	m.watchers = append(m.watchers, ch)
	m.mu.Unlock()
	return ch
}

func (m *Monitor) broadcast(ev Event) {
	for _, ch := range m.watchers {
		select {
		case ch <- ev:
		default:
			m.logger.Warn("monitoring watcher channel full, dropping event", "kind", ev.Kind, "component_id", ev.ComponentID)
		}
	}
}

// Start launches the two periodic cycles as goroutines until ctx is
// cancelled.
func (m *Monitor) Start(ctx context.Context, healthInterval, metricsInterval time.Duration) {
	go m.runCycle(ctx, healthInterval, m.RunHealthCheckCycle)
	go m.runCycle(ctx, metricsInterval, m.RunMetricsCycle)

	m.mu.Lock()
	bus := m.realtimeBus
	m.mu.Unlock()
	if bus != nil {
		_ = bus.Start(ctx)
		go m.forwardRegistryEvents(ctx)
		go func() {
			<-ctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = bus.Stop(stopCtx)
		}()
	}
}

// forwardRegistryEvents relays component lifecycle events onto the
// realtime bus, so websocket subscribers see registrations/deaths and
// dependency changes alongside health/metrics updates.
func (m *Monitor) forwardRegistryEvents(ctx context.Context) {
	events := m.reg.Watch()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.mu.Lock()
			publisher := m.realtimePublisher
			m.mu.Unlock()
			if publisher != nil {
				_ = publisher.PublishRegistryEvent(ev)
			}
		}
	}
}

func (m *Monitor) runCycle(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// RunHealthCheckCycle checks every registered component once,
// appending to its bounded health history and updating alerts.
func (m *Monitor) RunHealthCheckCycle() {
	for _, info := range m.reg.List() {
		band, err := m.reg.CheckHealth(info.ID)
		if err != nil {
			continue
		}

		m.mu.Lock()
		hist := append(m.healthHistory[info.ID], HealthRecord{At: m.now(), Health: band})
		if len(hist) > healthHistoryCap {
			hist = hist[len(hist)-healthHistoryCap:]
		}
		m.healthHistory[info.ID] = hist
		m.mu.Unlock()

		m.applyAlertTransition(info.ID, band)

		if m.prom != nil {
			m.prom.HealthChecksTotal.WithLabelValues(info.ID, string(band)).Inc()
			m.prom.ComponentHealth.WithLabelValues(info.ID).Set(healthOrdinal(string(band)))
		}

		m.broadcast(Event{Kind: EventHealthCheckCompleted, ComponentID: info.ID, At: m.now()})

		m.mu.Lock()
		publisher := m.realtimePublisher
		m.mu.Unlock()
		if publisher != nil {
			_ = publisher.PublishHealthEvent(info.ID, band, "")
		}
	}
}

// RunMetricsCycle collects base metrics plus any provider-exposed
// metrics for every registered component, appending to its bounded
// metrics history.
func (m *Monitor) RunMetricsCycle() {
	for _, info := range m.reg.List() {
		m.mu.Lock()
		first, ok := m.firstSeen[info.ID]
		if !ok {
			first = m.now()
			m.firstSeen[info.ID] = first
		}
		provider := m.providers[info.ID]
		m.mu.Unlock()

		base := BaseMetrics{UptimeSeconds: m.now().Sub(first).Seconds()}
		var extra map[string]float64
		if provider != nil {
			extra = provider.GetMetrics()
			if v, ok := extra["memory_bytes"]; ok {
				base.MemoryBytes = v
			}
			if v, ok := extra["message_queue_length"]; ok {
				base.MessageQueueLength = v
			}
		}

		m.mu.Lock()
		hist := append(m.metricsHistory[info.ID], MetricsRecord{At: m.now(), Base: base, Extra: extra})
		if len(hist) > metricsHistoryCap {
			hist = hist[len(hist)-metricsHistoryCap:]
		}
		m.metricsHistory[info.ID] = hist
		m.mu.Unlock()

		if m.prom != nil {
			m.prom.MetricsCollected.WithLabelValues(info.ID).Inc()
			m.prom.MemoryBytes.WithLabelValues(info.ID).Set(base.MemoryBytes)
			m.prom.QueueLength.WithLabelValues(info.ID).Set(base.MessageQueueLength)
		}

		m.broadcast(Event{Kind: EventMetricRecorded, ComponentID: info.ID, At: m.now()})
	}

	m.mu.Lock()
	publisher := m.realtimePublisher
	m.mu.Unlock()
	if publisher != nil {
		_ = publisher.PublishStatsEvent(m.aggregateStats())
	}
}

// aggregateStats computes the realtime bus's rollup view of the
// current component population, independent of the dashboard's
// richer Snapshot so monitor.go has no dependency on dashboard.go.
func (m *Monitor) aggregateStats() *realtime.DashboardStats {
	infos := m.reg.List()
	stats := &realtime.DashboardStats{TotalComponents: len(infos)}
	var memSum, queueSum float64
	for _, info := range infos {
		switch info.Health {
		case registry.Healthy, registry.Degraded:
			stats.HealthyCount++
		case registry.Unhealthy:
			stats.UnhealthyCount++
		}
		if hist := m.MetricsHistory(info.ID); len(hist) > 0 {
			latest := hist[len(hist)-1]
			memSum += latest.Base.MemoryBytes
			queueSum += latest.Base.MessageQueueLength
		}
	}
	if len(infos) > 0 {
		stats.AvgMemoryBytes = memSum / float64(len(infos))
		stats.AvgQueueLength = queueSum / float64(len(infos))
	}
	return stats
}

// HealthHistory returns a copy of id's bounded health-check history.
func (m *Monitor) HealthHistory(id string) []HealthRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]HealthRecord(nil), m.healthHistory[id]...)
}

// MetricsHistory returns a copy of id's bounded metrics history.
func (m *Monitor) MetricsHistory(id string) []MetricsRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MetricsRecord(nil), m.metricsHistory[id]...)
}
