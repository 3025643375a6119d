// Package realtime provides real-time event broadcasting system for dashboard updates.
package realtime

import (
	"log/slog"

	"github.com/packetflow/iccr/internal/registry"
)

// EventPublisher adapts typed events raised by the registry and
// monitoring packages onto the dashboard's generic EventBus.
type EventPublisher struct {
	eventBus *DefaultEventBus
	logger   *slog.Logger
	metrics  *RealtimeMetrics
}

// NewEventPublisher creates a new event publisher.
func NewEventPublisher(eventBus *DefaultEventBus, logger *slog.Logger, metrics *RealtimeMetrics) *EventPublisher {
	return &EventPublisher{
		eventBus: eventBus,
		logger:   logger.With("component", "event_publisher"),
		metrics:  metrics,
	}
}

// PublishRegistryEvent publishes a component lifecycle event (one of
// registry.EventKind) onto the dashboard bus.
func (p *EventPublisher) PublishRegistryEvent(ev registry.Event) error {
	if p.eventBus == nil {
		return nil // EventBus not initialized, skip
	}

	data := map[string]interface{}{
		"component_id": ev.ComponentID,
	}
	if ev.Detail != nil {
		data["detail"] = ev.Detail
	}

	event := NewEvent(string(ev.Kind), data, EventSourceRegistry)
	return p.eventBus.Publish(*event)
}

// DashboardStats mirrors the aggregate counters the monitoring
// dashboard snapshot reports (monitoring.Snapshot).
type DashboardStats struct {
	TotalComponents int     `json:"total_components"`
	HealthyCount    int     `json:"healthy_count"`
	UnhealthyCount  int     `json:"unhealthy_count"`
	AvgMemoryBytes  float64 `json:"avg_memory_bytes"`
	AvgQueueLength  float64 `json:"avg_queue_length"`
}

// PublishStatsEvent publishes a monitoring snapshot update.
func (p *EventPublisher) PublishStatsEvent(stats *DashboardStats) error {
	if p.eventBus == nil {
		return nil // EventBus not initialized, skip
	}

	data := map[string]interface{}{
		"total_components": stats.TotalComponents,
		"healthy_count":     stats.HealthyCount,
		"unhealthy_count":   stats.UnhealthyCount,
		"avg_memory_bytes":  stats.AvgMemoryBytes,
		"avg_queue_length":  stats.AvgQueueLength,
	}

	event := NewEvent(EventTypeMetricRecorded, data, EventSourceMonitoring)
	return p.eventBus.Publish(*event)
}

// PublishHealthEvent publishes a component health-band transition.
func (p *EventPublisher) PublishHealthEvent(componentID string, health registry.Health, message string) error {
	if p.eventBus == nil {
		return nil // EventBus not initialized, skip
	}

	data := map[string]interface{}{
		"component_id": componentID,
		"health":       string(health),
	}
	if message != "" {
		data["message"] = message
	}

	event := NewEvent(EventTypeHealthUpdated, data, EventSourceMonitoring)
	return p.eventBus.Publish(*event)
}

// PublishSystemNotification publishes a system notification event.
func (p *EventPublisher) PublishSystemNotification(level string, message string) error {
	if p.eventBus == nil {
		return nil // EventBus not initialized, skip
	}

	data := map[string]interface{}{
		"level":   level, // info, warning, error
		"message": message,
	}

	event := NewEvent(EventTypeSystemNotification, data, EventSourceSystem)
	return p.eventBus.Publish(*event)
}
