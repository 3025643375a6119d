// Package realtime provides real-time event broadcasting system for dashboard updates.
package realtime

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a real-time event broadcast to subscribers.
type Event struct {
	// Type is the event type (component_registered, health_updated, config_updated, etc.)
	Type string `json:"type"`

	// ID is a unique event ID (UUID)
	ID string `json:"id"`

	// Data is the event payload (varies by event type)
	Data map[string]interface{} `json:"data"`

	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`

	// Source is the event source (registry, monitoring, dynconfig, etc.)
	Source string `json:"source"`

	// Sequence is a sequence number for event ordering (monotonically increasing)
	Sequence int64 `json:"sequence"`
}

// EventType constants for dashboard events, mirroring the lifecycle
// and monitoring event kinds emitted by the registry and monitoring
// packages.
const (
	// Registry lifecycle events
	EventTypeComponentRegistered = "component_registered"
	EventTypeComponentDied       = "died"
	EventTypeHealthUpdated       = "health_updated"
	EventTypeDependencyAdded     = "dependency_added"

	// Monitoring events
	EventTypeHealthCheckCompleted = "health_check_completed"
	EventTypeMetricRecorded       = "metric_recorded"

	// Configuration events
	EventTypeConfigUpdated    = "config_updated"
	EventTypeConfigRolledBack = "config_rolled_back"

	// System Events
	EventTypeSystemNotification = "system_notification"
)

// EventSource constants.
const (
	EventSourceRegistry   = "registry"
	EventSourceMonitoring = "monitoring"
	EventSourceDynconfig  = "dynconfig"
	EventSourceSystem     = "system"
)

// NewEvent creates a new Event with the given type, data, and source.
func NewEvent(eventType string, data map[string]interface{}, source string) *Event {
	return &Event{
		Type:      eventType,
		ID:        generateEventID(),
		Data:      data,
		Timestamp: time.Now(),
		Source:    source,
		Sequence:  0, // Will be set by EventBus
	}
}

// generateEventID generates a unique event ID (UUID).
func generateEventID() string {
	return uuid.New().String()
}
