package monitoring

import (
	"github.com/packetflow/iccr/internal/registry"
)

// Severity is an alert's urgency band.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// Alert records one active monitoring alert for a component.
type Alert struct {
	ComponentID string
	Severity    Severity
	Health      registry.Health
	At          int64 // unix nanos, for stable ordering in the recent-alerts ring
}

// applyAlertTransition creates, updates, or clears id's alert in
// response to a new health band: unhealthy creates/keeps a critical
// alert, degraded creates/keeps a warning alert, and a transition to
// healthy clears any active alert for that component.
func (m *Monitor) applyAlertTransition(id string, band registry.Health) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch band {
	case registry.Unhealthy:
		m.setAlertLocked(id, Alert{ComponentID: id, Severity: SeverityCritical, Health: band, At: m.now().UnixNano()})
	case registry.Degraded:
		m.setAlertLocked(id, Alert{ComponentID: id, Severity: SeverityWarning, Health: band, At: m.now().UnixNano()})
	case registry.Healthy:
		delete(m.alerts, id)
	}

	if m.prom != nil {
		crit, warn := m.countSeveritiesLocked()
		m.prom.AlertsActive.WithLabelValues(string(SeverityCritical)).Set(float64(crit))
		m.prom.AlertsActive.WithLabelValues(string(SeverityWarning)).Set(float64(warn))
	}
}

func (m *Monitor) setAlertLocked(id string, a Alert) {
	m.alerts[id] = a
	m.recentAlerts = append(m.recentAlerts, a)
	if len(m.recentAlerts) > recentAlertsCap {
		m.recentAlerts = m.recentAlerts[len(m.recentAlerts)-recentAlertsCap:]
	}
}

func (m *Monitor) countSeveritiesLocked() (critical, warning int) {
	for _, a := range m.alerts {
		switch a.Severity {
		case SeverityCritical:
			critical++
		case SeverityWarning:
			warning++
		}
	}
	return
}

// ActiveAlerts returns every currently active alert.
func (m *Monitor) ActiveAlerts() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Alert, 0, len(m.alerts))
	for _, a := range m.alerts {
		out = append(out, a)
	}
	return out
}

// RecentAlerts returns up to the last 10 alerts raised, oldest first.
func (m *Monitor) RecentAlerts() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Alert(nil), m.recentAlerts...)
}
