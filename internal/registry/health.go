package registry

import (
	"time"

	"github.com/packetflow/iccr/internal/core"
)

// healthBand computes the coarse health band from elapsed time since
// the last heartbeat: healthy under 30s, degraded under 60s,
// unhealthy otherwise.
func healthBand(sinceLast time.Duration) Health {
	switch {
	case sinceLast < 30*time.Second:
		return Healthy
	case sinceLast < 60*time.Second:
		return Degraded
	default:
		return Unhealthy
	}
}

// Heartbeat records a liveness pulse for id, advancing its health band
// accordingly and broadcasting EventHealthUpdated on change.
func (r *Registry) Heartbeat(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.components[id]
	if !ok {
		return
	}
	info.LastHeartbeat = r.now()
	r.recomputeHealthLocked(info)
}

func (r *Registry) recomputeHealthLocked(info *Info) {
	prev := info.Health
	info.Health = healthBand(r.now().Sub(info.LastHeartbeat))
	if info.Health != prev {
		r.broadcast(Event{Kind: EventHealthUpdated, ComponentID: info.ID, At: r.now(), Detail: info.Health})
	}
}

// CheckHealth resolves id's HealthChecker, if one was registered via
// SetHealthChecker, and falls back to the heartbeat-derived band when
// none is present — a per-component capability call rather than a
// single global process probe.
func (r *Registry) CheckHealth(id string) (Health, error) {
	r.mu.Lock()
	info, ok := r.components[id]
	if !ok {
		r.mu.Unlock()
		return Unknown, core.New(core.KindComponentNotFound, "component %q not found", id)
	}
	checker := info.HealthCheck
	r.mu.Unlock()

	if checker != nil {
		if err := checker.CheckHealth(); err != nil {
			r.mu.Lock()
			info.Health = Unhealthy
			r.broadcast(Event{Kind: EventHealthUpdated, ComponentID: id, At: r.now(), Detail: Unhealthy})
			r.mu.Unlock()
			return Unhealthy, nil
		}
		r.mu.Lock()
		r.recomputeHealthLocked(info)
		band := info.Health
		r.mu.Unlock()
		return band, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.recomputeHealthLocked(info)
	return info.Health, nil
}

// SetHealthChecker binds a per-component health probe.
func (r *Registry) SetHealthChecker(id string, checker HealthChecker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info, ok := r.components[id]; ok {
		info.HealthCheck = checker
	}
}

// SetLoadFactor updates a component's advertised load, used by
// load-balanced routing elsewhere.
func (r *Registry) SetLoadFactor(id string, load float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info, ok := r.components[id]; ok {
		info.LoadFactor = load
	}
}
