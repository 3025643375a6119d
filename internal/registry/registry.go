// Package registry implements the ICCR component registry and
// lifecycle: registration/discovery, dependency edges with cycle
// rejection, health-band computation, topological startup ordering,
// and lifecycle event broadcast to watchers.
package registry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/packetflow/iccr/internal/core"
)

// Health is the coarse health band driving routing decisions.
type Health string

const (
	Healthy   Health = "healthy"
	Degraded  Health = "degraded"
	Unhealthy Health = "unhealthy"
	Unknown   Health = "unknown"
)

// EventKind names the lifecycle events broadcast to watchers.
type EventKind string

const (
	EventRegistered       EventKind = "component_registered"
	EventUnregistered     EventKind = "unregistered"
	EventStateUpdated     EventKind = "state_updated"
	EventConfigUpdated    EventKind = "config_updated"
	EventDependencyAdded  EventKind = "dependency_added"
	EventDependencyRemoved EventKind = "dependency_removed"
	EventHealthUpdated    EventKind = "health_updated"
	EventDied             EventKind = "died"
)

// Event is broadcast to every registered watcher on a lifecycle change.
type Event struct {
	Kind        EventKind
	ComponentID string
	At          time.Time
	Detail      any
}

// HealthChecker resolves a component-specific health probe: each
// component owns its own health_check, rather than the registry
// running one global process-name probe for everything.
type HealthChecker interface {
	CheckHealth() error
}

// Info is everything the registry knows about one component.
type Info struct {
	ID              string
	Module          string
	Config          map[string]any
	Dependencies    []string
	Health          Health
	LoadFactor      float64
	LastHeartbeat   time.Time
	HealthCheck     HealthChecker
}

// Registry tracks registered components, their dependency graph, and
// their health, and broadcasts lifecycle Events to watchers. Like every
// long-lived component in this runtime it is internally serialized
// (mu), giving it single-mailbox semantics without a goroutine of its
// own being required for correctness.
type Registry struct {
	mu         sync.RWMutex
	components map[string]*Info
	dependents map[string]map[string]bool // id -> set of ids that depend on it
	watchers   []chan Event
	logger     *slog.Logger
	now        func() time.Time
}

func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		components: make(map[string]*Info),
		dependents: make(map[string]map[string]bool),
		logger:     logger.With("component", "registry"),
		now:        time.Now,
	}
}

// Watch subscribes to lifecycle events; the returned channel is
// buffered (64 events) and never closed, and an event is dropped for a
// watcher whose buffer is full, so callers should drain it.
func (r *Registry) Watch() <-chan Event {
	ch := make(chan Event, 64)
	r.mu.Lock()
	r.watchers = append(r.watchers, ch)
	r.mu.Unlock()
	return ch
}

func (r *Registry) broadcast(ev Event) {
	for _, ch := range r.watchers {
		select {
		case ch <- ev:
		default:
			r.logger.Warn("watcher channel full, dropping event", "kind", ev.Kind, "component_id", ev.ComponentID)
		}
	}
}

// Register adds a component, rejecting duplicate ids.
func (r *Registry) Register(id, module string, config map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.components[id]; exists {
		return core.New(core.KindComponentAlreadyRegistered, "component %q already registered", id)
	}
	r.components[id] = &Info{
		ID:            id,
		Module:        module,
		Config:        config,
		Health:        Unknown,
		LastHeartbeat: r.now(),
	}
	r.broadcast(Event{Kind: EventRegistered, ComponentID: id, At: r.now()})
	return nil
}

// Unregister removes a component, rejecting removal while any other
// component still depends on it.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.components[id]; !exists {
		return core.New(core.KindComponentNotFound, "component %q not found", id)
	}
	if deps := r.dependents[id]; len(deps) > 0 {
		ids := make([]string, 0, len(deps))
		for d := range deps {
			ids = append(ids, d)
		}
		return core.WithPayload(core.KindDependentComponentsExist, ids, "component %q has dependents: %v", id, ids)
	}

	delete(r.components, id)
	delete(r.dependents, id)
	for _, set := range r.dependents {
		delete(set, id)
	}
	r.broadcast(Event{Kind: EventUnregistered, ComponentID: id, At: r.now()})
	return nil
}

// Get returns a copy of a component's Info.
func (r *Registry) Get(id string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.components[id]
	if !ok {
		return Info{}, false
	}
	return *info, true
}

// List returns a snapshot of every registered component.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.components))
	for _, info := range r.components {
		out = append(out, *info)
	}
	return out
}

// AddDependency declares that component a depends on component b,
// rejecting self-edges and any edge that would create a cycle.
func (r *Registry) AddDependency(a, b string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a == b {
		return core.New(core.KindDependencyCycle, "component %q cannot depend on itself", a)
	}
	if _, ok := r.components[a]; !ok {
		return core.New(core.KindComponentNotFound, "component %q not found", a)
	}
	if _, ok := r.components[b]; !ok {
		return core.New(core.KindComponentNotFound, "component %q not found", b)
	}

	trial := make(map[string][]string, len(r.components))
	for id, info := range r.components {
		trial[id] = append([]string(nil), info.Dependencies...)
	}
	trial[a] = append(trial[a], b)
	if hasCycle(trial) {
		return core.New(core.KindDependencyCycle, "adding dependency %q -> %q would create a cycle", a, b)
	}

	r.components[a].Dependencies = append(r.components[a].Dependencies, b)
	if r.dependents[b] == nil {
		r.dependents[b] = make(map[string]bool)
	}
	r.dependents[b][a] = true

	r.broadcast(Event{Kind: EventDependencyAdded, ComponentID: a, At: r.now(), Detail: b})
	return nil
}

// RemoveDependency removes a previously declared a -> b edge.
func (r *Registry) RemoveDependency(a, b string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.components[a]
	if !ok {
		return
	}
	out := info.Dependencies[:0]
	for _, d := range info.Dependencies {
		if d != b {
			out = append(out, d)
		}
	}
	info.Dependencies = out
	if set := r.dependents[b]; set != nil {
		delete(set, a)
	}
	r.broadcast(Event{Kind: EventDependencyRemoved, ComponentID: a, At: r.now(), Detail: b})
}

func hasCycle(children map[string][]string) bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int)
	var visit func(n string) bool
	visit = func(n string) bool {
		color[n] = gray
		for _, c := range children[n] {
			if color[c] == gray {
				return true
			}
			if color[c] == white && visit(c) {
				return true
			}
		}
		color[n] = black
		return false
	}
	for n := range children {
		if color[n] == white && visit(n) {
			return true
		}
	}
	return false
}
