// Package plugin defines the ICCR plugin protocol: the narrow
// interfaces each plugin family implements, and an ordered registry
// that resolves a family's plugins into a priority-sorted pipeline.
//
// File-system discovery of plugins is out of scope here; this package
// only carries the protocol and an in-memory registry that callers
// populate explicitly.
package plugin

import (
	"fmt"
	"sort"
	"sync"
)

// Family names one of the plugin kinds a Descriptor can belong to.
type Family string

const (
	FamilyCapability Family = "capability"
	FamilyIntent      Family = "intent"
	FamilyContext     Family = "context"
	FamilyReactor     Family = "reactor"
	FamilyStream      Family = "stream"
	FamilyTemporal    Family = "temporal"
	FamilyWeb         Family = "web"
	FamilyTest        Family = "test"
	FamilyDocs        Family = "docs"
)

// Descriptor is the metadata every plugin advertises regardless of
// family: a version, its dependencies (by plugin name), a default
// configuration blob, and a priority used to order pipelines (higher
// runs first).
type Descriptor struct {
	Name         string
	Family       Family
	Version      string
	Dependencies []string
	DefaultConfig map[string]any
	Priority     int
}

// Result is the outcome of a single plugin invocation: either an ok
// value or an error reason.
type Result struct {
	OK     bool
	Value  any
	Reason string
}

func Ok(value any) Result       { return Result{OK: true, Value: value} }
func Err(reason string, a ...any) Result {
	return Result{OK: false, Reason: fmt.Sprintf(reason, a...)}
}

// Plugin is the narrow, family-agnostic contract a registered plugin
// implements: given an input value, it returns ok+transformed-value or
// an error reason. Capability/intent/context/reactor/stream/temporal
// plugins all share this shape; family-specific semantics live in the
// input/output values, not in the interface.
type Plugin interface {
	Descriptor() Descriptor
	Invoke(input any) Result
}

// Registry resolves plugins by family into priority-ordered pipelines
// and rejects registration when a declared dependency is absent.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]Plugin
	byFam   map[Family][]Plugin
	regOrder map[string]int
	seq     int
}

func NewRegistry() *Registry {
	return &Registry{
		byName:   make(map[string]Plugin),
		byFam:    make(map[Family][]Plugin),
		regOrder: make(map[string]int),
	}
}

// Register adds a plugin, rejecting it if any declared dependency is
// not already registered.
func (r *Registry) Register(p Plugin) error {
	d := p.Descriptor()
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, dep := range d.Dependencies {
		if _, ok := r.byName[dep]; !ok {
			return fmt.Errorf("plugin %q: dependency %q not registered", d.Name, dep)
		}
	}
	if _, exists := r.byName[d.Name]; exists {
		return fmt.Errorf("plugin %q already registered", d.Name)
	}

	r.byName[d.Name] = p
	r.byFam[d.Family] = append(r.byFam[d.Family], p)
	r.regOrder[d.Name] = r.seq
	r.seq++
	return nil
}

// Pipeline returns the plugins of a family ordered by descending
// priority, then registration order (ties broken by arrival).
func (r *Registry) Pipeline(f Family) []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := append([]Plugin(nil), r.byFam[f]...)
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].Descriptor(), out[j].Descriptor()
		if di.Priority != dj.Priority {
			return di.Priority > dj.Priority
		}
		return r.regOrder[di.Name] < r.regOrder[dj.Name]
	})
	return out
}

// Get returns a registered plugin by name.
func (r *Registry) Get(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byName[name]
	return p, ok
}

// Run folds input through a pipeline left-to-right, short-circuiting
// on the first plugin that returns a non-ok Result. This is the single
// implementation backing both the intent validation pipeline and the
// intent transformation pipeline: both are ordered plugin chains over
// the same protocol, just with different plugins registered.
func Run(pipeline []Plugin, input any) (any, error) {
	cur := input
	for _, p := range pipeline {
		res := p.Invoke(cur)
		if !res.OK {
			return nil, fmt.Errorf("plugin %q: %s", p.Descriptor().Name, res.Reason)
		}
		cur = res.Value
	}
	return cur, nil
}
