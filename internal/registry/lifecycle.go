package registry

import (
	"github.com/packetflow/iccr/internal/core"
)

// StartFunc brings a single component up; the registry calls it once
// per id, in dependency order, during StartAll.
type StartFunc func(id string) error

// StartAll starts every registered component in topological dependency
// order — a component starts only after every component it depends on
// has itself started and reports Healthy or Degraded — and rejects the
// whole batch with core.KindDependencyCycle if the dependency graph is
// not a DAG (it should never be, since AddDependency already refuses
// cycle-forming edges, but a fresh topological sort here catches any
// graph built through means other than AddDependency).
func (r *Registry) StartAll(start StartFunc) error {
	order, err := r.topologicalOrder()
	if err != nil {
		return err
	}

	for _, id := range order {
		if err := start(id); err != nil {
			return core.New(core.KindPartialFailure, "component %q failed to start: %v", id, err)
		}
		r.mu.Lock()
		info := r.components[id]
		info.LastHeartbeat = r.now()
		r.recomputeHealthLocked(info)
		r.mu.Unlock()
	}
	return nil
}

// topologicalOrder returns component ids ordered so that every
// component appears after all of its dependencies, using Kahn's
// algorithm. Ties are broken lexicographically for determinism.
func (r *Registry) topologicalOrder() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	indegree := make(map[string]int, len(r.components))
	// edge dep -> dependent, i.e. dependents[dep] already tracks that,
	// but we also need the forward view: id -> list of ids that must
	// start only once id has started, which is exactly dependents[id].
	for id := range r.components {
		indegree[id] = len(r.components[id].Dependencies)
	}

	var ready []string
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sortStrings(ready)

	var order []string
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)

		var freed []string
		for dependent := range r.dependents[n] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				freed = append(freed, dependent)
			}
		}
		sortStrings(freed)
		ready = mergeSorted(ready, freed)
	}

	if len(order) != len(r.components) {
		return nil, core.New(core.KindDependencyCycle, "dependency graph contains a cycle")
	}
	return order, nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func mergeSorted(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}
