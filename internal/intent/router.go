package intent

import (
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/packetflow/iccr/internal/capability"
	"github.com/packetflow/iccr/internal/core"
)

// routeCacheSize bounds the number of distinct capability-set lookups
// cached per Router. Candidate sets are usually small and stable
// relative to the intent volume routed against them.
const routeCacheSize = 256

// Candidate is a routable target: a reactor/component id, the
// capabilities it advertises, and its current load factor (lower is
// less loaded).
type Candidate struct {
	ID           string
	Capabilities []capability.Capability
	LoadFactor   float64
}

// Router resolves an intent to a target id, by an explicit
// type->target table first, falling back to a capability-advertised
// candidate search.
type Router struct {
	mu         sync.RWMutex
	byType     map[string]string
	candidates []Candidate
	graph      *capability.Graph

	// routeCache memoizes capability-based resolutions (the explicit
	// byType table is already O(1) and isn't cached). Invalidated
	// wholesale on any candidate registration change, since a single
	// new or removed candidate can change the winner for any key.
	routeCache *lru.Cache[string, string]
}

func NewRouter(graph *capability.Graph) *Router {
	cache, _ := lru.New[string, string](routeCacheSize)
	return &Router{byType: make(map[string]string), graph: graph, routeCache: cache}
}

// RegisterType declares an explicit intent-type -> target mapping.
func (r *Router) RegisterType(intentType, target string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byType[intentType] = target
}

// RegisterCandidate declares a component available for
// capability-based routing.
func (r *Router) RegisterCandidate(c Candidate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.candidates = append(r.candidates, c)
	r.routeCache.Purge()
}

// RemoveCandidate drops a previously-registered candidate by id.
func (r *Router) RemoveCandidate(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.candidates[:0]
	for _, c := range r.candidates {
		if c.ID != id {
			out = append(out, c)
		}
	}
	r.candidates = out
	r.routeCache.Purge()
}

// Route resolves i to a target id: first by explicit type table, then
// by finding components whose advertised capabilities are a superset
// of i.Capabilities. Ties are broken by lowest load factor, then
// lexicographic id.
func (r *Router) Route(i Intent) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if target, ok := r.byType[i.Type]; ok {
		return target, nil
	}

	key := capabilitySetKey(i.Capabilities)
	if target, ok := r.routeCache.Get(key); ok {
		return target, nil
	}

	var matches []Candidate
	for _, c := range r.candidates {
		if advertisesAll(r.graph, c.Capabilities, i.Capabilities) {
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 {
		return "", core.New(core.KindNoComponentsWithCapability, "no component advertises required capabilities for intent %q", i.Type)
	}

	sort.Slice(matches, func(a, b int) bool {
		if matches[a].LoadFactor != matches[b].LoadFactor {
			return matches[a].LoadFactor < matches[b].LoadFactor
		}
		return matches[a].ID < matches[b].ID
	})
	r.routeCache.Add(key, matches[0].ID)
	return matches[0].ID, nil
}

// capabilitySetKey canonicalizes a capability list into a stable cache
// key, independent of the order capabilities were attached to the intent.
func capabilitySetKey(caps []capability.Capability) string {
	parts := make([]string, len(caps))
	for i, c := range caps {
		parts[i] = c.Operation + ":" + c.Resource
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

func advertisesAll(graph *capability.Graph, advertised, required []capability.Capability) bool {
	for _, req := range required {
		ok := false
		for _, adv := range advertised {
			if graph.Implies(adv, req) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}
