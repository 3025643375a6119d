package capability

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Graph is a declared implication graph: a finite set of
// (parent operation) -> (child operations) edges. implies(a, b) holds
// iff a == b or a path from a.Operation to b.Operation exists in the
// graph (resource/wildcard matching applied at each node).
//
// The graph is read-mostly after Register: reachability per source
// operation is cached in an LRU (matching the cache-parsed-artifacts
// idiom used elsewhere in this codebase) and invalidated whenever the
// declared edges change.
type Graph struct {
	mu       sync.RWMutex
	children map[string][]string // operation -> directly implied operations
	reach    *lru.Cache[string, map[string]bool]
}

// NewGraph builds an empty implication graph.
func NewGraph() *Graph {
	cache, err := lru.New[string, map[string]bool](256)
	if err != nil {
		// Only fails for a non-positive size, which 256 never is.
		panic(fmt.Sprintf("capability: lru.New: %v", err))
	}
	return &Graph{
		children: make(map[string][]string),
		reach:    cache,
	}
}

// Register declares parent ⇒ children edges. It is a configuration
// error (returns an error) for the resulting graph to contain a cycle;
// the declaration is rejected in full and no edges are added.
func (g *Graph) Register(parent string, children ...string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	trial := make(map[string][]string, len(g.children)+1)
	for k, v := range g.children {
		trial[k] = append([]string(nil), v...)
	}
	trial[parent] = append(append([]string(nil), trial[parent]...), children...)

	if cyc := findCycle(trial); cyc != "" {
		return fmt.Errorf("capability: registering %q would create a cycle through %q", parent, cyc)
	}

	g.children = trial
	g.reach.Purge()
	return nil
}

// findCycle runs DFS coloring over the declared edges and returns the
// first operation found on a cycle, or "" if the graph is acyclic.
func findCycle(children map[string][]string) string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int)
	var visit func(n string) string
	visit = func(n string) string {
		color[n] = gray
		for _, c := range children[n] {
			switch color[c] {
			case gray:
				return c
			case white:
				if cyc := visit(c); cyc != "" {
					return cyc
				}
			}
		}
		color[n] = black
		return ""
	}
	for n := range children {
		if color[n] == white {
			if cyc := visit(n); cyc != "" {
				return cyc
			}
		}
	}
	return ""
}

// reachable returns the set of operations transitively implied by op,
// not including op itself, computing and caching on first query.
func (g *Graph) reachable(op string) map[string]bool {
	g.mu.RLock()
	if cached, ok := g.reach.Get(op); ok {
		g.mu.RUnlock()
		return cached
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()
	if cached, ok := g.reach.Get(op); ok {
		return cached
	}

	visited := make(map[string]bool)
	var walk func(n string)
	walk = func(n string) {
		for _, c := range g.children[n] {
			if !visited[c] {
				visited[c] = true
				walk(c)
			}
		}
	}
	walk(op)
	g.reach.Add(op, visited)
	return visited
}

// Implies reports whether a implies b: a == b, or a path exists from
// a.Operation to b.Operation in the declared graph, with resource
// matching (including :any wildcards) applied.
func (g *Graph) Implies(a, b Capability) bool {
	if Equal(a, b) {
		return true
	}
	if a.Operation == b.Operation {
		return sameOperationResource(a, b)
	}
	reach := g.reachable(a.Operation)
	if !reach[b.Operation] {
		return false
	}
	return a.Resource == AnyResource || b.Resource == AnyResource || a.Resource == b.Resource
}

// Grants returns the capabilities directly and transitively granted by
// c (excluding c itself), one Capability per reachable operation, at
// c's resource.
func (g *Graph) Grants(c Capability) []Capability {
	reach := g.reachable(c.Operation)
	out := make([]Capability, 0, len(reach))
	for op := range reach {
		out = append(out, Capability{Operation: op, Resource: c.Resource, Constraints: c.Constraints})
	}
	return out
}

// Compose returns the transitive closure of declared grants over the
// input multiset: for each input capability, the union of {c} and
// Grants(c). The result is deduplicated by operation+resource and is
// both idempotent (Compose(Compose(s)) == Compose(s)) and
// order-independent.
func (g *Graph) Compose(cs []Capability) []Capability {
	seen := make(map[string]Capability)
	for _, c := range cs {
		seen[Key(c)] = c
		for _, granted := range g.Grants(c) {
			if _, ok := seen[Key(granted)]; !ok {
				seen[Key(granted)] = granted
			}
		}
	}
	out := make([]Capability, 0, len(seen))
	for _, c := range seen {
		out = append(out, c)
	}
	return out
}
