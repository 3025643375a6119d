// Package capability implements the ICCR permission algebra: tagged
// capability values, a declared implication graph, transitive closure,
// and composition over multisets of capabilities.
package capability

import (
	"fmt"
	"time"
)

// Capability is a tagged permission value: an operation over a
// resource, with optional time-window or named-pattern constraints.
type Capability struct {
	Operation   string
	Resource    string
	Constraints *Constraints
}

// Constraints carries a temporal window or a named pattern that gates
// when the capability is valid. At most one of Window/Pattern is set;
// a zero Constraints means "valid at all times".
type Constraints struct {
	Window  *Window
	Pattern string // "business_hours" | "weekdays" | ...
}

// Window is a half-open [Start, End) interval.
type Window struct {
	Start time.Time
	End   time.Time
}

// AnyResource is the wildcard resource matcher: "{op, :any}" implies
// "{op, r}" for any concrete r.
const AnyResource = ":any"

func (c Capability) String() string {
	return fmt.Sprintf("%s:%s", c.Operation, c.Resource)
}

// New builds a capability with no constraints.
func New(operation, resource string) Capability {
	return Capability{Operation: operation, Resource: resource}
}

// WithWindow returns a copy of c constrained to the half-open window.
func (c Capability) WithWindow(start, end time.Time) Capability {
	c.Constraints = &Constraints{Window: &Window{Start: start, End: end}}
	return c
}

// WithPattern returns a copy of c constrained to a named temporal pattern.
func (c Capability) WithPattern(pattern string) Capability {
	c.Constraints = &Constraints{Pattern: pattern}
	return c
}

// sameOperationResource reports whether a and b refer to the same
// operation/resource pair, honoring the :any wildcard on either side.
func sameOperationResource(a, b Capability) bool {
	if a.Operation != b.Operation {
		return false
	}
	if a.Resource == AnyResource || b.Resource == AnyResource {
		return true
	}
	return a.Resource == b.Resource
}

// Equal reports whether a and b name the same capability (operation
// and resource match exactly; constraints are not compared). Equal
// is stricter than sameOperationResource: it does not honor wildcards.
func Equal(a, b Capability) bool {
	return a.Operation == b.Operation && a.Resource == b.Resource
}

// Key returns a canonical map/set key for a capability, ignoring
// constraints (capability sets dedupe on operation+resource identity).
func Key(c Capability) string {
	return c.Operation + "\x00" + c.Resource
}
