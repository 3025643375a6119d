package capability

import (
	"time"

	"github.com/packetflow/iccr/internal/core"
)

// ValidAt reports whether cap is valid at time t. A capability with no
// Constraints is valid at all times; a Window constraint is checked as
// a half-open [Start, End) interval; a named Pattern is resolved
// against the supplied PatternResolver.
func ValidAt(cap Capability, t time.Time, patterns PatternResolver) bool {
	if cap.Constraints == nil {
		return true
	}
	if w := cap.Constraints.Window; w != nil {
		if !(!t.Before(w.Start) && t.Before(w.End)) {
			return false
		}
	}
	if cap.Constraints.Pattern != "" {
		if patterns == nil {
			return false
		}
		return patterns.Matches(cap.Constraints.Pattern, t)
	}
	return true
}

// PatternResolver answers whether a named temporal pattern
// ("business_hours", "weekdays", ...) holds at t. Implemented by the
// temporal package; kept as a narrow interface here to avoid a package
// cycle (capability is a leaf dependency per the declared build order).
type PatternResolver interface {
	Matches(pattern string, t time.Time) bool
}

// Check verifies that `have` (the capabilities a context carries)
// authorizes `required` (the capability an intent/reactor demands) at
// time t. It returns core.KindInsufficientCapabilities when no
// capability in have implies required regardless of time, and
// core.KindTemporalConstraintViol when implication holds but the
// granting capability (or the required one) fails its time window.
func Check(graph *Graph, have []Capability, required Capability, t time.Time, patterns PatternResolver) error {
	var impliedButExpired bool
	for _, h := range have {
		if graph.Implies(h, required) {
			if ValidAt(h, t, patterns) && ValidAt(required, t, patterns) {
				return nil
			}
			impliedButExpired = true
		}
	}
	if impliedButExpired {
		return core.New(core.KindTemporalConstraintViol, "capability %s not valid at %s", required, t)
	}
	return core.New(core.KindInsufficientCapabilities, "no held capability implies %s", required)
}

// CheckAll verifies every capability in required is authorized by have.
func CheckAll(graph *Graph, have []Capability, required []Capability, t time.Time, patterns PatternResolver) error {
	for _, r := range required {
		if err := Check(graph, have, r, t, patterns); err != nil {
			return err
		}
	}
	return nil
}
