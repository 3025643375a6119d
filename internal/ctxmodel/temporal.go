package ctxmodel

import (
	"time"

	"github.com/packetflow/iccr/internal/core"
)

// ConstraintChecker evaluates a single temporal Constraint against a
// point in time. Implemented by the temporal package; declared here to
// avoid a ctxmodel -> temporal import cycle (ctxmodel is a dependency
// of temporal per the declared build order: Context before Temporal).
type ConstraintChecker interface {
	Check(c Constraint, t time.Time) (violationReason string, violated bool)
}

// ValidateTemporalConstraints iterates ctx.TemporalConstraint in
// declaration order and short-circuits on the first violation,
// returning a core.KindTemporalConstraintViol error naming the
// violated reason (e.g. "outside_business_hours").
func ValidateTemporalConstraints(ctx Context, t time.Time, checker ConstraintChecker) error {
	for _, c := range ctx.TemporalConstraint {
		if reason, violated := checker.Check(c, t); violated {
			return core.New(core.KindTemporalConstraintViol, "%s", reason)
		}
	}
	return nil
}
