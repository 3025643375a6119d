// Package temporal implements the ICCR temporal layer: time operators
// over constraints, named business-hours/weekday/maintenance patterns,
// and the intent scheduler. It implements capability.PatternResolver
// and ctxmodel.ConstraintChecker, the two narrow interfaces those
// lower packages declare to stay leaves in the build order.
package temporal

import (
	"time"

	"github.com/packetflow/iccr/internal/ctxmodel"
)

// BusinessHours configures the default business-hours pattern window,
// in UTC hour-of-day, and the weekday pattern's working days.
type BusinessHours struct {
	StartHour int
	EndHour   int
	Weekdays  map[time.Weekday]bool
}

// DefaultBusinessHours is [09:00, 17:00) UTC, Monday-Friday.
func DefaultBusinessHours() BusinessHours {
	return BusinessHours{
		StartHour: 9,
		EndHour:   17,
		Weekdays: map[time.Weekday]bool{
			time.Monday: true, time.Tuesday: true, time.Wednesday: true,
			time.Thursday: true, time.Friday: true,
		},
	}
}

// MaintenanceWindow is a named recurring interval (e.g. a weekly patch
// window) checked by the "maintenance_window" pattern.
type MaintenanceWindow struct {
	Weekday   time.Weekday
	StartHour int
	EndHour   int
}

// Resolver evaluates named patterns and operator-based constraints
// against a point in time.
type Resolver struct {
	business    BusinessHours
	maintenance []MaintenanceWindow
}

// NewResolver builds a Resolver with the given business-hours
// configuration and zero maintenance windows; add them with
// AddMaintenanceWindow. That one configuration applies to every
// check; there is no per-component business-hours override.
func NewResolver(business BusinessHours) *Resolver {
	return &Resolver{business: business}
}

// AddMaintenanceWindow registers a recurring maintenance window.
func (r *Resolver) AddMaintenanceWindow(w MaintenanceWindow) {
	r.maintenance = append(r.maintenance, w)
}

// Matches implements capability.PatternResolver.
func (r *Resolver) Matches(pattern string, t time.Time) bool {
	switch pattern {
	case "business_hours":
		return r.isBusinessHours(t)
	case "weekdays":
		return r.business.Weekdays[t.UTC().Weekday()]
	case "maintenance_window":
		return r.inMaintenanceWindow(t)
	default:
		return false
	}
}

func (r *Resolver) isBusinessHours(t time.Time) bool {
	u := t.UTC()
	if !r.business.Weekdays[u.Weekday()] {
		return false
	}
	hour := u.Hour()
	return hour >= r.business.StartHour && hour < r.business.EndHour
}

func (r *Resolver) inMaintenanceWindow(t time.Time) bool {
	u := t.UTC()
	for _, w := range r.maintenance {
		if u.Weekday() == w.Weekday && u.Hour() >= w.StartHour && u.Hour() < w.EndHour {
			return true
		}
	}
	return false
}

// Check implements ctxmodel.ConstraintChecker: it evaluates a single
// temporal Constraint against t and, if violated, reports a reason
// string from a fixed vocabulary (outside_business_hours,
// during_maintenance_window, ...).
func (r *Resolver) Check(c ctxmodel.Constraint, t time.Time) (string, bool) {
	switch c.Kind {
	case "before":
		at, ok := c.At.(time.Time)
		if ok && !t.Before(at) {
			return "not_before_" + c.Kind, true
		}
	case "after":
		at, ok := c.At.(time.Time)
		if ok && !t.After(at) {
			return "not_after_" + c.Kind, true
		}
	case "during":
		w, ok := c.At.(Interval)
		if ok && !during(w, t) {
			return "outside_interval", true
		}
	case "within":
		d, ok := c.At.(time.Duration)
		if ok && !Within(d, t) {
			return "outside_window", true
		}
	case "business_hours":
		if !r.isBusinessHours(t) {
			return "outside_business_hours", true
		}
	case "weekdays":
		if !r.business.Weekdays[t.UTC().Weekday()] {
			return "not_a_weekday", true
		}
	case "maintenance_window":
		if !r.inMaintenanceWindow(t) {
			return "not_during_maintenance_window", true
		}
	}
	return "", false
}

// Interval is a closed time interval used by the "during" operator.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Before reports whether t is strictly before at.
func Before(t, at time.Time) bool { return t.Before(at) }

// After reports whether t is strictly after at.
func After(t, at time.Time) bool { return t.After(at) }

// During reports whether t falls within the closed interval [w.Start, w.End].
func During(w Interval, t time.Time) bool { return during(w, t) }

func during(w Interval, t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Overlap reports whether intervals a and b share any instant.
func Overlap(a, b Interval) bool {
	return !a.End.Before(b.Start) && !b.End.Before(a.Start)
}

// Duration returns the length of interval w.
func Duration(w Interval) time.Duration { return w.End.Sub(w.Start) }

// Within reports whether t is within duration d of Now().
func Within(d time.Duration, t time.Time) bool {
	return Now().Sub(t) <= d
}

// Now is the temporal layer's clock hook, overridable in tests.
var Now = time.Now
