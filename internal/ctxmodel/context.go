// Package ctxmodel implements the ICCR request-scoped Context: an
// immutable record of user/session identity, held capabilities, a
// propagation trace, and temporal constraints, plus the propagate and
// compose operations that carry it across components.
package ctxmodel

import (
	"github.com/google/uuid"

	"github.com/packetflow/iccr/internal/capability"
)

// Propagation selects how propagate() treats request_id and trace.
type Propagation string

const (
	PropagateInherit Propagation = "inherit"
	PropagateCopy    Propagation = "copy"
)

// CompositionStrategy selects how compose() reconciles two contexts.
type CompositionStrategy string

const (
	ComposeMerge    CompositionStrategy = "merge"
	ComposeOverride CompositionStrategy = "override"
)

// Constraint is a temporal predicate carried in a context or intent.
// Exactly one field beyond Kind is meaningful per Kind.
type Constraint struct {
	Kind    string // "before" | "after" | "during" | "within" | named pattern
	At      interface{}
	Pattern string
}

// Context is the immutable, request-scoped state propagated across
// ICCR components. Construct with New; every other operation returns
// a new Context rather than mutating the receiver.
type Context struct {
	UserID             string
	SessionID          string
	RequestID          string
	Capabilities       []capability.Capability
	Trace              []string
	TemporalConstraint []Constraint
	Metadata           map[string]any
}

// Attrs are the fields accepted by New; RequestID is minted if empty.
type Attrs struct {
	UserID             string
	SessionID          string
	RequestID          string
	Capabilities       []capability.Capability
	TemporalConstraint []Constraint
	Metadata           map[string]any
}

// New constructs an immutable Context. Capabilities are deduplicated
// into a set keyed by operation+resource, matching the data model
// invariant that a context's capabilities have no duplicates.
func New(a Attrs) Context {
	reqID := a.RequestID
	if reqID == "" {
		reqID = uuid.NewString()
	}
	return Context{
		UserID:             a.UserID,
		SessionID:          a.SessionID,
		RequestID:          reqID,
		Capabilities:       dedupe(a.Capabilities),
		Trace:              nil,
		TemporalConstraint: append([]Constraint(nil), a.TemporalConstraint...),
		Metadata:           copyMeta(a.Metadata),
	}
}

func dedupe(cs []capability.Capability) []capability.Capability {
	seen := make(map[string]bool, len(cs))
	out := make([]capability.Capability, 0, len(cs))
	for _, c := range cs {
		k := capability.Key(c)
		if !seen[k] {
			seen[k] = true
			out = append(out, c)
		}
	}
	return out
}

func copyMeta(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Propagate derives the context seen by target, one hop downstream.
//
// Under PropagateInherit: user_id, session_id, and capabilities are
// preserved, a fresh request_id is minted (unique per hop), and target
// is appended to trace.
//
// Under PropagateCopy: request_id and trace are preserved unchanged.
func (c Context) Propagate(target string, strategy Propagation) Context {
	switch strategy {
	case PropagateCopy:
		out := c
		out.Capabilities = append([]capability.Capability(nil), c.Capabilities...)
		out.Trace = append([]string(nil), c.Trace...)
		out.TemporalConstraint = append([]Constraint(nil), c.TemporalConstraint...)
		out.Metadata = copyMeta(c.Metadata)
		return out
	default: // PropagateInherit
		out := Context{
			UserID:             c.UserID,
			SessionID:          c.SessionID,
			RequestID:          uuid.NewString(),
			Capabilities:       append([]capability.Capability(nil), c.Capabilities...),
			Trace:              append(append([]string(nil), c.Trace...), target),
			TemporalConstraint: append([]Constraint(nil), c.TemporalConstraint...),
			Metadata:           copyMeta(c.Metadata),
		}
		return out
	}
}

// Compose reconciles two contexts per strategy.
//
// ComposeMerge: capabilities are set-unioned, traces are concatenated,
// a new request_id is minted, and user_id/session_id take c2's value.
//
// ComposeOverride: c2 wins entirely (returned as-is, deep-copied).
func Compose(c1, c2 Context, strategy CompositionStrategy) Context {
	if strategy == ComposeOverride {
		out := c2
		out.Capabilities = append([]capability.Capability(nil), c2.Capabilities...)
		out.Trace = append([]string(nil), c2.Trace...)
		out.TemporalConstraint = append([]Constraint(nil), c2.TemporalConstraint...)
		out.Metadata = copyMeta(c2.Metadata)
		return out
	}

	merged := dedupe(append(append([]capability.Capability(nil), c1.Capabilities...), c2.Capabilities...))
	meta := copyMeta(c1.Metadata)
	for k, v := range c2.Metadata {
		if meta == nil {
			meta = make(map[string]any)
		}
		meta[k] = v
	}
	return Context{
		UserID:             c2.UserID,
		SessionID:          c2.SessionID,
		RequestID:          uuid.NewString(),
		Capabilities:       merged,
		Trace:              append(append([]string(nil), c1.Trace...), c2.Trace...),
		TemporalConstraint: append(append([]Constraint(nil), c1.TemporalConstraint...), c2.TemporalConstraint...),
		Metadata:           meta,
	}
}
