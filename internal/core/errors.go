// Package core holds the error-kind vocabulary shared by every ICCR
// component (capability, context, intent, reactor, stream, temporal,
// registry, comm, monitoring, dynconfig).
package core

import (
	"errors"
	"fmt"
)

// Kind is one of the error kinds enumerated in the runtime's error
// handling design. Components wrap a Kind with context via WithReason
// so callers can still match on the sentinel with errors.Is.
type Kind string

const (
	KindInsufficientCapabilities   Kind = "insufficient_capabilities"
	KindTemporalConstraintViol     Kind = "temporal_constraint_violation"
	KindInvalidIntent              Kind = "invalid_intent"
	KindUnsupportedIntent          Kind = "unsupported_intent"
	KindNoComponentsWithCapability Kind = "no_components_with_capability"
	KindNoHealthyComponents        Kind = "no_healthy_components"
	KindBackpressureBlocked        Kind = "backpressure_blocked"
	KindBackpressureThrottled      Kind = "backpressure_throttled"
	KindBufferOverflow             Kind = "buffer_overflow"
	KindValidationFailed           Kind = "validation_failed"
	KindSchemaNotFound             Kind = "schema_not_found"
	KindComponentNotFound          Kind = "component_not_found"
	KindComponentAlreadyRegistered Kind = "component_already_registered"
	KindDependencyCycle            Kind = "dependency_cycle"
	KindDependentComponentsExist   Kind = "dependent_components_exist"
	KindTimeout                    Kind = "timeout"
	KindTargetNotFound              Kind = "target_not_found"
	KindPartialFailure              Kind = "partial_failure"
	KindTemplateNotForEnvironment   Kind = "template_not_for_environment"
	KindVersionNotFound             Kind = "version_not_found"
)

// Error is the concrete error value carrying a Kind plus free-form
// detail and, for the kinds that need it, structured payload (the list
// of dependents, the partial-failure count, ...).
type Error struct {
	Kind    Kind
	Message string
	Payload any
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is lets errors.Is(err, SomeKind) work by comparing Kind against a
// sentinel constructed with New(kind, "").
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Kind == te.Kind
	}
	return false
}

// New builds an *Error for the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithPayload attaches structured detail (e.g. []string of dependent
// ids, or an int partial-failure count) to an error.
func WithPayload(kind Kind, payload any, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Payload: payload}
}

// Sentinel builds a bare Error usable with errors.Is as a comparison
// target: errors.Is(err, core.Sentinel(core.KindTimeout)).
func Sentinel(kind Kind) error { return &Error{Kind: kind} }

// KindOf extracts the Kind of err, if it (or something it wraps) is a
// *Error. The second return is false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
