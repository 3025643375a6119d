// Package stream implements the ICCR stream engine: event admission
// with pluggable backpressure, three windowing strategies, and
// per-stream monitoring, matching the real-time event-bus idiom this
// codebase already uses for dashboard broadcast (internal/realtime).
package stream

import "time"

// Event is a single admitted item of a stream.
type Event struct {
	ID        int64
	Payload   any
	Timestamp time.Time
}

// BackpressureStrategy selects how Send behaves when the buffer is at
// capacity.
type BackpressureStrategy string

const (
	DropOldest BackpressureStrategy = "drop_oldest"
	DropNewest BackpressureStrategy = "drop_newest"
	Block      BackpressureStrategy = "block"
	Throttle   BackpressureStrategy = "throttle"
	Buffer     BackpressureStrategy = "buffer"
	Adaptive   BackpressureStrategy = "adaptive"
)

// WindowKind selects the windowing strategy applied to admitted events.
type WindowKind string

const (
	WindowTime    WindowKind = "time"
	WindowCount   WindowKind = "count"
	WindowSession WindowKind = "session"
)
