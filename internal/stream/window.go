package stream

import (
	"time"

	"github.com/packetflow/iccr/internal/ctxmodel"
)

// windowState accumulates events for the configured windowing
// strategy and decides, on each arrival, whether the window should
// close (triggering processing) before or after the new event is
// appended.
type windowState struct {
	kind WindowKind

	timeSize   time.Duration
	windowStart time.Time

	countSize int

	sessionGap time.Duration
	lastArrive time.Time

	events []Event
}

func newWindowState(cfg Config) windowState {
	return windowState{
		kind:       cfg.Window,
		timeSize:   cfg.TimeSize,
		countSize:  cfg.CountSize,
		sessionGap: cfg.SessionGap,
	}
}

// Arrive appends e to the current window and reports whether the
// window should now be processed (and a new one started). The events
// slice returned is the window's events at the moment of closing; when
// arrive does not close the window, the returned slice is nil.
func (w *windowState) Arrive(e Event) (closed []Event, shouldProcess bool) {
	switch w.kind {
	case WindowTime:
		return w.arriveTime(e)
	case WindowCount:
		return w.arriveCount(e)
	case WindowSession:
		return w.arriveSession(e)
	default:
		return w.arriveCount(e)
	}
}

// arriveTime implements the [start, start+size) time window: an event
// arriving before the boundary appends; an event at or after it
// closes the current window (without itself) and starts a new window
// beginning at this arrival.
func (w *windowState) arriveTime(e Event) ([]Event, bool) {
	if w.windowStart.IsZero() {
		w.windowStart = e.Timestamp
	}
	boundary := w.windowStart.Add(w.timeSize)
	if e.Timestamp.Before(boundary) {
		w.events = append(w.events, e)
		return nil, false
	}
	closed := w.events
	w.events = []Event{e}
	w.windowStart = e.Timestamp
	return closed, true
}

// arriveCount implements the fixed-size count window: the Nth arrival
// triggers processing of all N events and starts a fresh window.
func (w *windowState) arriveCount(e Event) ([]Event, bool) {
	w.events = append(w.events, e)
	if len(w.events) >= w.countSize && w.countSize > 0 {
		closed := w.events
		w.events = nil
		return closed, true
	}
	return nil, false
}

// arriveSession implements the session window: an arrival within
// sessionGap of the previous one extends the session; an arrival
// beyond the gap closes the prior session (without the new event) and
// starts a new one.
func (w *windowState) arriveSession(e Event) ([]Event, bool) {
	if w.lastArrive.IsZero() {
		w.lastArrive = e.Timestamp
		w.events = append(w.events, e)
		return nil, false
	}
	gap := e.Timestamp.Sub(w.lastArrive)
	w.lastArrive = e.Timestamp
	if gap > w.sessionGap {
		closed := w.events
		w.events = []Event{e}
		return closed, true
	}
	w.events = append(w.events, e)
	return nil, false
}

// OnWindowTick is invoked on a time/count threshold from outside the
// arrival path (e.g. a ticking timer for time windows that would
// otherwise only close on the next event). It forces the current
// window closed and returns its events, starting a fresh empty window.
func (w *windowState) OnWindowTick(at time.Time) []Event {
	closed := w.events
	w.events = nil
	if w.kind == WindowTime {
		w.windowStart = at
	}
	if w.kind == WindowSession {
		w.lastArrive = time.Time{}
	}
	return closed
}

// SendWindowed admits an event into the stream and, if the window closes as a
// result, runs proc over the closed window's events and returns its
// emitted effects.
func (s *Stream) SendWindowed(payload any, ctx ctxmodel.Context, proc WindowProcessFunc) (Event, []any, error) {
	e, err := s.SendEvent(payload, ctx)
	if err != nil {
		return Event{}, nil, err
	}

	s.mu.Lock()
	closed, shouldProcess := s.window.Arrive(e)
	s.mu.Unlock()

	if !shouldProcess || proc == nil {
		return e, nil, nil
	}
	return e, proc(closed), nil
}

// OnWindowTick forces the current window to close, processes its
// events with proc, and returns the emitted effects.
func (s *Stream) OnWindowTick(proc WindowProcessFunc) []any {
	s.mu.Lock()
	closed := s.window.OnWindowTick(s.now())
	s.mu.Unlock()
	if proc == nil {
		return nil
	}
	return proc(closed)
}
