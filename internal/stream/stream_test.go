package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetflow/iccr/internal/capability"
	"github.com/packetflow/iccr/internal/core"
	"github.com/packetflow/iccr/internal/ctxmodel"
)

func newTestStream(cfg Config) *Stream {
	return New(cfg, capability.NewGraph())
}

func TestDropOldestKeepsCapacityAndNewestSurvivors(t *testing.T) {
	s := newTestStream(Config{Capacity: 5, Backpressure: DropOldest})
	ctx := ctxmodel.New(ctxmodel.Attrs{})

	for i := 0; i < 10; i++ {
		_, err := s.SendEvent(i, ctx)
		require.NoError(t, err)
	}

	buffered := s.Buffered()
	require.Len(t, buffered, 5)
	ids := make([]int64, len(buffered))
	for i, e := range buffered {
		ids[i] = e.ID
	}
	assert.Equal(t, []int64{6, 7, 8, 9, 10}, ids)
}

func TestBlockRejectsOnFullBuffer(t *testing.T) {
	s := newTestStream(Config{Capacity: 5, Backpressure: Block})
	ctx := ctxmodel.New(ctxmodel.Attrs{})

	for i := 0; i < 5; i++ {
		_, err := s.SendEvent(i, ctx)
		require.NoError(t, err)
	}

	_, err := s.SendEvent(6, ctx)
	kind, ok := core.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, core.KindBackpressureBlocked, kind)
}

func TestAdaptiveRejectsOnceRateExhaustedEvenBelowCapacity(t *testing.T) {
	s := newTestStream(Config{
		Capacity:        10,
		Backpressure:    Adaptive,
		AdaptiveInitial: 0.001,
		AdaptiveFloor:   0.001,
	})
	ctx := ctxmodel.New(ctxmodel.Attrs{})

	_, err := s.SendEvent(1, ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, s.BufferLen())

	// The buffer is nowhere near capacity, but the adaptive rate limiter's
	// single burst token is already spent, so this admit must be rejected
	// rather than silently buffered like an unbounded Buffer strategy would.
	_, err = s.SendEvent(2, ctx)
	kind, ok := core.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, core.KindBackpressureThrottled, kind)
	assert.Equal(t, 1, s.BufferLen())
	assert.Equal(t, int64(1), s.GetMetrics().BackpressureEvents)
}

func TestAdaptiveTightensRateAsBufferFillsPastThreshold(t *testing.T) {
	s := newTestStream(Config{
		Capacity:        5,
		Backpressure:    Adaptive,
		AdaptiveInitial: 1e6,
		AdaptiveFloor:   1,
	})
	ctx := ctxmodel.New(ctxmodel.Attrs{})
	before := s.AdaptiveRate()

	for i := 0; i < 5; i++ {
		_, err := s.SendEvent(i, ctx)
		require.NoError(t, err)
	}

	// Buffer is now at capacity (fill > 0.8), so the next admit recomputes
	// a lower target via applyAdaptive before it's evaluated.
	_, _ = s.SendEvent(5, ctx)
	assert.Less(t, s.AdaptiveRate(), before)
}

func TestDropNewestDiscardsSilentlyAndCounts(t *testing.T) {
	s := newTestStream(Config{Capacity: 2, Backpressure: DropNewest})
	ctx := ctxmodel.New(ctxmodel.Attrs{})

	for i := 0; i < 4; i++ {
		_, err := s.SendEvent(i, ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, s.BufferLen())
	assert.Equal(t, int64(2), s.GetMetrics().BackpressureEvents)
}

func TestCountWindowEmitsExactlyNAndResets(t *testing.T) {
	s := newTestStream(Config{Capacity: 0, Backpressure: Buffer, Window: WindowCount, CountSize: 3})
	ctx := ctxmodel.New(ctxmodel.Attrs{})

	var captured []Event
	proc := func(events []Event) []any {
		captured = events
		return []any{len(events)}
	}

	for i := 0; i < 2; i++ {
		_, effects, err := s.SendWindowed(i, ctx, proc)
		require.NoError(t, err)
		assert.Nil(t, effects)
	}
	_, effects, err := s.SendWindowed(2, ctx, proc)
	require.NoError(t, err)
	require.Len(t, effects, 1)
	assert.Len(t, captured, 3)

	// window reset: next arrival starts counting from zero again
	_, effects, err = s.SendWindowed(3, ctx, proc)
	require.NoError(t, err)
	assert.Nil(t, effects)
}

func TestTimeWindowBoundaryTriggersNewWindow(t *testing.T) {
	s := newTestStream(Config{Capacity: 0, Backpressure: Buffer, Window: WindowTime, TimeSize: 100 * time.Millisecond})
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return t0 }
	ctx := ctxmodel.New(ctxmodel.Attrs{})

	var captured []Event
	proc := func(events []Event) []any { captured = events; return []any{len(events)} }

	_, _, err := s.SendWindowed("a", ctx, proc)
	require.NoError(t, err)

	s.now = func() time.Time { return t0.Add(100 * time.Millisecond) }
	_, effects, err := s.SendWindowed("b", ctx, proc)
	require.NoError(t, err)
	require.Len(t, effects, 1)
	assert.Len(t, captured, 1, "the boundary event itself starts the new window, not the old one")
}

func TestSessionWindowSplitsOnGap(t *testing.T) {
	s := newTestStream(Config{Capacity: 0, Backpressure: Buffer, Window: WindowSession, SessionGap: 100 * time.Millisecond})
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := ctxmodel.New(ctxmodel.Attrs{})

	var sessions [][]Event
	proc := func(events []Event) []any {
		sessions = append(sessions, events)
		return nil
	}

	arrivals := []time.Duration{0, 50 * time.Millisecond, 90 * time.Millisecond, 300 * time.Millisecond}
	for _, d := range arrivals {
		s.now = func(d time.Duration) func() time.Time {
			return func() time.Time { return t0.Add(d) }
		}(d)
		_, _, err := s.SendWindowed("x", ctx, proc)
		require.NoError(t, err)
	}

	require.Len(t, sessions, 1, "only the closed first session has been flushed by arrival")
	assert.Len(t, sessions[0], 3)
}
