package stream

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/packetflow/iccr/internal/capability"
	"github.com/packetflow/iccr/internal/core"
	"github.com/packetflow/iccr/internal/ctxmodel"
)

// ProcessFunc handles a single admitted event against the stream's
// opaque state, subject to a capability check against ctx (mirroring
// the reactor contract).
type ProcessFunc func(e Event, ctx ctxmodel.Context, state any) (nextState any, effects []any, err error)

// WindowProcessFunc is invoked once a window closes, given the
// window's accumulated events; its return value becomes the window's
// emitted effects. It is a pure function of the event list.
type WindowProcessFunc func(events []Event) []any

// Metrics is a snapshot of a stream's monitoring counters.
type Metrics struct {
	Processed          int64
	Errors              int64
	BackpressureEvents  int64
	BufferLength        int
	ProcessingRate       float64 // processed / elapsed seconds
	ErrorRate            float64 // errors / (processed+errors)
	AvgLatencyMS         float64 // EMA
}

// Stream is a continuous event sequence with a bounded buffer, a
// pluggable backpressure policy, and one of three windowing
// strategies. Like a reactor, a Stream instance is single-writer: all
// public methods serialize on mu, so it can be driven from a single
// owning goroutine's mailbox without extra locking at call sites.
type Stream struct {
	mu     sync.Mutex
	cfg    Config
	graph  *capability.Graph

	buffer []Event
	nextID int64

	window windowState

	processed         int64
	errorsCount       int64
	backpressureCount int64
	avgLatencyMS      float64
	startedAt         time.Time

	throttleLimiter *rate.Limiter
	adaptiveRate    float64
	adaptiveLimiter *rate.Limiter

	now func() time.Time
}

// New constructs a Stream. graph authorizes process_event capability
// checks.
func New(cfg Config, graph *capability.Graph) *Stream {
	s := &Stream{
		cfg:             cfg,
		graph:           graph,
		startedAt:       time.Now(),
		adaptiveRate:    cfg.AdaptiveInitial,
		throttleLimiter: rate.NewLimiter(throttleLimit(cfg.ThrottleRateMS), 1),
		adaptiveLimiter: rate.NewLimiter(adaptiveLimit(cfg.AdaptiveInitial), 1),
		now:             time.Now,
	}
	s.window = newWindowState(cfg)
	return s
}

// throttleLimit converts the configured per-admit gate into a token
// rate: one token every throttleMS milliseconds, or unbounded when
// unset.
func throttleLimit(throttleMS int64) rate.Limit {
	if throttleMS <= 0 {
		return rate.Inf
	}
	return rate.Every(time.Duration(throttleMS) * time.Millisecond)
}

// adaptiveLimit converts an admits-per-second target into a rate.Limit,
// unbounded when unset.
func adaptiveLimit(admitsPerSecond float64) rate.Limit {
	if admitsPerSecond <= 0 {
		return rate.Inf
	}
	return rate.Limit(admitsPerSecond)
}

// SendEvent admits payload, applying the configured backpressure
// policy when the buffer is at capacity. It returns the admitted
// Event, or an error if the policy rejects admission.
func (s *Stream) SendEvent(payload any, ctx ctxmodel.Context) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	e := Event{ID: s.nextID, Payload: payload, Timestamp: s.now()}

	full := len(s.buffer) >= s.cfg.Capacity && s.cfg.Capacity > 0
	if full {
		switch s.cfg.Backpressure {
		case DropOldest:
			s.buffer = append(s.buffer[1:], e)
			return e, nil
		case DropNewest:
			s.backpressureCount++
			return e, nil
		case Block:
			return Event{}, core.Sentinel(core.KindBackpressureBlocked)
		case Throttle:
			if !s.throttleLimiter.Allow() {
				return Event{}, core.Sentinel(core.KindBackpressureThrottled)
			}
			s.buffer = append(s.buffer, e)
			return e, nil
		case Adaptive:
			s.applyAdaptive()
			if !s.adaptiveLimiter.Allow() {
				s.backpressureCount++
				return Event{}, core.Sentinel(core.KindBackpressureThrottled)
			}
			s.buffer = append(s.buffer, e)
			return e, nil
		case Buffer:
			s.buffer = append(s.buffer, e)
			return e, nil
		default:
			return Event{}, core.New(core.KindBufferOverflow, "buffer full (capacity %d)", s.cfg.Capacity)
		}
	}

	if s.cfg.Backpressure == Throttle && !s.throttleLimiter.Allow() {
		return Event{}, core.Sentinel(core.KindBackpressureThrottled)
	}
	if s.cfg.Backpressure == Adaptive && !s.adaptiveLimiter.Allow() {
		s.backpressureCount++
		return Event{}, core.Sentinel(core.KindBackpressureThrottled)
	}

	s.buffer = append(s.buffer, e)
	return e, nil
}

// applyAdaptive recomputes the adaptive throughput target: reduce by
// 10% when the buffer is above 80% capacity, otherwise increase by
// 10%, never below the configured floor. The new target is pushed into
// adaptiveLimiter immediately, so the next SendEvent call — on this
// buffer or an empty one — is actually admitted or rejected at the
// recomputed rate instead of the stale one.
func (s *Stream) applyAdaptive() {
	if s.cfg.Capacity == 0 {
		return
	}
	fill := float64(len(s.buffer)) / float64(s.cfg.Capacity)
	if fill > 0.8 {
		s.adaptiveRate *= 0.9
	} else {
		s.adaptiveRate *= 1.1
	}
	if s.adaptiveRate < s.cfg.AdaptiveFloor {
		s.adaptiveRate = s.cfg.AdaptiveFloor
	}
	s.adaptiveLimiter.SetLimit(adaptiveLimit(s.adaptiveRate))
}

// AdaptiveRate returns the current adaptive admission rate target.
func (s *Stream) AdaptiveRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adaptiveRate
}

// BufferLen returns the current buffer length.
func (s *Stream) BufferLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffer)
}

// Buffered returns a copy of the currently buffered events, in
// admission order.
func (s *Stream) Buffered() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.buffer...)
}

// ProcessEvent pops the oldest buffered event (if any) and runs fn
// against it, subject to a capability check against ctx. Errors
// increment the error counter but never drop the stream: they are
// reported to the caller and otherwise isolated from the rest of the
// pipeline.
func (s *Stream) ProcessEvent(ctx ctxmodel.Context, required []capability.Capability, state any, fn ProcessFunc) (any, []any, error) {
	s.mu.Lock()
	if len(s.buffer) == 0 {
		s.mu.Unlock()
		return state, nil, nil
	}
	e := s.buffer[0]
	s.buffer = s.buffer[1:]
	s.mu.Unlock()

	if err := capability.CheckAll(s.graph, ctx.Capabilities, required, s.now(), nil); err != nil {
		s.mu.Lock()
		s.errorsCount++
		s.mu.Unlock()
		return state, nil, err
	}

	start := s.now()
	nextState, effects, err := fn(e, ctx, state)
	latency := s.now().Sub(start)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.errorsCount++
		return state, nil, err
	}
	s.processed++
	s.observeLatency(latency)
	return nextState, effects, nil
}

func (s *Stream) observeLatency(d time.Duration) {
	const alpha = 0.2
	ms := float64(d.Microseconds()) / 1000.0
	if s.avgLatencyMS == 0 {
		s.avgLatencyMS = ms
		return
	}
	s.avgLatencyMS = alpha*ms + (1-alpha)*s.avgLatencyMS
}

// GetMetrics returns a snapshot of the stream's monitoring counters.
func (s *Stream) GetMetrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := s.now().Sub(s.startedAt).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(s.processed) / elapsed
	}
	var errRate float64
	if total := s.processed + s.errorsCount; total > 0 {
		errRate = float64(s.errorsCount) / float64(total)
	}
	return Metrics{
		Processed:         s.processed,
		Errors:             s.errorsCount,
		BackpressureEvents: s.backpressureCount,
		BufferLength:       len(s.buffer),
		ProcessingRate:     rate,
		ErrorRate:          errRate,
		AvgLatencyMS:       s.avgLatencyMS,
	}
}
