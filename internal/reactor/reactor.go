// Package reactor implements the ICCR reactor contract: a stateful
// processor that consumes {intent, context} and yields (state', effects)
// under single-writer, serialized processing per instance.
package reactor

import (
	"sync"
	"time"

	"github.com/packetflow/iccr/internal/capability"
	"github.com/packetflow/iccr/internal/core"
	"github.com/packetflow/iccr/internal/ctxmodel"
	"github.com/packetflow/iccr/internal/intent"
)

// EffectStatus is the lifecycle stage of an Effect.
type EffectStatus string

const (
	EffectPending   EffectStatus = "pending"
	EffectRunning   EffectStatus = "running"
	EffectCompleted EffectStatus = "completed"
	EffectFailed    EffectStatus = "failed"
)

// Effect is the sole externally observable outcome of a reactor step.
type Effect struct {
	Intent       intent.Intent
	Capabilities []capability.Capability
	Context      ctxmodel.Context
	Continuation func() error
	Status       EffectStatus
}

// Handler is a reactor-defined per-intent-type processing function. It
// receives the current opaque state and must return the next state
// plus zero or more effects, or an error. Handlers never mutate state
// in place: Reactor.state is only replaced by the handler's returned
// value, and only when err == nil.
type Handler func(i intent.Intent, ctx ctxmodel.Context, state any) (nextState any, effects []Effect, err error)

// Reactor is a single-writer stateful processor: ProcessIntent is
// internally serialized via mu, giving it the mailbox-actor semantics
// the runtime models every long-lived component on (see DESIGN.md).
type Reactor struct {
	mu    sync.Mutex
	state any
	graph *capability.Graph

	handlers map[string]Handler
	patterns capability.PatternResolver

	now func() time.Time
}

// New constructs a Reactor with initial state and the capability graph
// used to authorize incoming intents.
func New(initialState any, graph *capability.Graph, patterns capability.PatternResolver) *Reactor {
	return &Reactor{
		state:    initialState,
		graph:    graph,
		handlers: make(map[string]Handler),
		patterns: patterns,
		now:      time.Now,
	}
}

// Register binds a Handler to the intent types it accepts.
func (r *Reactor) Register(handler Handler, intentTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range intentTypes {
		r.handlers[t] = handler
	}
}

// State returns a snapshot of the reactor's current opaque state.
// Callers must not mutate the returned value.
func (r *Reactor) State() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// ProcessIntent is the reactor contract's single entry point.
//
// Invariants enforced here regardless of what the handler does:
//   - capability check happens before any handler runs, so a
//     capability failure never reaches state-mutating code;
//   - on any error, the reactor's state is left exactly as it was;
//   - effects are only ever produced alongside an advanced state,
//     never on an error path;
//   - an intent type with no registered handler fails
//     core.KindUnsupportedIntent without side effects.
func (r *Reactor) ProcessIntent(i intent.Intent, ctx ctxmodel.Context) ([]Effect, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	handler, ok := r.handlers[i.Type]
	if !ok {
		return nil, core.New(core.KindUnsupportedIntent, "reactor has no handler for intent type %q", i.Type)
	}

	if err := capability.CheckAll(r.graph, ctx.Capabilities, i.Capabilities, r.now(), r.patterns); err != nil {
		return nil, err
	}

	nextState, effects, err := handler(i, ctx, r.state)
	if err != nil {
		return nil, err
	}

	r.state = nextState
	return effects, nil
}
