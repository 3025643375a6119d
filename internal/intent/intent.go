// Package intent implements ICCR intent values, the validation and
// transformation pipelines run over them, dynamic routing to reactors,
// the five composition semantics for composite intents, and delegation.
package intent

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/packetflow/iccr/internal/capability"
)

// Composition names a composite intent's execution strategy.
type Composition string

const (
	Sequential  Composition = "sequential"
	Parallel    Composition = "parallel"
	Conditional Composition = "conditional"
	Pipeline    Composition = "pipeline"
	FanOut      Composition = "fan_out"
)

// Metadata carries an intent's identity and bookkeeping fields.
type Metadata struct {
	ID          string
	CreatedAt   time.Time
	DelegatedTo string
	Extra       map[string]any
}

// Intent is an immutable declarative request for work. A composite
// intent additionally carries Intents and a Composition strategy; leaf
// intents leave both zero.
type Intent struct {
	Type         string
	Payload      map[string]any
	Capabilities []capability.Capability
	Metadata     Metadata

	Intents     []Intent
	Composition Composition
	// Condition is consulted only when Composition == Conditional; it
	// receives the accumulated results so far and reports whether the
	// next intent in Intents should still run.
	Condition func(results []any) bool
}

// idSeq backs monotone-within-process intent ids: a zero-padded
// sequence number, so ids sort in creation order within one process,
// followed by a fresh uuid so ids stay globally unique.
var idSeq int64

func nextID() string {
	n := atomic.AddInt64(&idSeq, 1)
	s := itoa(n)
	return strings.Repeat("0", 19-len(s)) + s + "-" + uuid.NewString()
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Create constructs a leaf intent with a fresh, monotone id and
// creation timestamp.
func Create(typ string, payload map[string]any, caps []capability.Capability) Intent {
	return Intent{
		Type:         typ,
		Payload:      payload,
		Capabilities: append([]capability.Capability(nil), caps...),
		Metadata:     Metadata{ID: nextID(), CreatedAt: time.Now()},
	}
}

// CreateComposite constructs a composite intent recording its
// composition strategy.
func CreateComposite(typ string, children []Intent, composition Composition, caps []capability.Capability) Intent {
	i := Create(typ, nil, caps)
	i.Intents = children
	i.Composition = composition
	return i
}

// Delegate rewrites metadata to mark the intent as delegated to
// target. Callers must verify target is a known processor first (see
// registry.Get); Delegate itself performs no such check.
func Delegate(i Intent, target string) Intent {
	out := i
	out.Metadata.DelegatedTo = target
	return out
}
