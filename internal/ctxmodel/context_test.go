package ctxmodel

import (
	"testing"
	"time"

	"github.com/packetflow/iccr/internal/capability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropagateInheritMintsRequestIDAndExtendsTrace(t *testing.T) {
	c := New(Attrs{UserID: "u1", SessionID: "s1"})
	p := c.Propagate("reactor-a", PropagateInherit)

	assert.NotEqual(t, c.RequestID, p.RequestID)
	assert.Equal(t, []string{"reactor-a"}, p.Trace)
	assert.Equal(t, c.UserID, p.UserID)
}

func TestPropagateCopyPreservesRequestIDAndTrace(t *testing.T) {
	c := New(Attrs{UserID: "u1"})
	c.Trace = []string{"x"}
	p := c.Propagate("reactor-a", PropagateCopy)

	assert.Equal(t, c.RequestID, p.RequestID)
	assert.Equal(t, c.Trace, p.Trace)
}

func TestComposeMergeUnionsCapabilities(t *testing.T) {
	c1 := New(Attrs{Capabilities: []capability.Capability{capability.New("read", "/")}})
	c2 := New(Attrs{Capabilities: []capability.Capability{capability.New("write", "/u/")}})

	merged := Compose(c1, c2, ComposeMerge)
	assert.ElementsMatch(t, c1.Capabilities, []capability.Capability{capability.New("read", "/")})
	require.Len(t, merged.Capabilities, 2)
	assert.NotEqual(t, c1.RequestID, merged.RequestID)
}

func TestComposeOverrideTakesSecond(t *testing.T) {
	c1 := New(Attrs{UserID: "u1"})
	c2 := New(Attrs{UserID: "u2"})
	merged := Compose(c1, c2, ComposeOverride)
	assert.Equal(t, "u2", merged.UserID)
	assert.Equal(t, c2.RequestID, merged.RequestID)
}

type alwaysViolates struct{ reason string }

func (a alwaysViolates) Check(Constraint, time.Time) (string, bool) { return a.reason, true }

func TestValidateTemporalConstraintsShortCircuits(t *testing.T) {
	c := New(Attrs{TemporalConstraint: []Constraint{{Kind: "business_hours"}, {Kind: "weekdays"}}})
	err := ValidateTemporalConstraints(c, time.Now(), alwaysViolates{reason: "outside_business_hours"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside_business_hours")
}
