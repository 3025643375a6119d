package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetflow/iccr/internal/capability"
	"github.com/packetflow/iccr/internal/core"
)

func TestRouteByExplicitType(t *testing.T) {
	r := NewRouter(capability.NewGraph())
	r.RegisterType("greet", "greeter-1")

	target, err := r.Route(Create("greet", nil, nil))
	require.NoError(t, err)
	assert.Equal(t, "greeter-1", target)
}

func TestRouteByCapabilityTieBreakByLoadThenID(t *testing.T) {
	r := NewRouter(capability.NewGraph())
	r.RegisterCandidate(Candidate{ID: "b", Capabilities: []capability.Capability{capability.New("read", AnyRes)}, LoadFactor: 0.5})
	r.RegisterCandidate(Candidate{ID: "a", Capabilities: []capability.Capability{capability.New("read", AnyRes)}, LoadFactor: 0.5})
	r.RegisterCandidate(Candidate{ID: "c", Capabilities: []capability.Capability{capability.New("read", AnyRes)}, LoadFactor: 0.1})

	i := Create("read-file", nil, []capability.Capability{capability.New("read", "/x")})
	target, err := r.Route(i)
	require.NoError(t, err)
	assert.Equal(t, "c", target, "lowest load factor wins")

	r.RemoveCandidate("c")
	target, err = r.Route(i)
	require.NoError(t, err)
	assert.Equal(t, "a", target, "equal load breaks ties by id")
}

const AnyRes = capability.AnyResource

func TestRouteNoCandidatesReturnsKind(t *testing.T) {
	r := NewRouter(capability.NewGraph())
	i := Create("read-file", nil, []capability.Capability{capability.New("read", "/x")})
	_, err := r.Route(i)
	kind, ok := core.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, core.KindNoComponentsWithCapability, kind)
}

func TestRouteCachesCapabilityMatchAndInvalidatesOnRegister(t *testing.T) {
	r := NewRouter(capability.NewGraph())
	r.RegisterCandidate(Candidate{ID: "a", Capabilities: []capability.Capability{capability.New("read", AnyRes)}, LoadFactor: 0.5})

	i := Create("read-file", nil, []capability.Capability{capability.New("read", "/x")})
	first, err := r.Route(i)
	require.NoError(t, err)
	assert.Equal(t, "a", first)

	// Cached lookup should return the same answer without touching candidates.
	second, err := r.Route(i)
	require.NoError(t, err)
	assert.Equal(t, "a", second)

	// A lower-loaded candidate registered afterward must win once the
	// cache entry for this capability set is invalidated.
	r.RegisterCandidate(Candidate{ID: "b", Capabilities: []capability.Capability{capability.New("read", AnyRes)}, LoadFactor: 0.1})
	third, err := r.Route(i)
	require.NoError(t, err)
	assert.Equal(t, "b", third)
}
