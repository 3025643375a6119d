package capability

import (
	"testing"
	"time"

	"github.com/packetflow/iccr/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adminGraph(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph()
	require.NoError(t, g.Register("admin", "read", "write", "delete"))
	require.NoError(t, g.Register("write", "read"))
	return g
}

func TestImpliesReflexiveTransitive(t *testing.T) {
	g := adminGraph(t)

	admin := New("admin", "/")
	read := New("read", "/")
	write := New("write", "/")
	del := New("delete", "/")

	assert.True(t, g.Implies(admin, admin), "implies must be reflexive")
	assert.True(t, g.Implies(admin, read))
	assert.True(t, g.Implies(admin, del))
	assert.True(t, g.Implies(write, read))
	assert.False(t, g.Implies(read, admin), "read must not imply admin")
}

func TestImpliesWildcardResource(t *testing.T) {
	g := NewGraph()
	any := New("read", AnyResource)
	specific := New("read", "/a/b")
	assert.True(t, g.Implies(any, specific))
	assert.False(t, g.Implies(specific, any))
}

func TestRegisterRejectsCycle(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Register("a", "b"))
	require.NoError(t, g.Register("b", "c"))
	err := g.Register("c", "a")
	assert.Error(t, err)
}

func TestComposeIdempotentAndOrderIndependent(t *testing.T) {
	g := adminGraph(t)
	cs := []Capability{New("admin", "/"), New("write", "/")}

	first := g.Compose(cs)
	second := g.Compose(first)
	assert.ElementsMatch(t, keysOf(first), keysOf(second))

	reversed := g.Compose([]Capability{cs[1], cs[0]})
	assert.ElementsMatch(t, keysOf(first), keysOf(reversed))
}

func keysOf(cs []Capability) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = Key(c)
	}
	return out
}

func TestValidAtWindow(t *testing.T) {
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 1, 17, 0, 0, 0, time.UTC)
	c := New("read", "/").WithWindow(start, end)

	assert.True(t, ValidAt(c, start, nil), "window start is inclusive")
	assert.False(t, ValidAt(c, end, nil), "window end is exclusive")
	assert.False(t, ValidAt(c, start.Add(-time.Minute), nil))
}

type fixedPattern struct{ ok bool }

func (f fixedPattern) Matches(string, time.Time) bool { return f.ok }

func TestCheckInsufficientVsTemporal(t *testing.T) {
	g := adminGraph(t)
	required := New("read", "/x")
	now := time.Now()

	err := Check(g, nil, required, now, nil)
	kind, ok := core.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, core.KindInsufficientCapabilities, kind)

	expired := New("admin", "/").WithWindow(now.Add(-2*time.Hour), now.Add(-time.Hour))
	err = Check(g, []Capability{expired}, required, now, nil)
	kind, ok = core.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, core.KindTemporalConstraintViol, kind)

	ok2 := fixedPattern{ok: true}
	valid := New("admin", "/").WithPattern("business_hours")
	err = Check(g, []Capability{valid}, required, now, ok2)
	assert.NoError(t, err)
}
