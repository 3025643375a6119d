package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetflow/iccr/internal/core"
)

func TestRegisterRejectsDuplicate(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register("a", "stream", nil))

	err := r.Register("a", "stream", nil)
	require.Error(t, err)
	kind, ok := core.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, core.KindComponentAlreadyRegistered, kind)
}

func TestUnregisterRejectsWhileDependentsExist(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register("a", "stream", nil))
	require.NoError(t, r.Register("b", "stream", nil))
	require.NoError(t, r.AddDependency("a", "b"))

	err := r.Unregister("b")
	require.Error(t, err)
	kind, ok := core.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, core.KindDependentComponentsExist, kind)

	r.RemoveDependency("a", "b")
	require.NoError(t, r.Unregister("b"))
}

func TestAddDependencyRejectsSelfEdgeAndCycle(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register("a", "stream", nil))
	require.NoError(t, r.Register("b", "stream", nil))

	err := r.AddDependency("a", "a")
	kind, _ := core.KindOf(err)
	assert.Equal(t, core.KindDependencyCycle, kind)

	require.NoError(t, r.AddDependency("a", "b"))
	err = r.AddDependency("b", "a")
	kind, _ = core.KindOf(err)
	assert.Equal(t, core.KindDependencyCycle, kind)
}

func TestHealthBandTransitionsByHeartbeatAge(t *testing.T) {
	r := New(nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }
	require.NoError(t, r.Register("a", "stream", nil))

	r.now = func() time.Time { return base.Add(10 * time.Second) }
	band, err := r.CheckHealth("a")
	require.NoError(t, err)
	assert.Equal(t, Healthy, band)

	r.now = func() time.Time { return base.Add(45 * time.Second) }
	band, err = r.CheckHealth("a")
	require.NoError(t, err)
	assert.Equal(t, Degraded, band)

	r.now = func() time.Time { return base.Add(90 * time.Second) }
	band, err = r.CheckHealth("a")
	require.NoError(t, err)
	assert.Equal(t, Unhealthy, band)
}

type failingChecker struct{}

func (failingChecker) CheckHealth() error { return errors.New("boom") }

func TestCheckHealthUsesComponentCheckerWhenPresent(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register("a", "stream", nil))
	r.SetHealthChecker("a", failingChecker{})

	band, err := r.CheckHealth("a")
	require.NoError(t, err)
	assert.Equal(t, Unhealthy, band)
}

func TestStartAllRunsInDependencyOrder(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register("capability", "capability", nil))
	require.NoError(t, r.Register("context", "context", nil))
	require.NoError(t, r.Register("intent", "intent", nil))
	require.NoError(t, r.AddDependency("context", "capability"))
	require.NoError(t, r.AddDependency("intent", "context"))

	var started []string
	err := r.StartAll(func(id string) error {
		started = append(started, id)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, started, 3)

	pos := map[string]int{}
	for i, id := range started {
		pos[id] = i
	}
	assert.Less(t, pos["capability"], pos["context"])
	assert.Less(t, pos["context"], pos["intent"])
}

func TestStartAllPropagatesStartFailure(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register("a", "stream", nil))

	err := r.StartAll(func(id string) error { return errors.New("init failed") })
	require.Error(t, err)
	kind, ok := core.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, core.KindPartialFailure, kind)
}

func TestWatchReceivesLifecycleEvents(t *testing.T) {
	r := New(nil)
	ch := r.Watch()

	require.NoError(t, r.Register("a", "stream", nil))
	select {
	case ev := <-ch:
		assert.Equal(t, EventRegistered, ev.Kind)
		assert.Equal(t, "a", ev.ComponentID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for registration event")
	}
}
