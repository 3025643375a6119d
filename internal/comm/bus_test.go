package comm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetflow/iccr/internal/capability"
	"github.com/packetflow/iccr/internal/core"
	"github.com/packetflow/iccr/internal/registry"
)

func newTestBus(t *testing.T) (*Bus, *registry.Registry) {
	t.Helper()
	reg := registry.New(nil)
	graph := capability.NewGraph()
	return New(reg, graph), reg
}

func TestSendMessageRejectsUnknownTarget(t *testing.T) {
	b, _ := newTestBus(t)
	m := NewMessage("a", "b", "ping", nil)

	err := b.SendMessage(m)
	require.Error(t, err)
	kind, ok := core.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, core.KindTargetNotFound, kind)
}

func TestSendMessageDeliversToRegisteredTarget(t *testing.T) {
	b, _ := newTestBus(t)
	var got Message
	b.RegisterTarget("b", func(m Message) error {
		got = m
		return nil
	})

	m := NewMessage("a", "b", "ping", map[string]any{"n": 1})
	require.NoError(t, b.SendMessage(m))
	assert.Equal(t, "ping", got.Type)
}

func TestSendRequestReceivesReply(t *testing.T) {
	b, _ := newTestBus(t)
	b.RegisterTarget("server", func(m Message) error {
		reply := NewMessage("server", "client", "pong", nil)
		reply.Metadata = map[string]any{"request_id": m.ID}
		go func() { _ = b.SendMessage(reply) }()
		return nil
	})
	b.RegisterTarget("client", func(m Message) error { return nil })

	req := NewMessage("client", "server", "ping", nil)
	reply, err := b.SendRequest(req, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "pong", reply.Type)
	assert.Greater(t, b.AvgLatencyMS(), -1.0)
}

func TestSendRequestTimesOutAndPurges(t *testing.T) {
	b, _ := newTestBus(t)
	b.RegisterTarget("server", func(m Message) error { return nil }) // never replies

	req := NewMessage("client", "server", "ping", nil)
	_, err := b.SendRequest(req, 20*time.Millisecond)
	require.Error(t, err)
	kind, ok := core.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, core.KindTimeout, kind)

	b.mu.Lock()
	_, pending := b.pending[req.ID]
	b.mu.Unlock()
	assert.False(t, pending, "timed-out request must be purged")
}

func TestBroadcastMessageReportsPartialFailure(t *testing.T) {
	b, _ := newTestBus(t)
	b.RegisterTarget("ok1", func(m Message) error { return nil })
	b.RegisterTarget("ok2", func(m Message) error { return nil })
	// "missing" is never registered as a target.

	err := b.BroadcastMessage("source", "event", nil, []string{"ok1", "ok2", "missing"})
	require.Error(t, err)
	kind, ok := core.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, core.KindPartialFailure, kind)
}

func TestSubscribeForwardsMessagesFromSource(t *testing.T) {
	b, _ := newTestBus(t)
	var delivered []string
	b.RegisterTarget("sub1", func(m Message) error {
		delivered = append(delivered, m.To)
		return nil
	})
	b.Subscribe("source", "sub1")
	b.Subscribe("source", "sub1") // idempotent

	b.Notify("source", NewMessage("source", "", "event", nil))
	assert.Equal(t, []string{"sub1"}, delivered)
}

func TestRouteByHealthExcludesUnhealthy(t *testing.T) {
	b, reg := newTestBus(t)
	require.NoError(t, reg.Register("healthy-one", "stream", nil))
	require.NoError(t, reg.Register("unknown-one", "stream", nil))

	reg.Heartbeat("healthy-one")

	id, err := b.Route("msg-1", nil, RouteByHealth)
	require.NoError(t, err)
	assert.Equal(t, "healthy-one", id)
}

func TestRouteLoadBalancedPicksMinLoad(t *testing.T) {
	b, reg := newTestBus(t)
	require.NoError(t, reg.Register("a", "stream", nil))
	require.NoError(t, reg.Register("b", "stream", nil))
	reg.SetLoadFactor("a", 0.9)
	reg.SetLoadFactor("b", 0.1)

	id, err := b.Route("msg-1", nil, RouteLoadBalanced)
	require.NoError(t, err)
	assert.Equal(t, "b", id)
}

func TestRouteCapabilityAwareFiltersByAdvertised(t *testing.T) {
	b, reg := newTestBus(t)
	require.NoError(t, reg.Register("a", "stream", nil))
	require.NoError(t, reg.Register("b", "stream", nil))
	b.AdvertiseCapabilities("a", []capability.Capability{capability.New("read", "/data")})

	required := []capability.Capability{capability.New("read", "/data")}
	id, err := b.Route("msg-1", required, RouteCapabilityAware)
	require.NoError(t, err)
	assert.Equal(t, "a", id)
}

func TestRouteCapabilityAwareNoneAdvertiseReturnsKind(t *testing.T) {
	b, reg := newTestBus(t)
	require.NoError(t, reg.Register("a", "stream", nil))

	required := []capability.Capability{capability.New("read", "/data")}
	_, err := b.Route("msg-1", required, RouteCapabilityAware)
	require.Error(t, err)
	kind, ok := core.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, core.KindNoComponentsWithCapability, kind)
}
