package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetflow/iccr/internal/realtime"
)

// captureSubscriber is a minimal realtime.EventSubscriber recording
// every event it receives, used to assert on EnableRealtime's wiring
// without standing up a real websocket connection.
type captureSubscriber struct {
	id   string
	ctx  context.Context
	recv chan realtime.Event
}

func newCaptureSubscriber(ctx context.Context) *captureSubscriber {
	return &captureSubscriber{id: "capture-1", ctx: ctx, recv: make(chan realtime.Event, 16)}
}

func (c *captureSubscriber) ID() string              { return c.id }
func (c *captureSubscriber) Context() context.Context { return c.ctx }
func (c *captureSubscriber) Close() error             { return nil }
func (c *captureSubscriber) Send(event realtime.Event) error {
	select {
	case c.recv <- event:
	default:
	}
	return nil
}

func TestEnableRealtimePublishesHealthEvents(t *testing.T) {
	m, reg := newTestMonitor(t)
	m.EnableRealtime(nil)
	require.NotNil(t, m.RealtimeBus())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.RealtimeBus().Start(ctx))

	sub := newCaptureSubscriber(ctx)
	require.NoError(t, m.RealtimeBus().Subscribe(sub))

	require.NoError(t, reg.Register("a", "stream", nil))
	reg.Heartbeat("a")
	m.RunHealthCheckCycle()

	select {
	case ev := <-sub.recv:
		assert.Equal(t, realtime.EventTypeHealthUpdated, ev.Type)
		assert.Equal(t, "a", ev.Data["component_id"])
	case <-time.After(time.Second):
		t.Fatal("expected a health_updated event on the realtime bus")
	}
}

func TestRealtimeBusNilWithoutEnableRealtime(t *testing.T) {
	m, _ := newTestMonitor(t)
	assert.Nil(t, m.RealtimeBus())
}
