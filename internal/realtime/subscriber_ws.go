package realtime

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocketSubscriber delivers bus events to a single upgraded
// websocket connection. A gorilla/websocket.Conn only tolerates one
// concurrent writer, so Send serializes on writeMu.
type WebSocketSubscriber struct {
	baseSubscriber

	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  atomic.Bool
}

// NewWebSocketSubscriber wraps conn as an EventSubscriber. onClose, if
// non-nil, runs once when the subscriber is closed (by the bus or by
// the connection dying), typically to unsubscribe it from the bus.
func NewWebSocketSubscriber(ctx context.Context, conn *websocket.Conn, onClose func()) *WebSocketSubscriber {
	return &WebSocketSubscriber{
		baseSubscriber: baseSubscriber{id: uuid.NewString(), ctx: ctx, onClose: onClose},
		conn:           conn,
	}
}

// Send writes event to the underlying connection as JSON.
func (s *WebSocketSubscriber) Send(event Event) error {
	if s.closed.Load() {
		return ErrSubscriberClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(event)
}

// Close closes the websocket connection and runs onClose exactly once.
func (s *WebSocketSubscriber) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := s.conn.Close()
	if s.onClose != nil {
		s.onClose()
	}
	return err
}
