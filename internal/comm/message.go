// Package comm implements the ICCR communication layer: validated
// point-to-point messages, synchronous request/reply with timeout,
// broadcast with partial-failure accounting, subscriptions, and
// routing strategies over the component registry.
package comm

import (
	"time"

	"github.com/google/uuid"

	"github.com/packetflow/iccr/internal/core"
)

// Message is the wire shape exchanged between components. Required
// fields: ID, Type, From, To, Timestamp. Payload is not checked by
// Validate; a nil Payload is accepted.
type Message struct {
	ID        string
	Type      string
	From      string
	To        string
	Payload   map[string]any
	Metadata  map[string]any
	Timestamp time.Time
}

// NewMessage builds a Message with a minted ID and current timestamp.
func NewMessage(from, to, typ string, payload map[string]any) Message {
	return Message{
		ID:        uuid.NewString(),
		Type:      typ,
		From:      from,
		To:        to,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Validate checks that every required field is present.
func (m Message) Validate() error {
	switch {
	case m.ID == "":
		return core.New(core.KindValidationFailed, "message missing id")
	case m.Type == "":
		return core.New(core.KindValidationFailed, "message missing type")
	case m.From == "":
		return core.New(core.KindValidationFailed, "message missing from")
	case m.To == "":
		return core.New(core.KindValidationFailed, "message missing to")
	case m.Timestamp.IsZero():
		return core.New(core.KindValidationFailed, "message missing timestamp")
	}
	return nil
}

// requestID extracts the correlation id used to match a reply to a
// pending request, read from metadata.request_id.
func requestID(m Message) (string, bool) {
	if m.Metadata == nil {
		return "", false
	}
	v, ok := m.Metadata["request_id"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
