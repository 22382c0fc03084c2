package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"expensinator/internal/events"
)

// EventMessage carries a bus event between processes. Source identifies the
// publishing process so it can ignore its own messages.
type EventMessage struct {
	Event     events.Event `json:"event"`
	Source    string       `json:"source"`
	Timestamp time.Time    `json:"timestamp"`
}

// NewEventMessage creates a message stamped with the current time.
func NewEventMessage(e events.Event, source string) *EventMessage {
	return &EventMessage{
		Event:     e,
		Source:    source,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessageFromJSON decodes a message and rejects unknown events.
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Event.Valid() {
		return nil, fmt.Errorf("unknown event %q", msg.Event)
	}
	return &msg, nil
}
