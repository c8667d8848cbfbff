package streaming

import (
	"context"
	"encoding/json"
)

// StreamEvent is one event on the runtime boundary: node lifecycle updates,
// live feed telemetry, and approval requests all travel as StreamEvents.
// Payload stays raw JSON until the dispatcher decodes it by EventType.
type StreamEvent struct {
	SessionID string          `json:"sessionId"`
	NodeID    string          `json:"nodeId,omitempty"`
	EventType string          `json:"eventType"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// EventFilter specifies which events a subscriber wants to receive.
type EventFilter struct {
	SessionID  string   `json:"sessionId,omitempty"`
	EventTypes []string `json:"eventTypes,omitempty"`
}

// EventHub provides pub/sub for runtime events.
type EventHub interface {
	Publish(ctx context.Context, event StreamEvent) error
	Subscribe(ctx context.Context, filter EventFilter) (<-chan StreamEvent, func(), error)
}
