package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flowdeck/flowdeck/pkg/schema"
)

// EventLog provides event-sourcing operations on top of a LibSQLStore. Every
// runtime event a session produces is appended here so a session's node
// states can be reconstructed after the fact.
type EventLog struct {
	store *LibSQLStore
}

// NewEventLog wraps a LibSQLStore to provide event-sourcing operations.
func NewEventLog(s *LibSQLStore) *EventLog {
	return &EventLog{store: s}
}

// AppendEvent appends an event with a monotonically increasing per-session sequence.
// Forces a write lock up front so concurrent appenders cannot interleave
// sequence reads and writes.
func (el *EventLog) AppendEvent(ctx context.Context, event *Event) error {
	db := el.store.DB()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin immediate tx: %w", err)
	}
	defer tx.Rollback()

	// In WAL mode BeginTx alone may start a deferred transaction; a
	// write-intent statement forces immediate lock acquisition.
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_version (version, name) VALUES (-1, '_lock_noop')`); err != nil {
		return fmt.Errorf("acquire write lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM schema_version WHERE version = -1`); err != nil {
		return fmt.Errorf("cleanup write lock: %w", err)
	}

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM events WHERE session_id = ?`, event.SessionID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("get next sequence: %w", err)
	}
	event.Sequence = seq

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload := nullRaw(event.Payload)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (session_id, node_id, event_type, payload, timestamp, sequence)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.SessionID, nullStr(event.NodeID), event.Type, payload, event.Timestamp, seq,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event: %w", err)
	}
	return nil
}

// GetEvents returns events for a session with sequence > since, ordered by sequence ASC.
func (el *EventLog) GetEvents(ctx context.Context, sessionID string, since int64) ([]*Event, error) {
	return el.store.GetEvents(ctx, sessionID, since)
}

// GetSession returns the session row the log belongs to.
func (el *EventLog) GetSession(ctx context.Context, id string) (*RunSession, error) {
	return el.store.GetSession(ctx, id)
}

// ListSessions returns session rows matching the filter, newest first.
func (el *EventLog) ListSessions(ctx context.Context, filter SessionFilter) ([]*RunSession, error) {
	return el.store.ListSessions(ctx, filter)
}

// GetEventsByType returns events of a specific type matching the filter.
func (el *EventLog) GetEventsByType(ctx context.Context, eventType string, filter EventFilter) ([]*Event, error) {
	return el.store.GetEventsByType(ctx, eventType, filter)
}

// replayPayload is the subset of node event payload fields the replay fold
// reads. Field names match the runtime's wire format.
type replayPayload struct {
	NodeID        string  `json:"node_id"`
	Output        string  `json:"output"`
	OutputPreview string  `json:"output_preview"`
	OutputFull    string  `json:"output_full"`
	Error         string  `json:"error"`
	DurationMs    int64   `json:"duration_ms"`
	Tokens        int64   `json:"tokens"`
	CostUsd       float64 `json:"cost_usd"`
}

// ReplayEvents folds a session's event log back into per-node execution
// states, last event winning per node id. Returns an error on sequence gaps.
func (el *EventLog) ReplayEvents(ctx context.Context, sessionID string) (map[string]schema.NodeExecutionState, error) {
	events, err := el.store.GetEvents(ctx, sessionID, 0)
	if err != nil {
		return nil, fmt.Errorf("get events for replay: %w", err)
	}

	states := make(map[string]schema.NodeExecutionState)
	if len(events) == 0 {
		return states, nil
	}

	// Validate sequence contiguity.
	for i, e := range events {
		expected := int64(i + 1)
		if e.Sequence != expected {
			return nil, schema.NewErrorf(schema.ErrCodeStore,
				"sequence gap in session %s: expected %d, got %d", sessionID, expected, e.Sequence)
		}
	}

	for _, e := range events {
		var p replayPayload
		if len(e.Payload) > 0 {
			if err := json.Unmarshal(e.Payload, &p); err != nil {
				return nil, schema.NewErrorf(schema.ErrCodeStore,
					"malformed payload at sequence %d in session %s", e.Sequence, sessionID)
			}
		}
		nodeID := p.NodeID
		if nodeID == "" {
			nodeID = e.NodeID
		}
		if nodeID == "" {
			continue
		}

		switch e.Type {
		case schema.EventNodeStarted:
			states[nodeID] = schema.NodeExecutionState{NodeID: nodeID, Status: schema.NodeStatusRunning}

		case schema.EventNodeCompleted:
			output := p.OutputFull
			if output == "" {
				output = p.OutputPreview
			}
			if output == "" {
				output = p.Output
			}
			states[nodeID] = schema.NodeExecutionState{
				NodeID:     nodeID,
				Status:     schema.NodeStatusCompleted,
				Output:     output,
				DurationMs: p.DurationMs,
				Tokens:     p.Tokens,
				CostUsd:    p.CostUsd,
			}

		case schema.EventNodeError:
			states[nodeID] = schema.NodeExecutionState{
				NodeID: nodeID,
				Status: schema.NodeStatusError,
				Error:  p.Error,
			}

		case schema.EventNodeWaiting:
			states[nodeID] = schema.NodeExecutionState{NodeID: nodeID, Status: schema.NodeStatusWaiting}

		case schema.EventNodeSkipped:
			states[nodeID] = schema.NodeExecutionState{NodeID: nodeID, Status: schema.NodeStatusSkipped}
		}
	}

	return states, nil
}
