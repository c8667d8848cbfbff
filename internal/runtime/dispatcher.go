package runtime

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/flowdeck/flowdeck/internal/live"
	"github.com/flowdeck/flowdeck/internal/runstate"
	"github.com/flowdeck/flowdeck/internal/store"
	"github.com/flowdeck/flowdeck/internal/streaming"
	"github.com/flowdeck/flowdeck/pkg/schema"
)

// EventAppender persists inbound events to the append-only session log.
// Satisfied by store.EventLog.
type EventAppender interface {
	AppendEvent(ctx context.Context, event *store.Event) error
}

// ApprovalRecorder persists approval requests as pending rows.
// Satisfied by store.Store.
type ApprovalRecorder interface {
	CreateApproval(ctx context.Context, a *store.Approval) error
}

// DispatcherDeps wires a dispatcher to its sinks. Any sink may be nil;
// events for a nil sink are dropped (or, for the persistence sinks, simply
// not persisted).
type DispatcherDeps struct {
	Hub       streaming.EventHub
	States    *runstate.Store
	Live      *live.Controller
	Approvals *ApprovalInbox
	Events    EventAppender
	Pending   ApprovalRecorder
	Logger    *slog.Logger
}

// Dispatcher consumes the event hub and routes decoded events to the state
// stores. It is the single reader of inbound events; nothing on its path
// panics or returns an error to the event source. Malformed payloads and
// unknown event types are logged and dropped.
type Dispatcher struct {
	hub       streaming.EventHub
	states    *runstate.Store
	live      *live.Controller
	approvals *ApprovalInbox
	events    EventAppender
	pending   ApprovalRecorder
	logger    *slog.Logger
}

// NewDispatcher builds a dispatcher from its deps.
func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		hub:       deps.Hub,
		states:    deps.States,
		live:      deps.Live,
		approvals: deps.Approvals,
		events:    deps.Events,
		pending:   deps.Pending,
		logger:    logger,
	}
}

// Run subscribes and dispatches until the context is cancelled. Start it in
// a goroutine at session start; cancelling the context is the only way to
// stop it.
func (d *Dispatcher) Run(ctx context.Context) error {
	ch, cancel, err := d.hub.Subscribe(ctx, streaming.EventFilter{})
	if err != nil {
		return schema.NewError(schema.ErrCodeExecution, "event subscription failed").WithCause(err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-ch:
			d.dispatch(ctx, ev)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, ev streaming.StreamEvent) {
	d.appendToLog(ctx, ev)

	switch {
	case isNodeEvent(ev.EventType):
		if d.states == nil {
			return
		}
		nodeEv, err := decodeNodeEvent(ev)
		if err != nil {
			d.logger.Warn("dropping malformed node event",
				"event_type", ev.EventType, "error", err)
			return
		}
		d.states.Apply(nodeEv)

	case ev.EventType == schema.EventLiveFeed:
		if d.live == nil {
			return
		}
		var feedEv live.FeedEvent
		if err := json.Unmarshal(ev.Payload, &feedEv); err != nil {
			d.logger.Warn("dropping malformed live feed event", "error", err)
			return
		}
		d.live.Apply(feedEv)

	case ev.EventType == schema.EventApprovalRequested:
		if d.approvals == nil {
			return
		}
		var p approvalPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			d.logger.Warn("dropping malformed approval request", "error", err)
			return
		}
		req := schema.ApprovalRequest{
			ID:          p.ID,
			SessionID:   ev.SessionID,
			NodeID:      ev.NodeID,
			Message:     p.Message,
			DataPreview: p.DataPreview,
		}
		d.approvals.Add(req)
		d.persistApproval(ctx, req)

	default:
		d.logger.Debug("dropping unknown event", "event_type", ev.EventType)
	}
}

// appendToLog records the raw event in the session's append-only log.
// Best-effort: the in-memory dispatch above must proceed even when the
// store is unavailable.
func (d *Dispatcher) appendToLog(ctx context.Context, ev streaming.StreamEvent) {
	if d.events == nil || ev.SessionID == "" {
		return
	}
	err := d.events.AppendEvent(ctx, &store.Event{
		SessionID: ev.SessionID,
		NodeID:    ev.NodeID,
		Type:      ev.EventType,
		Payload:   ev.Payload,
	})
	if err != nil {
		d.logger.Warn("failed to append event to log",
			"event_type", ev.EventType, "session_id", ev.SessionID, "error", err)
	}
}

func (d *Dispatcher) persistApproval(ctx context.Context, req schema.ApprovalRequest) {
	if d.pending == nil || req.ID == "" {
		return
	}
	err := d.pending.CreateApproval(ctx, &store.Approval{
		ID:          req.ID,
		SessionID:   req.SessionID,
		NodeID:      req.NodeID,
		Message:     req.Message,
		DataPreview: req.DataPreview,
		Status:      store.ApprovalPending,
	})
	if err != nil {
		d.logger.Warn("failed to persist approval request",
			"approval_id", req.ID, "error", err)
	}
}
