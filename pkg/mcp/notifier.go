package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/flowdeck/flowdeck/internal/streaming"
	"github.com/flowdeck/flowdeck/pkg/schema"
)

// AgentNotifier pushes notifications to connected agents.
type AgentNotifier interface {
	Notify(ctx context.Context, agentID string, payload map[string]any) error
}

// MCPNotifier implements AgentNotifier using MCP push notifications.
type MCPNotifier struct {
	mcpServer *server.MCPServer
	sessions  *SessionRegistry
}

// NewMCPNotifier creates a notifier that pushes via the MCP session.
func NewMCPNotifier(mcpServer *server.MCPServer, sessions *SessionRegistry) *MCPNotifier {
	return &MCPNotifier{mcpServer: mcpServer, sessions: sessions}
}

// Notify sends a notification to the agent's session.
// Best-effort: returns nil if the agent is not connected.
func (n *MCPNotifier) Notify(_ context.Context, agentID string, payload map[string]any) error {
	sessionID, ok := n.sessions.SessionFor(agentID)
	if !ok {
		return nil // agent not connected, best-effort
	}
	err := n.mcpServer.SendNotificationToSpecificClient(sessionID, "notifications/message", payload)
	if errors.Is(err, server.ErrSessionNotFound) {
		// Session expired between lookup and send; not an error.
		n.sessions.Remove(sessionID)
		return nil
	}
	return err
}

// EventForwarder bridges the event hub to MCP notifications so connected
// agents see node-state changes, live feed items, and approval requests as
// they happen.
type EventForwarder struct {
	hub      streaming.EventHub
	notifier AgentNotifier
	sessions *SessionRegistry
	logger   *slog.Logger
}

// NewEventForwarder creates a forwarder over the given hub.
func NewEventForwarder(hub streaming.EventHub, notifier AgentNotifier, sessions *SessionRegistry, logger *slog.Logger) *EventForwarder {
	return &EventForwarder{hub: hub, notifier: notifier, sessions: sessions, logger: logger}
}

// Run subscribes to the node lifecycle family plus live feed and approval
// events and forwards each one to every registered agent until ctx is
// cancelled. Delivery is best-effort: a failed push is logged and skipped.
func (f *EventForwarder) Run(ctx context.Context) error {
	ch, cancel, err := f.hub.Subscribe(ctx, streaming.EventFilter{
		EventTypes: []string{"workflow.node.*", schema.EventLiveFeed, schema.EventApprovalRequested},
	})
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			f.forward(ctx, ev)
		}
	}
}

func (f *EventForwarder) forward(ctx context.Context, ev streaming.StreamEvent) {
	var payload map[string]any
	if len(ev.Payload) > 0 {
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			f.logger.Warn("dropping unparseable event payload",
				slog.String("event_type", ev.EventType),
				slog.String("error", err.Error()),
			)
			return
		}
	}

	notification := map[string]any{
		"eventType": ev.EventType,
		"sessionId": ev.SessionID,
	}
	if ev.NodeID != "" {
		notification["nodeId"] = ev.NodeID
	}
	if payload != nil {
		notification["payload"] = payload
	}

	for _, agentID := range f.sessions.Agents() {
		if err := f.notifier.Notify(ctx, agentID, notification); err != nil {
			f.logger.Warn("failed to push event to agent",
				slog.String("agent_id", agentID),
				slog.String("event_type", ev.EventType),
				slog.String("error", err.Error()),
			)
		}
	}
}
