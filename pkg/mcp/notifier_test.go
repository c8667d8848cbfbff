package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/flowdeck/internal/streaming"
	"github.com/flowdeck/flowdeck/pkg/schema"
)

type recordingNotifier struct {
	mu       sync.Mutex
	payloads []map[string]any
	agents   []string
}

func (n *recordingNotifier) Notify(_ context.Context, agentID string, payload map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.agents = append(n.agents, agentID)
	n.payloads = append(n.payloads, payload)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.payloads)
}

func TestEventForwarderPushesToRegisteredAgents(t *testing.T) {
	hub := streaming.NewMemoryHub()
	sessions := NewSessionRegistry()
	sessions.Register("agent-1", "session-1")

	notifier := &recordingNotifier{}
	fwd := NewEventForwarder(hub, notifier, sessions, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = fwd.Run(ctx) }()
	time.Sleep(20 * time.Millisecond) // let the forwarder subscribe

	payload, _ := json.Marshal(map[string]any{"node_id": "llm-1"})
	require.NoError(t, hub.Publish(ctx, streaming.StreamEvent{
		SessionID: "sess-1",
		NodeID:    "llm-1",
		EventType: schema.EventNodeStarted,
		Payload:   payload,
	}))

	require.Eventually(t, func() bool {
		return notifier.count() == 1
	}, time.Second, 10*time.Millisecond)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Equal(t, "agent-1", notifier.agents[0])
	assert.Equal(t, schema.EventNodeStarted, notifier.payloads[0]["eventType"])
	assert.Equal(t, "llm-1", notifier.payloads[0]["nodeId"])
}

func TestEventForwarderNoAgents(t *testing.T) {
	hub := streaming.NewMemoryHub()
	notifier := &recordingNotifier{}
	fwd := NewEventForwarder(hub, notifier, NewSessionRegistry(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = fwd.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, hub.Publish(ctx, streaming.StreamEvent{
		SessionID: "sess-1",
		EventType: schema.EventNodeCompleted,
	}))

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, notifier.count())
}
