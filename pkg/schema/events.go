package schema

import "time"

// Inbound event names on the runtime boundary. These are the wire names the
// execution runtime emits; the dispatcher decodes them into typed values.
const (
	EventNodeStarted   = "workflow.node.started"
	EventNodeCompleted = "workflow.node.completed"
	EventNodeError     = "workflow.node.error"
	EventNodeWaiting   = "workflow.node.waiting"
	EventNodeSkipped   = "workflow.node.skipped"

	EventLiveFeed          = "live_workflow_feed"
	EventApprovalRequested = "workflow_approval_requested"
)

// Sub-types carried inside live_workflow_feed payloads.
const (
	LiveFeedStarted            = "live.started"
	LiveFeedIterationCompleted = "live.iteration.completed"
	LiveFeedIterationError     = "live.iteration.error"
	LiveFeedStopped            = "live.stopped"
)

// NodeStatus is the per-node execution state shown on the canvas.
type NodeStatus string

const (
	NodeStatusIdle      NodeStatus = "idle"
	NodeStatusRunning   NodeStatus = "running"
	NodeStatusCompleted NodeStatus = "completed"
	NodeStatusError     NodeStatus = "error"
	NodeStatusWaiting   NodeStatus = "waiting"
	NodeStatusSkipped   NodeStatus = "skipped"
)

// Terminal reports whether the status ends the node's participation in a run.
func (s NodeStatus) Terminal() bool {
	switch s {
	case NodeStatusCompleted, NodeStatusError, NodeStatusWaiting, NodeStatusSkipped:
		return true
	}
	return false
}

// NodeExecutionState is the materialized per-node view folded from the event
// stream. A node with no entry is implicitly idle.
type NodeExecutionState struct {
	NodeID     string     `json:"nodeId"`
	Status     NodeStatus `json:"status"`
	Output     string     `json:"output,omitempty"`
	Error      string     `json:"error,omitempty"`
	DurationMs int64      `json:"durationMs,omitempty"`
	Tokens     int64      `json:"tokens,omitempty"`
	CostUsd    float64    `json:"costUsd,omitempty"`
}

// LiveFeedItemType distinguishes completed iterations from error iterations.
type LiveFeedItemType string

const (
	LiveItemCompleted LiveFeedItemType = "completed"
	LiveItemError     LiveFeedItemType = "error"
)

// LiveFeedItem is one iteration's telemetry in a live session. Items are
// append-only: once in the feed they are never mutated.
type LiveFeedItem struct {
	Iteration     int64            `json:"iteration"`
	Type          LiveFeedItemType `json:"type"`
	OutputSummary string           `json:"outputSummary,omitempty"`
	Error         string           `json:"error,omitempty"`
	DurationMs    int64            `json:"durationMs,omitempty"`
	Tokens        int64            `json:"tokens,omitempty"`
	CostUsd       float64          `json:"costUsd,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
}

// ErrorPolicy governs how the runtime treats a failed live iteration.
type ErrorPolicy string

const (
	ErrorPolicyStop ErrorPolicy = "stop"
	ErrorPolicySkip ErrorPolicy = "skip"
)

// LiveConfig parameterizes a live session. It is sent once at start and is
// immutable for the lifetime of that session.
type LiveConfig struct {
	IntervalMs    int64       `json:"intervalMs"`
	MaxIterations int64       `json:"maxIterations"`
	ErrorPolicy   ErrorPolicy `json:"errorPolicy"`
}

// DefaultLiveConfig returns the runtime's documented defaults.
func DefaultLiveConfig() LiveConfig {
	return LiveConfig{
		IntervalMs:    5000,
		MaxIterations: 1000,
		ErrorPolicy:   ErrorPolicySkip,
	}
}

// Validate checks a LiveConfig before a session starts.
func (c LiveConfig) Validate() error {
	if c.IntervalMs <= 0 {
		return NewErrorf(ErrCodeValidation, "intervalMs must be positive, got %d", c.IntervalMs)
	}
	if c.MaxIterations <= 0 {
		return NewErrorf(ErrCodeValidation, "maxIterations must be positive, got %d", c.MaxIterations)
	}
	if c.ErrorPolicy != ErrorPolicyStop && c.ErrorPolicy != ErrorPolicySkip {
		return NewErrorf(ErrCodeValidation, "errorPolicy must be %q or %q, got %q",
			ErrorPolicyStop, ErrorPolicySkip, c.ErrorPolicy)
	}
	return nil
}

// RunResult is the runtime's structured response to a one-shot run.
type RunResult struct {
	SessionID    string         `json:"sessionId"`
	Status       string         `json:"status"`
	Outputs      map[string]any `json:"outputs,omitempty"`
	TotalTokens  int64          `json:"totalTokens"`
	TotalCostUsd float64        `json:"totalCostUsd"`
	DurationMs   int64          `json:"durationMs"`
	NodeCount    int            `json:"nodeCount"`
	Error        string         `json:"error,omitempty"`
}

// StartLiveResult identifies a freshly started live session.
type StartLiveResult struct {
	LiveRunID string `json:"liveRunId"`
	SessionID string `json:"sessionId"`
}
