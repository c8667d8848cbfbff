package store

import (
	"encoding/json"
	"time"

	"github.com/flowdeck/flowdeck/pkg/schema"
)

// Workflow is a persisted graph document with its metadata.
type Workflow struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Document    schema.GraphDocument `json:"document"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

// WorkflowFilter narrows ListWorkflows.
type WorkflowFilter struct {
	Limit  int
	Offset int
}

// SessionMode distinguishes one-shot runs from live sessions.
type SessionMode string

const (
	SessionModeRun  SessionMode = "run"
	SessionModeLive SessionMode = "live"
)

// RunSession is one execution of a workflow, one-shot or live.
type RunSession struct {
	ID           string      `json:"id"`
	WorkflowID   string      `json:"workflowId"`
	Mode         SessionMode `json:"mode"`
	LiveRunID    string      `json:"liveRunId,omitempty"`
	Status       string      `json:"status"`
	TotalTokens  int64       `json:"totalTokens"`
	TotalCostUsd float64     `json:"totalCostUsd"`
	DurationMs   int64       `json:"durationMs"`
	NodeCount    int         `json:"nodeCount"`
	Error        string      `json:"error,omitempty"`
	StartedAt    time.Time   `json:"startedAt"`
	CompletedAt  *time.Time  `json:"completedAt,omitempty"`
}

// SessionUpdate carries partial updates; nil fields are left untouched.
type SessionUpdate struct {
	Status       *string
	TotalTokens  *int64
	TotalCostUsd *float64
	DurationMs   *int64
	NodeCount    *int
	Error        *string
	CompletedAt  *time.Time
}

// SessionFilter narrows ListSessions.
type SessionFilter struct {
	WorkflowID string
	Status     string
	Limit      int
}

// Event is an immutable entry in the per-session event log.
type Event struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"sessionId"`
	NodeID    string          `json:"nodeId,omitempty"`
	Type      string          `json:"eventType"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Sequence  int64           `json:"sequence"`
}

// EventFilter narrows GetEventsByType.
type EventFilter struct {
	SessionID string
	NodeID    string
	Since     *time.Time
	Limit     int
}

// ApprovalStatus tracks an approval's lifecycle in the store.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Approval is a persisted approval request and its outcome.
type Approval struct {
	ID          string         `json:"id"`
	SessionID   string         `json:"sessionId"`
	NodeID      string         `json:"nodeId,omitempty"`
	Message     string         `json:"message"`
	DataPreview string         `json:"dataPreview,omitempty"`
	Status      ApprovalStatus `json:"status"`
	RequestedAt time.Time      `json:"requestedAt"`
	ResolvedAt  *time.Time     `json:"resolvedAt,omitempty"`
}

// ScheduledTrigger runs a workflow on a cron schedule.
type ScheduledTrigger struct {
	ID         string         `json:"id"`
	WorkflowID string         `json:"workflowId"`
	CronExpr   string         `json:"cronExpr"`
	Inputs     map[string]any `json:"inputs,omitempty"`
	Enabled    bool           `json:"enabled"`
	LastRunAt  *time.Time     `json:"lastRunAt,omitempty"`
	NextRunAt  *time.Time     `json:"nextRunAt,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// TriggerUpdate carries partial updates; nil fields are left untouched.
type TriggerUpdate struct {
	CronExpr  *string
	Enabled   *bool
	LastRunAt *time.Time
	NextRunAt *time.Time
}

// TriggerFilter narrows ListTriggers.
type TriggerFilter struct {
	WorkflowID  string
	EnabledOnly bool
}
