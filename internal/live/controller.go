// Package live manages continuous-run sessions: start/stop lifecycle plus the
// rolling telemetry feed built from live_workflow_feed events.
package live

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/flowdeck/flowdeck/pkg/schema"
)

// maxFeedItems caps the rolling feed. Older iterations fall off the front; a
// session at the default 1000-iteration limit keeps its most recent half.
const maxFeedItems = 500

// Runner starts and stops live execution on the runtime boundary.
type Runner interface {
	StartLive(ctx context.Context, workflowID string, inputs map[string]any, cfg schema.LiveConfig) (schema.StartLiveResult, error)
	StopLive(ctx context.Context, workflowID string) error
}

// StateResetter clears per-node execution state at session start.
type StateResetter interface {
	ResetAll()
}

// FeedEvent is a decoded live_workflow_feed payload.
type FeedEvent struct {
	SubType       string  `json:"type"`
	LiveRunID     string  `json:"liveRunId"`
	Iteration     int64   `json:"iteration,omitempty"`
	OutputSummary string  `json:"outputSummary,omitempty"`
	Error         string  `json:"error,omitempty"`
	DurationMs    int64   `json:"durationMs,omitempty"`
	Tokens        int64   `json:"tokens,omitempty"`
	CostUsd       float64 `json:"costUsd,omitempty"`
	Reason        string  `json:"reason,omitempty"`
}

// Stats are aggregates derived from the feed. They are recomputed on demand
// and never stored, so feed trimming keeps them honest for what remains.
type Stats struct {
	Iterations    int64   `json:"iterations"`
	Errors        int64   `json:"errors"`
	TotalTokens   int64   `json:"totalTokens"`
	TotalCostUsd  float64 `json:"totalCostUsd"`
	AvgDurationMs int64   `json:"avgDurationMs"`
}

// Controller is the client-side authority on live session state. At most one
// session is active at a time; the feed survives a stop so the operator can
// inspect what happened, and only ClearFeed or a new Start discards it.
type Controller struct {
	runner Runner
	states StateResetter
	logger *slog.Logger

	mu         sync.RWMutex
	active     bool
	liveRunID  string
	sessionID  string
	workflowID string
	config     schema.LiveConfig
	stopReason string
	startedAt  time.Time
	feed       []schema.LiveFeedItem
}

// NewController wires a controller to its runner and execution state store.
func NewController(runner Runner, states StateResetter, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		runner: runner,
		states: states,
		logger: logger,
	}
}

// Start begins a live session for the workflow. The previous session's feed
// is discarded and all node execution state is reset before the runtime is
// asked to start. Starting while a session is active is a conflict.
func (c *Controller) Start(ctx context.Context, workflowID string, inputs map[string]any, cfg schema.LiveConfig) (schema.StartLiveResult, error) {
	if err := cfg.Validate(); err != nil {
		return schema.StartLiveResult{}, err
	}

	c.mu.Lock()
	if c.active {
		running := c.liveRunID
		c.mu.Unlock()
		return schema.StartLiveResult{}, schema.NewErrorf(schema.ErrCodeConflict,
			"live session %s already running", running)
	}
	c.feed = nil
	c.stopReason = ""
	c.mu.Unlock()

	c.states.ResetAll()

	result, err := c.runner.StartLive(ctx, workflowID, inputs, cfg)
	if err != nil {
		return schema.StartLiveResult{}, schema.NewError(schema.ErrCodeLiveSession,
			"failed to start live session").WithCause(err)
	}

	c.mu.Lock()
	c.active = true
	c.liveRunID = result.LiveRunID
	c.sessionID = result.SessionID
	c.workflowID = workflowID
	c.config = cfg
	c.startedAt = time.Now()
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "live session started",
		"live_run_id", result.LiveRunID,
		"workflow_id", workflowID,
		"interval_ms", cfg.IntervalMs,
		"max_iterations", cfg.MaxIterations,
		"error_policy", cfg.ErrorPolicy)

	return result, nil
}

// Stop ends the active session. The stop is best-effort: the local session is
// marked stopped even when the runtime call fails, so the UI never wedges on
// a dead runtime. The feed is kept.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return schema.NewError(schema.ErrCodeLiveSession, "no live session running")
	}
	liveRunID := c.liveRunID
	workflowID := c.workflowID
	c.active = false
	if c.stopReason == "" {
		c.stopReason = "user_requested"
	}
	c.mu.Unlock()

	if err := c.runner.StopLive(ctx, workflowID); err != nil {
		c.logger.WarnContext(ctx, "runtime stop failed, session marked stopped locally",
			"live_run_id", liveRunID, "error", err)
		return schema.NewError(schema.ErrCodeLiveSession,
			"runtime did not acknowledge stop").WithCause(err)
	}

	c.logger.InfoContext(ctx, "live session stopped", "live_run_id", liveRunID)
	return nil
}

// Apply folds one decoded feed event into the session. Iteration events that
// arrive after a stop are still appended: in-flight iterations finish and
// their telemetry belongs in the feed.
func (c *Controller) Apply(ev FeedEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.SubType {
	case schema.LiveFeedStarted:
		if ev.LiveRunID != "" {
			c.liveRunID = ev.LiveRunID
		}
		c.active = true

	case schema.LiveFeedIterationCompleted:
		c.append(schema.LiveFeedItem{
			Iteration:     ev.Iteration,
			Type:          schema.LiveItemCompleted,
			OutputSummary: ev.OutputSummary,
			DurationMs:    ev.DurationMs,
			Tokens:        ev.Tokens,
			CostUsd:       ev.CostUsd,
			Timestamp:     time.Now().UTC(),
		})

	case schema.LiveFeedIterationError:
		c.append(schema.LiveFeedItem{
			Iteration:  ev.Iteration,
			Type:       schema.LiveItemError,
			Error:      ev.Error,
			DurationMs: ev.DurationMs,
			Timestamp:  time.Now().UTC(),
		})

	case schema.LiveFeedStopped:
		c.active = false
		if ev.Reason != "" {
			c.stopReason = ev.Reason
		}

	default:
		c.logger.Warn("unknown live feed event", "type", ev.SubType)
	}
}

// append assumes c.mu is held.
func (c *Controller) append(item schema.LiveFeedItem) {
	c.feed = append(c.feed, item)
	if len(c.feed) > maxFeedItems {
		c.feed = c.feed[len(c.feed)-maxFeedItems:]
	}
}

// Active reports whether a session is currently running.
func (c *Controller) Active() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// LiveRunID returns the active or most recent session's run id.
func (c *Controller) LiveRunID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.liveRunID
}

// StopReason returns why the last session ended, empty while running.
func (c *Controller) StopReason() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stopReason
}

// Elapsed returns how long the current session has been live, zero when no
// session has ever started.
func (c *Controller) Elapsed() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.startedAt.IsZero() {
		return 0
	}
	return time.Since(c.startedAt)
}

// Config returns the active or most recent session's configuration.
func (c *Controller) Config() schema.LiveConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}

// Feed returns a copy of the telemetry feed, oldest first.
func (c *Controller) Feed() []schema.LiveFeedItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]schema.LiveFeedItem, len(c.feed))
	copy(out, c.feed)
	return out
}

// ClearFeed empties the feed without touching session state.
func (c *Controller) ClearFeed() {
	c.mu.Lock()
	c.feed = nil
	c.mu.Unlock()
}

// Stats derives aggregates from the current feed.
func (c *Controller) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var s Stats
	var totalDuration int64
	for _, item := range c.feed {
		s.Iterations++
		if item.Type == schema.LiveItemError {
			s.Errors++
		}
		s.TotalTokens += item.Tokens
		s.TotalCostUsd += item.CostUsd
		totalDuration += item.DurationMs
	}
	if s.Iterations > 0 {
		s.AvgDurationMs = totalDuration / s.Iterations
	}
	return s
}
