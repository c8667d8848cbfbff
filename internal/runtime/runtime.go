// Package runtime is the client side of the execution boundary: the command
// surface toward the external runtime and the dispatcher that turns its push
// events into typed updates for the state stores.
package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowdeck/flowdeck/internal/store"
	"github.com/flowdeck/flowdeck/pkg/schema"
)

// Runtime is the command surface toward the external execution runtime.
// Implementations carry the transport; callers see only typed results.
type Runtime interface {
	RunWorkflow(ctx context.Context, workflowID string, inputs map[string]any) (schema.RunResult, error)
	StartLive(ctx context.Context, workflowID string, inputs map[string]any, cfg schema.LiveConfig) (schema.StartLiveResult, error)
	StopLive(ctx context.Context, workflowID string) error
	RespondApproval(ctx context.Context, approvalID string, approve bool) error
}

// StateResetter clears per-node execution state before a run.
type StateResetter interface {
	ResetAll()
}

// RunRecorder persists run bookkeeping: one session row per run attempt and
// the outcome of approval decisions. Satisfied by store.Store.
type RunRecorder interface {
	CreateSession(ctx context.Context, sess *store.RunSession) error
	ResolveApproval(ctx context.Context, id string, approved bool) error
}

// Service wraps a Runtime with the client-side run bookkeeping: state reset
// before each run and a single "last run" surface the user can inspect.
// A transport failure is kept distinct from a run the runtime executed and
// reported failed; the caller can tell "the request never reached the
// runtime" from "the runtime ran and said no".
type Service struct {
	rt     Runtime
	states StateResetter
	rec    RunRecorder
	logger *slog.Logger

	mu            sync.RWMutex
	lastResult    *schema.RunResult
	lastInvokeErr error
}

// NewService builds a Service over the given runtime. rec may be nil, in
// which case runs leave no persistent trace.
func NewService(rt Runtime, states StateResetter, rec RunRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{rt: rt, states: states, rec: rec, logger: logger}
}

// Run executes the workflow once. Node state is reset first so stale results
// from a previous run are never displayed. A failed RunResult is not an
// error here: the run happened, the runtime reported it, and the result is
// recorded as the last run either way.
func (s *Service) Run(ctx context.Context, workflowID string, inputs map[string]any) (schema.RunResult, error) {
	s.states.ResetAll()

	result, err := s.rt.RunWorkflow(ctx, workflowID, inputs)
	if err != nil {
		invokeErr := schema.NewError(schema.ErrCodeInvocation,
			"run request never reached the runtime").WithCause(err)
		s.mu.Lock()
		s.lastResult = nil
		s.lastInvokeErr = invokeErr
		s.mu.Unlock()
		s.logger.ErrorContext(ctx, "run invocation failed",
			"workflow_id", workflowID, "error", err)
		return schema.RunResult{}, invokeErr
	}

	s.mu.Lock()
	s.lastResult = &result
	s.lastInvokeErr = nil
	s.mu.Unlock()

	s.recordSession(ctx, workflowID, result)

	s.logger.InfoContext(ctx, "run finished",
		"workflow_id", workflowID,
		"session_id", result.SessionID,
		"status", result.Status,
		"duration_ms", result.DurationMs,
		"tokens", result.TotalTokens)
	return result, nil
}

// recordSession persists one session row for a completed run attempt.
// Best-effort: a store failure is logged, never surfaced to the caller.
func (s *Service) recordSession(ctx context.Context, workflowID string, result schema.RunResult) {
	if s.rec == nil {
		return
	}
	sessionID := result.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	completed := time.Now().UTC()
	started := completed.Add(-time.Duration(result.DurationMs) * time.Millisecond)
	sess := &store.RunSession{
		ID:           sessionID,
		WorkflowID:   workflowID,
		Mode:         store.SessionModeRun,
		Status:       result.Status,
		TotalTokens:  result.TotalTokens,
		TotalCostUsd: result.TotalCostUsd,
		DurationMs:   result.DurationMs,
		NodeCount:    result.NodeCount,
		Error:        result.Error,
		StartedAt:    started,
		CompletedAt:  &completed,
	}
	if err := s.rec.CreateSession(ctx, sess); err != nil {
		s.logger.WarnContext(ctx, "failed to record run session",
			"session_id", sessionID, "error", err)
	}
}

// LastRun returns the most recent run's result, or the invocation error when
// the last attempt never reached the runtime. Exactly one of the two is set
// after a run attempt; both are nil before the first.
func (s *Service) LastRun() (*schema.RunResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastResult == nil {
		return nil, s.lastInvokeErr
	}
	out := *s.lastResult
	return &out, nil
}

// RespondApproval forwards an approval decision to the runtime and marks the
// persisted approval row resolved.
func (s *Service) RespondApproval(ctx context.Context, approvalID string, approve bool) error {
	if err := s.rt.RespondApproval(ctx, approvalID, approve); err != nil {
		return schema.NewError(schema.ErrCodeInvocation,
			"approval response never reached the runtime").WithCause(err)
	}
	if s.rec != nil {
		if err := s.rec.ResolveApproval(ctx, approvalID, approve); err != nil {
			s.logger.WarnContext(ctx, "failed to persist approval resolution",
				"approval_id", approvalID, "error", err)
		}
	}
	s.logger.InfoContext(ctx, "approval decision sent",
		"approval_id", approvalID, "approve", approve)
	return nil
}
