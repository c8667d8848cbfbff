package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/flowdeck/internal/runstate"
	"github.com/flowdeck/flowdeck/internal/store"
	"github.com/flowdeck/flowdeck/pkg/schema"
)

type fakeRuntime struct {
	runResult   schema.RunResult
	runErr      error
	approvals   map[string]bool
	approvalErr error
}

func (f *fakeRuntime) RunWorkflow(_ context.Context, _ string, _ map[string]any) (schema.RunResult, error) {
	if f.runErr != nil {
		return schema.RunResult{}, f.runErr
	}
	return f.runResult, nil
}

func (f *fakeRuntime) StartLive(_ context.Context, _ string, _ map[string]any, _ schema.LiveConfig) (schema.StartLiveResult, error) {
	return schema.StartLiveResult{}, nil
}

func (f *fakeRuntime) StopLive(_ context.Context, _ string) error { return nil }

func (f *fakeRuntime) RespondApproval(_ context.Context, id string, approve bool) error {
	if f.approvalErr != nil {
		return f.approvalErr
	}
	if f.approvals == nil {
		f.approvals = make(map[string]bool)
	}
	f.approvals[id] = approve
	return nil
}

type fakeRecorder struct {
	sessions  []*store.RunSession
	resolved  map[string]bool
	createErr error
}

func (f *fakeRecorder) CreateSession(_ context.Context, sess *store.RunSession) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.sessions = append(f.sessions, sess)
	return nil
}

func (f *fakeRecorder) ResolveApproval(_ context.Context, id string, approved bool) error {
	if f.resolved == nil {
		f.resolved = make(map[string]bool)
	}
	f.resolved[id] = approved
	return nil
}

func TestService_RunResetsStaleState(t *testing.T) {
	states := runstate.NewStore()
	states.Apply(runstate.NodeEvent{Type: schema.EventNodeCompleted, NodeID: "old", Output: "stale"})
	require.Equal(t, 1, states.Size())

	rt := &fakeRuntime{runResult: schema.RunResult{SessionID: "sess-1", Status: "completed"}}
	svc := NewService(rt, states, nil, nil)

	result, err := svc.Run(context.Background(), "wf-1", nil)
	require.NoError(t, err)

	assert.Equal(t, "sess-1", result.SessionID)
	assert.Equal(t, 0, states.Size(), "previous run's state must be cleared")
}

func TestService_FailedRunIsNotAnInvocationError(t *testing.T) {
	rt := &fakeRuntime{runResult: schema.RunResult{
		SessionID: "sess-2",
		Status:    "failed",
		Error:     "llm node exploded",
	}}
	svc := NewService(rt, runstate.NewStore(), nil, nil)

	result, err := svc.Run(context.Background(), "wf-1", nil)
	require.NoError(t, err, "a run the runtime executed and reported failed is still a result")
	assert.Equal(t, "failed", result.Status)

	last, lastErr := svc.LastRun()
	require.NotNil(t, last)
	assert.NoError(t, lastErr)
	assert.Equal(t, "llm node exploded", last.Error)
}

func TestService_InvocationFailure(t *testing.T) {
	rt := &fakeRuntime{runErr: errors.New("transport down")}
	svc := NewService(rt, runstate.NewStore(), nil, nil)

	_, err := svc.Run(context.Background(), "wf-1", nil)

	var fe *schema.FlowdeckError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, schema.ErrCodeInvocation, fe.Code)

	last, lastErr := svc.LastRun()
	assert.Nil(t, last)
	assert.ErrorAs(t, lastErr, &fe)
}

func TestService_LastRunBeforeAnyRun(t *testing.T) {
	svc := NewService(&fakeRuntime{}, runstate.NewStore(), nil, nil)
	last, err := svc.LastRun()
	assert.Nil(t, last)
	assert.NoError(t, err)
}

func TestService_RunRecordsSession(t *testing.T) {
	rt := &fakeRuntime{runResult: schema.RunResult{
		SessionID:    "sess-rec",
		Status:       "completed",
		TotalTokens:  120,
		TotalCostUsd: 0.003,
		DurationMs:   800,
		NodeCount:    3,
	}}
	rec := &fakeRecorder{}
	svc := NewService(rt, runstate.NewStore(), rec, nil)

	_, err := svc.Run(context.Background(), "wf-1", nil)
	require.NoError(t, err)

	require.Len(t, rec.sessions, 1)
	sess := rec.sessions[0]
	assert.Equal(t, "sess-rec", sess.ID)
	assert.Equal(t, "wf-1", sess.WorkflowID)
	assert.Equal(t, store.SessionModeRun, sess.Mode)
	assert.Equal(t, "completed", sess.Status)
	assert.Equal(t, int64(120), sess.TotalTokens)
	assert.Equal(t, int64(800), sess.DurationMs)
	require.NotNil(t, sess.CompletedAt)
	assert.True(t, sess.StartedAt.Before(*sess.CompletedAt))
}

func TestService_InvocationFailureRecordsNothing(t *testing.T) {
	rt := &fakeRuntime{runErr: errors.New("transport down")}
	rec := &fakeRecorder{}
	svc := NewService(rt, runstate.NewStore(), rec, nil)

	_, err := svc.Run(context.Background(), "wf-1", nil)
	require.Error(t, err)
	assert.Empty(t, rec.sessions)
}

func TestService_RecorderFailureDoesNotFailRun(t *testing.T) {
	rt := &fakeRuntime{runResult: schema.RunResult{SessionID: "sess-1", Status: "completed"}}
	rec := &fakeRecorder{createErr: errors.New("disk full")}
	svc := NewService(rt, runstate.NewStore(), rec, nil)

	result, err := svc.Run(context.Background(), "wf-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", result.SessionID)
}

func TestService_RespondApproval(t *testing.T) {
	rt := &fakeRuntime{}
	rec := &fakeRecorder{}
	svc := NewService(rt, runstate.NewStore(), rec, nil)

	require.NoError(t, svc.RespondApproval(context.Background(), "appr-1", true))
	assert.True(t, rt.approvals["appr-1"])
	assert.True(t, rec.resolved["appr-1"], "the persisted approval row must be resolved")

	rt.approvalErr = errors.New("transport down")
	err := svc.RespondApproval(context.Background(), "appr-2", false)
	var fe *schema.FlowdeckError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, schema.ErrCodeInvocation, fe.Code)
}
