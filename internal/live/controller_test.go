package live

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/flowdeck/pkg/schema"
)

type fakeRunner struct {
	startCalls int
	stopCalls  int
	stoppedID  string
	startErr   error
	stopErr    error
}

func (r *fakeRunner) StartLive(_ context.Context, _ string, _ map[string]any, _ schema.LiveConfig) (schema.StartLiveResult, error) {
	r.startCalls++
	if r.startErr != nil {
		return schema.StartLiveResult{}, r.startErr
	}
	return schema.StartLiveResult{LiveRunID: "live-run-1", SessionID: "sess-1"}, nil
}

func (r *fakeRunner) StopLive(_ context.Context, workflowID string) error {
	r.stopCalls++
	r.stoppedID = workflowID
	return r.stopErr
}

type fakeResetter struct {
	resets int
}

func (f *fakeResetter) ResetAll() { f.resets++ }

func newTestController() (*Controller, *fakeRunner, *fakeResetter) {
	runner := &fakeRunner{}
	states := &fakeResetter{}
	return NewController(runner, states, nil), runner, states
}

func TestStart_ResetsStateAndActivates(t *testing.T) {
	c, runner, states := newTestController()

	result, err := c.Start(context.Background(), "wf-1", nil, schema.DefaultLiveConfig())
	require.NoError(t, err)

	assert.Equal(t, "live-run-1", result.LiveRunID)
	assert.Equal(t, 1, runner.startCalls)
	assert.Equal(t, 1, states.resets)
	assert.True(t, c.Active())
	assert.Empty(t, c.Feed())
}

func TestStart_RejectsInvalidConfig(t *testing.T) {
	c, runner, states := newTestController()

	_, err := c.Start(context.Background(), "wf-1", nil, schema.LiveConfig{
		IntervalMs:    0,
		MaxIterations: 10,
		ErrorPolicy:   schema.ErrorPolicySkip,
	})

	var fe *schema.FlowdeckError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, schema.ErrCodeValidation, fe.Code)
	assert.Equal(t, 0, runner.startCalls, "runtime must not be reached on invalid config")
	assert.Equal(t, 0, states.resets)
}

func TestStart_ConflictWhileActive(t *testing.T) {
	c, _, _ := newTestController()
	_, err := c.Start(context.Background(), "wf-1", nil, schema.DefaultLiveConfig())
	require.NoError(t, err)

	_, err = c.Start(context.Background(), "wf-1", nil, schema.DefaultLiveConfig())

	var fe *schema.FlowdeckError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, schema.ErrCodeConflict, fe.Code)
}

func TestStart_RunnerFailureStaysInactive(t *testing.T) {
	c, runner, _ := newTestController()
	runner.startErr = errors.New("runtime unreachable")

	_, err := c.Start(context.Background(), "wf-1", nil, schema.DefaultLiveConfig())

	var fe *schema.FlowdeckError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, schema.ErrCodeLiveSession, fe.Code)
	assert.False(t, c.Active())
}

func TestStop_BestEffortKeepsFeed(t *testing.T) {
	c, runner, _ := newTestController()
	_, err := c.Start(context.Background(), "wf-1", nil, schema.DefaultLiveConfig())
	require.NoError(t, err)

	c.Apply(FeedEvent{SubType: schema.LiveFeedIterationCompleted, Iteration: 1, Tokens: 10})
	runner.stopErr = errors.New("runtime unreachable")

	err = c.Stop(context.Background())
	require.Error(t, err)

	// Session is stopped locally even though the runtime never acknowledged.
	assert.False(t, c.Active())
	assert.Equal(t, "wf-1", runner.stoppedID)
	assert.Len(t, c.Feed(), 1)
}

func TestStop_NoSession(t *testing.T) {
	c, _, _ := newTestController()

	err := c.Stop(context.Background())

	var fe *schema.FlowdeckError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, schema.ErrCodeLiveSession, fe.Code)
}

func TestApply_FeedGrowsAcrossStop(t *testing.T) {
	c, _, _ := newTestController()
	_, err := c.Start(context.Background(), "wf-1", nil, schema.DefaultLiveConfig())
	require.NoError(t, err)

	c.Apply(FeedEvent{SubType: schema.LiveFeedIterationCompleted, Iteration: 1})
	c.Apply(FeedEvent{SubType: schema.LiveFeedIterationError, Iteration: 2, Error: "timeout"})
	c.Apply(FeedEvent{SubType: schema.LiveFeedIterationCompleted, Iteration: 3})

	require.NoError(t, c.Stop(context.Background()))

	// An in-flight iteration finishing after the stop still lands in the feed.
	c.Apply(FeedEvent{SubType: schema.LiveFeedIterationCompleted, Iteration: 4})

	feed := c.Feed()
	require.Len(t, feed, 4)
	for i, item := range feed {
		assert.Equal(t, int64(i+1), item.Iteration)
	}
	assert.Equal(t, schema.LiveItemError, feed[1].Type)
}

func TestApply_StoppedEventEndsSession(t *testing.T) {
	c, _, _ := newTestController()
	_, err := c.Start(context.Background(), "wf-1", nil, schema.DefaultLiveConfig())
	require.NoError(t, err)

	c.Apply(FeedEvent{SubType: schema.LiveFeedStopped, Reason: "max_iterations_reached"})

	assert.False(t, c.Active())
	assert.Equal(t, "max_iterations_reached", c.StopReason())
}

func TestStats_DerivedFromFeed(t *testing.T) {
	c, _, _ := newTestController()

	c.Apply(FeedEvent{SubType: schema.LiveFeedIterationCompleted, Iteration: 1, Tokens: 100, CostUsd: 0.01, DurationMs: 200})
	c.Apply(FeedEvent{SubType: schema.LiveFeedIterationError, Iteration: 2, Error: "boom", DurationMs: 100})
	c.Apply(FeedEvent{SubType: schema.LiveFeedIterationCompleted, Iteration: 3, Tokens: 50, CostUsd: 0.005, DurationMs: 300})

	stats := c.Stats()
	assert.Equal(t, int64(3), stats.Iterations)
	assert.Equal(t, int64(1), stats.Errors)
	assert.Equal(t, int64(150), stats.TotalTokens)
	assert.InDelta(t, 0.015, stats.TotalCostUsd, 1e-9)
	assert.Equal(t, int64(200), stats.AvgDurationMs)
}

func TestClearFeed(t *testing.T) {
	c, _, _ := newTestController()
	c.Apply(FeedEvent{SubType: schema.LiveFeedIterationCompleted, Iteration: 1})
	require.Len(t, c.Feed(), 1)

	c.ClearFeed()

	assert.Empty(t, c.Feed())
	assert.Equal(t, int64(0), c.Stats().Iterations)
}

func TestFeedCap(t *testing.T) {
	c, _, _ := newTestController()

	for i := 1; i <= maxFeedItems+25; i++ {
		c.Apply(FeedEvent{SubType: schema.LiveFeedIterationCompleted, Iteration: int64(i)})
	}

	feed := c.Feed()
	require.Len(t, feed, maxFeedItems)
	assert.Equal(t, int64(26), feed[0].Iteration, "oldest items fall off the front")
	assert.Equal(t, int64(maxFeedItems+25), feed[len(feed)-1].Iteration)
}

func TestStart_DiscardsPreviousFeed(t *testing.T) {
	c, _, _ := newTestController()
	_, err := c.Start(context.Background(), "wf-1", nil, schema.DefaultLiveConfig())
	require.NoError(t, err)
	c.Apply(FeedEvent{SubType: schema.LiveFeedIterationCompleted, Iteration: 1})
	require.NoError(t, c.Stop(context.Background()))

	_, err = c.Start(context.Background(), "wf-1", nil, schema.DefaultLiveConfig())
	require.NoError(t, err)

	assert.Empty(t, c.Feed())
	assert.Empty(t, c.StopReason())
}
