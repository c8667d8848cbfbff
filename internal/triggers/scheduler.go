package triggers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/flowdeck/flowdeck/internal/store"
	"github.com/flowdeck/flowdeck/pkg/schema"
)

// WorkflowRunner is the interface the scheduler uses to run workflows.
// Satisfied by the runtime client (avoids import cycle).
type WorkflowRunner interface {
	Run(ctx context.Context, workflowID string, inputs map[string]any) (schema.RunResult, error)
}

// Scheduler polls the store for due scheduled triggers and runs their
// workflows.
type Scheduler struct {
	store  store.Store
	runner WorkflowRunner
	parser cron.Parser
	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex

	inflightMu sync.Mutex
	inflight   map[string]struct{} // trigger IDs currently executing (dedup)
}

// NewScheduler creates a new Scheduler with standard 5-field cron parsing.
func NewScheduler(s store.Store, runner WorkflowRunner, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:    s,
		runner:   runner,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		logger:   logger,
		inflight: make(map[string]struct{}),
	}
}

// Start launches the background scheduling loop with a 60s ticker.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("trigger scheduler started")
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	// Run an initial tick immediately.
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick checks all enabled triggers and runs those that are due.
func (s *Scheduler) tick(ctx context.Context) {
	trs, err := s.store.ListTriggers(ctx, store.TriggerFilter{EnabledOnly: true})
	if err != nil {
		s.logger.Error("failed to list scheduled triggers", slog.String("error", err.Error()))
		return
	}

	now := time.Now().UTC()
	for _, tr := range trs {
		if tr.NextRunAt == nil || !tr.NextRunAt.After(now) {
			if !s.tryAcquire(tr.ID) {
				continue // already running (dedup)
			}
			if err := s.runTrigger(ctx, tr, now); err != nil {
				s.logger.Error("failed to run scheduled trigger",
					slog.String("trigger_id", tr.ID),
					slog.String("error", err.Error()),
				)
			}
			s.release(tr.ID)
		}
	}
}

// runTrigger executes a trigger's workflow and updates its timestamps.
func (s *Scheduler) runTrigger(ctx context.Context, tr *store.ScheduledTrigger, now time.Time) error {
	s.logger.Info("running scheduled trigger",
		slog.String("trigger_id", tr.ID),
		slog.String("workflow_id", tr.WorkflowID),
	)

	result, err := s.runner.Run(ctx, tr.WorkflowID, tr.Inputs)
	if err != nil {
		s.logger.Error("scheduled workflow run failed",
			slog.String("trigger_id", tr.ID),
			slog.String("workflow_id", tr.WorkflowID),
			slog.String("error", err.Error()),
		)
	} else if result.Status == "failed" {
		s.logger.Warn("scheduled workflow run completed with failure",
			slog.String("trigger_id", tr.ID),
			slog.String("workflow_id", tr.WorkflowID),
			slog.String("run_error", result.Error),
		)
	}

	return s.advance(ctx, tr, now)
}

// advance records the run time and computes the next one from the cron
// expression.
func (s *Scheduler) advance(ctx context.Context, tr *store.ScheduledTrigger, now time.Time) error {
	nextRun, err := s.NextRun(tr.CronExpr, now)
	if err != nil {
		return fmt.Errorf("calculate next run for trigger %q: %w", tr.ID, err)
	}

	return s.store.UpdateTrigger(ctx, tr.ID, store.TriggerUpdate{
		LastRunAt: &now,
		NextRunAt: &nextRun,
	})
}

// tryAcquire returns true and marks the trigger as in-flight if it is not
// already running.
func (s *Scheduler) tryAcquire(triggerID string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[triggerID]; ok {
		return false
	}
	s.inflight[triggerID] = struct{}{}
	return true
}

// release removes the trigger from the in-flight set.
func (s *Scheduler) release(triggerID string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, triggerID)
}

// NextRun computes the next run time for a cron expression.
func (s *Scheduler) NextRun(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("trigger scheduler stopped")
	return nil
}
