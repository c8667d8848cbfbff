package store

import "context"

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Workflows (graph documents)
	SaveWorkflow(ctx context.Context, wf *Workflow) error
	GetWorkflow(ctx context.Context, id string) (*Workflow, error)
	ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]*Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error

	// Run sessions
	CreateSession(ctx context.Context, sess *RunSession) error
	GetSession(ctx context.Context, id string) (*RunSession, error)
	UpdateSession(ctx context.Context, id string, update SessionUpdate) error
	ListSessions(ctx context.Context, filter SessionFilter) ([]*RunSession, error)

	// Event log (append-only)
	AppendEvent(ctx context.Context, event *Event) error
	GetEvents(ctx context.Context, sessionID string, since int64) ([]*Event, error)
	GetEventsByType(ctx context.Context, eventType string, filter EventFilter) ([]*Event, error)

	// Approvals
	CreateApproval(ctx context.Context, a *Approval) error
	ResolveApproval(ctx context.Context, id string, approved bool) error
	ListApprovals(ctx context.Context, status ApprovalStatus) ([]*Approval, error)

	// Scheduled triggers
	CreateTrigger(ctx context.Context, tr *ScheduledTrigger) error
	GetTrigger(ctx context.Context, id string) (*ScheduledTrigger, error)
	UpdateTrigger(ctx context.Context, id string, update TriggerUpdate) error
	ListTriggers(ctx context.Context, filter TriggerFilter) ([]*ScheduledTrigger, error)
	DeleteTrigger(ctx context.Context, id string) error

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}
