package store

import "context"

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Workflow templates
	StoreTemplate(ctx context.Context, tpl *WorkflowTemplate) error
	GetTemplate(ctx context.Context, id string) (*WorkflowTemplate, error)
	ListTemplates(ctx context.Context) ([]*WorkflowTemplate, error)

	// Workflow runs
	CreateRun(ctx context.Context, run *WorkflowRun) error
	GetRun(ctx context.Context, id string) (*WorkflowRun, error)
	UpdateRun(ctx context.Context, id string, update RunUpdate) error
	ListRuns(ctx context.Context, filter RunFilter) ([]*WorkflowRun, error)
	FindActiveRun(ctx context.Context, workflowID, leadID string) (*WorkflowRun, error)

	// Call records
	CreateCall(ctx context.Context, rec *CallRecord) error
	GetCall(ctx context.Context, callSid string) (*CallRecord, error)
	UpdateCall(ctx context.Context, callSid string, update CallUpdate) error
	ListCalls(ctx context.Context, filter CallFilter) ([]*CallRecord, error)

	// Interactions (append-only)
	AppendInteraction(ctx context.Context, in *Interaction) error
	ListInteractions(ctx context.Context, leadID string) ([]*Interaction, error)

	// Run events (append-only)
	AppendEvent(ctx context.Context, event *RunEvent) error
	GetEvents(ctx context.Context, runID string, since int64) ([]*RunEvent, error)

	// Scheduled jobs (recurring outreach)
	CreateScheduledJob(ctx context.Context, job *ScheduledJob) error
	GetScheduledJob(ctx context.Context, id string) (*ScheduledJob, error)
	UpdateScheduledJob(ctx context.Context, id string, update ScheduledJobUpdate) error
	ListScheduledJobs(ctx context.Context, filter ScheduledJobFilter) ([]*ScheduledJob, error)
	DeleteScheduledJob(ctx context.Context, id string) error

	// Maintenance
	Migrate(ctx context.Context) error

	// Lifecycle
	Close() error
}
