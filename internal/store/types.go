package store

import (
	"encoding/json"
	"time"

	"github.com/leadflow/outreach/pkg/schema"
)

// WorkflowTemplate is a named, immutable step sequence runnable against leads.
type WorkflowTemplate struct {
	ID          string                    `json:"id"`
	Name        string                    `json:"name"`
	Description string                    `json:"description,omitempty"`
	Definition  schema.WorkflowDefinition `json:"definition"`
	CreatedAt   time.Time                 `json:"created_at"`
	UpdatedAt   time.Time                 `json:"updated_at"`
}

// WorkflowRun is one execution instance of a workflow against one lead.
// Owned by the coordinator; mutated only through its transition API.
type WorkflowRun struct {
	ID               string           `json:"id"`
	WorkflowID       string           `json:"workflow_id"`
	LeadID           string           `json:"lead_id"`
	Status           schema.RunStatus `json:"status"`
	CurrentStepIndex int              `json:"current_step_index"`
	RetryCount       int              `json:"retry_count"`
	Context          map[string]any   `json:"context,omitempty"`
	DueAt            *time.Time       `json:"due_at,omitempty"`
	Deadline         *time.Time       `json:"deadline,omitempty"`
	LastError        string           `json:"last_error,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// CallRecord tracks the lifecycle of a single outbound call. The run holds a
// back-reference via RunID; the run does not own the record.
type CallRecord struct {
	CallSid     string            `json:"call_sid"`
	RunID       string            `json:"run_id,omitempty"`
	LeadID      string            `json:"lead_id"`
	PhoneNumber string            `json:"phone_number"`
	Script      string            `json:"script,omitempty"`
	Status      schema.CallStatus `json:"status"`
	Reaction    schema.Reaction   `json:"reaction,omitempty"`
	Duration    int               `json:"duration,omitempty"` // seconds
	Notified    bool              `json:"notified"`
	StartTime   time.Time         `json:"start_time"`
	EndTime     *time.Time        `json:"end_time,omitempty"`
}

// Interaction is an append-only log entry of an outbound touch on a lead.
type Interaction struct {
	ID        string    `json:"id"`
	LeadID    string    `json:"lead_id"`
	RunID     string    `json:"run_id,omitempty"`
	Type      string    `json:"type"` // email, call, webhook
	Content   string    `json:"content,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// RunEvent is an immutable entry in the per-run event log.
type RunEvent struct {
	ID        int64           `json:"id"`
	RunID     string          `json:"run_id"`
	StepIndex int             `json:"step_index"`
	Type      string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Sequence  int64           `json:"sequence"`
}

// ScheduledJob is a cron-triggered recurring run start for one lead.
type ScheduledJob struct {
	ID             string     `json:"id"`
	WorkflowID     string     `json:"workflow_id"`
	LeadID         string     `json:"lead_id"`
	CronExpression string     `json:"cron_expression"`
	Enabled        bool       `json:"enabled"`
	LastRunAt      *time.Time `json:"last_run_at,omitempty"`
	NextRunAt      *time.Time `json:"next_run_at,omitempty"`
	LastRunStatus  string     `json:"last_run_status,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// --- Filter and update types ---

// RunUpdate specifies mutable fields of a run. Nil pointers leave the field
// unchanged; the Clear flags null the corresponding column.
type RunUpdate struct {
	Status           *schema.RunStatus `json:"status,omitempty"`
	CurrentStepIndex *int              `json:"current_step_index,omitempty"`
	RetryCount       *int              `json:"retry_count,omitempty"`
	Context          map[string]any    `json:"context,omitempty"`
	DueAt            *time.Time        `json:"due_at,omitempty"`
	ClearDueAt       bool              `json:"-"`
	Deadline         *time.Time        `json:"deadline,omitempty"`
	ClearDeadline    bool              `json:"-"`
	LastError        *string           `json:"last_error,omitempty"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status     *schema.RunStatus `json:"status,omitempty"`
	DueBefore  *time.Time        `json:"due_before,omitempty"`
	WorkflowID string            `json:"workflow_id,omitempty"`
	LeadID     string            `json:"lead_id,omitempty"`
	Limit      int               `json:"limit,omitempty"`
}

// CallUpdate specifies mutable fields of a call record.
type CallUpdate struct {
	Status   *schema.CallStatus `json:"status,omitempty"`
	Reaction *schema.Reaction   `json:"reaction,omitempty"`
	Duration *int               `json:"duration,omitempty"`
	Notified *bool              `json:"notified,omitempty"`
	EndTime  *time.Time         `json:"end_time,omitempty"`
}

// CallFilter specifies criteria for listing call records.
type CallFilter struct {
	LeadID string `json:"lead_id,omitempty"`
	RunID  string `json:"run_id,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// ScheduledJobUpdate specifies mutable fields of a scheduled job.
type ScheduledJobUpdate struct {
	Enabled       *bool      `json:"enabled,omitempty"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	NextRunAt     *time.Time `json:"next_run_at,omitempty"`
	LastRunStatus string     `json:"last_run_status,omitempty"`
}

// ScheduledJobFilter specifies criteria for listing scheduled jobs.
type ScheduledJobFilter struct {
	Enabled *bool  `json:"enabled,omitempty"`
	LeadID  string `json:"lead_id,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}
