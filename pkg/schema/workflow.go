package schema

// TriggerType enumerates how a workflow may be started.
type TriggerType string

const (
	TriggerManual      TriggerType = "manual"
	TriggerLeadCreated TriggerType = "lead_created"
	TriggerDemoSent    TriggerType = "demo_sent"
	TriggerScheduled   TriggerType = "scheduled"
)

// StepKind enumerates the kinds of steps in an outreach workflow.
type StepKind string

const (
	StepEmail   StepKind = "email"
	StepCall    StepKind = "call"
	StepWait    StepKind = "wait"
	StepWebhook StepKind = "webhook"
)

// StepConfig describes a single step of a workflow definition.
// DelayMs on a wait step is the pause duration; on any other kind it is
// the delay before the step executes.
type StepConfig struct {
	Kind    StepKind `json:"kind"`
	DelayMs int64    `json:"delay_ms,omitempty"`

	// Condition is an optional expr-lang expression evaluated against the
	// run context (reaction, call_status, call_duration, step outputs).
	// A step whose condition evaluates to false is skipped.
	Condition string `json:"condition,omitempty"`

	// Email steps.
	Template string `json:"template,omitempty"`
	Subject  string `json:"subject,omitempty"`

	// Call steps.
	Script string `json:"script,omitempty"`

	// Webhook steps.
	URL     string `json:"url,omitempty"`
	Method  string `json:"method,omitempty"`
	Extract string `json:"extract,omitempty"` // jq expression over the response body
}

// WorkflowDefinition is the JSON-serializable ordered step sequence of a
// workflow template. Step order is execution order.
// An empty Trigger means manual.
type WorkflowDefinition struct {
	Trigger TriggerType  `json:"trigger,omitempty"`
	Steps   []StepConfig `json:"steps"`
}
