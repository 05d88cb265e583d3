package schema

// RunStatus is the lifecycle state of a workflow run.
type RunStatus string

const (
	RunStatusPending         RunStatus = "pending"
	RunStatusRunning         RunStatus = "running"
	RunStatusWaitingTimer    RunStatus = "waiting_timer"
	RunStatusWaitingExternal RunStatus = "waiting_external"
	RunStatusCompleted       RunStatus = "completed"
	RunStatusFailed          RunStatus = "failed"
	RunStatusCancelled       RunStatus = "cancelled"
)

// ValidRunTransitions defines the allowed state transitions for runs.
var ValidRunTransitions = map[RunStatus][]RunStatus{
	RunStatusPending:         {RunStatusRunning, RunStatusCancelled},
	RunStatusRunning:         {RunStatusWaitingTimer, RunStatusWaitingExternal, RunStatusCompleted, RunStatusFailed, RunStatusCancelled},
	RunStatusWaitingTimer:    {RunStatusRunning, RunStatusFailed, RunStatusCancelled},
	RunStatusWaitingExternal: {RunStatusRunning, RunStatusWaitingTimer, RunStatusFailed, RunStatusCancelled},
	RunStatusCompleted:       {},
	RunStatusFailed:          {},
	RunStatusCancelled:       {},
}

// IsValidRunTransition reports whether from -> to is an allowed transition.
func IsValidRunTransition(from, to RunStatus) bool {
	for _, a := range ValidRunTransitions[from] {
		if a == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status permits no further transitions.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// Run event types recorded in the append-only event log.
const (
	EventRunStarted     = "run_started"
	EventRunCompleted   = "run_completed"
	EventRunFailed      = "run_failed"
	EventRunCancelled   = "run_cancelled"
	EventRunSuspended   = "run_suspended"
	EventRunResumed     = "run_resumed"
	EventStepStarted    = "step_started"
	EventStepCompleted  = "step_completed"
	EventStepFailed     = "step_failed"
	EventStepSkipped    = "step_skipped"
	EventStepRetrying   = "step_retrying"
)
