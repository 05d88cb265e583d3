// Package engine holds the workflow run coordinator and the step executors.
// The coordinator owns the authoritative run record and the per-run lock;
// all run mutation flows through its transition API.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leadflow/outreach/internal/logging"
	"github.com/leadflow/outreach/internal/store"
	"github.com/leadflow/outreach/pkg/schema"
)

// Advancer drives a run forward. Satisfied by the scheduler (avoids import
// cycle); wired in after construction via SetAdvancer.
type Advancer interface {
	Advance(ctx context.Context, runID string)
}

// runLocks is a keyed mutex guaranteeing at most one active tick per run.
type runLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newRunLocks() *runLocks {
	return &runLocks{locks: make(map[string]*sync.Mutex)}
}

func (r *runLocks) get(runID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.locks[runID]
	if !ok {
		m = &sync.Mutex{}
		r.locks[runID] = m
	}
	return m
}

// TryLock attempts to take the run's lock without blocking.
func (r *runLocks) TryLock(runID string) bool {
	return r.get(runID).TryLock()
}

// Lock blocks until the run's lock is held.
func (r *runLocks) Lock(runID string) {
	r.get(runID).Lock()
}

// Unlock releases the run's lock.
func (r *runLocks) Unlock(runID string) {
	r.get(runID).Unlock()
}

// Coordinator owns workflow runs: creation, cancellation, external resume,
// and the validated status transitions everything else goes through.
type Coordinator struct {
	store  store.Store
	logger *slog.Logger
	locks  *runLocks

	mu       sync.Mutex
	advancer Advancer
}

// NewCoordinator creates a coordinator over the given store.
func NewCoordinator(st store.Store, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:  st,
		logger: logger,
		locks:  newRunLocks(),
	}
}

// SetAdvancer wires the scheduler in after construction. Must be called
// before runs start.
func (c *Coordinator) SetAdvancer(a Advancer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advancer = a
}

func (c *Coordinator) getAdvancer() Advancer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.advancer
}

// TryLockRun attempts to take the run's exclusive tick lock.
func (c *Coordinator) TryLockRun(runID string) bool { return c.locks.TryLock(runID) }

// UnlockRun releases the run's exclusive tick lock.
func (c *Coordinator) UnlockRun(runID string) { c.locks.Unlock(runID) }

// StartRun creates a run for the (workflow, lead) pair and hands it to the
// scheduler. At most one non-terminal run may exist per pair; a duplicate
// start is a conflict. The initial context carries lead contact fields
// (phone, email) the step executors need.
func (c *Coordinator) StartRun(ctx context.Context, workflowID, leadID string, initial map[string]any) (*store.WorkflowRun, error) {
	if workflowID == "" || leadID == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow id and lead id are required")
	}

	tpl, err := c.store.GetTemplate(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	active, err := c.store.FindActiveRun(ctx, workflowID, leadID)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	if active != nil {
		return nil, schema.NewErrorf(schema.ErrCodeConflict,
			"lead %q already has active run %q for workflow %q", leadID, active.ID, workflowID).
			WithDetails(map[string]any{"run_id": active.ID})
	}

	now := time.Now().UTC()
	due := now
	if len(tpl.Definition.Steps) > 0 {
		due = due.Add(PreDelay(tpl.Definition.Steps[0]))
	}

	run := &store.WorkflowRun{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		LeadID:     leadID,
		Status:     schema.RunStatusPending,
		Context:    initial,
		DueAt:      &due,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := c.store.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	ctx = logging.WithLeadID(logging.WithRunID(ctx, run.ID), leadID)
	c.logger.InfoContext(ctx, "run started", slog.String("workflow_id", workflowID))
	c.appendEvent(ctx, run.ID, 0, schema.EventRunStarted, map[string]any{"workflow_id": workflowID})

	if a := c.getAdvancer(); a != nil && !due.After(time.Now().UTC()) {
		a.Advance(ctx, run.ID)
		// The synchronous advance may have moved the run well past PENDING;
		// callers get the post-advance state.
		if fresh, err := c.store.GetRun(ctx, run.ID); err == nil {
			run = fresh
		}
	}
	return run, nil
}

// GetRun returns the run snapshot.
func (c *Coordinator) GetRun(ctx context.Context, runID string) (*store.WorkflowRun, error) {
	return c.store.GetRun(ctx, runID)
}

// ListRuns returns runs matching the filter.
func (c *Coordinator) ListRuns(ctx context.Context, filter store.RunFilter) ([]*store.WorkflowRun, error) {
	return c.store.ListRuns(ctx, filter)
}

// CancelRun moves a non-terminal run to CANCELLED. Cancelling a run that is
// already terminal is a no-op. Takes effect between ticks: an in-flight
// step completes, then the scheduler observes the cancellation and halts.
func (c *Coordinator) CancelRun(ctx context.Context, runID string) (*store.WorkflowRun, error) {
	run, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status.IsTerminal() {
		return run, nil
	}

	if err := c.Transition(ctx, run, schema.RunStatusCancelled, store.RunUpdate{
		ClearDueAt:    true,
		ClearDeadline: true,
	}); err != nil {
		return nil, err
	}
	c.logger.InfoContext(logging.WithRunID(ctx, runID), "run cancelled",
		slog.String("from", string(run.Status)))
	run.Status = schema.RunStatusCancelled
	run.DueAt = nil
	run.Deadline = nil
	return run, nil
}

// ResumeFromExternalEvent is the one-shot wake-up from the call tracker.
// The outcome is merged into the run context, the call step is consumed,
// and the scheduler takes over for the next step. A run no longer in
// WAITING_EXTERNAL (cancelled, timed out) absorbs the event silently; the
// call record keeps its terminal state for audit either way.
//
// The per-run tick lock is taken blocking: a callback that lands while the
// scheduler is still parking the run as WAITING_EXTERNAL waits for that
// transition instead of reading the pre-park status and being absorbed.
func (c *Coordinator) ResumeFromExternalEvent(ctx context.Context, runID string, outcome map[string]any) error {
	c.locks.Lock(runID)
	runnable, err := c.resumeLocked(ctx, runID, outcome)
	c.locks.Unlock(runID)
	if err != nil || !runnable {
		return err
	}

	// The lock must be released before poking the advancer: AdvanceRun
	// takes the same lock.
	if a := c.getAdvancer(); a != nil {
		a.Advance(ctx, runID)
	}
	return nil
}

// resumeLocked applies the external outcome under the run lock. It reports
// runnable=true when the next step is immediately due; a run parked as
// WAITING_TIMER is left for the due-scan.
func (c *Coordinator) resumeLocked(ctx context.Context, runID string, outcome map[string]any) (runnable bool, err error) {
	run, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return false, err
	}
	ctx = logging.WithLeadID(logging.WithRunID(ctx, runID), run.LeadID)

	if run.Status != schema.RunStatusWaitingExternal {
		c.logger.InfoContext(ctx, "external outcome for non-waiting run absorbed",
			slog.String("status", string(run.Status)))
		return false, nil
	}

	merged := mergeContext(run.Context, outcome)
	nextIndex := run.CurrentStepIndex + 1
	now := time.Now().UTC()

	tpl, err := c.store.GetTemplate(ctx, run.WorkflowID)
	if err != nil {
		return false, err
	}
	var delay time.Duration
	if nextIndex < len(tpl.Definition.Steps) {
		delay = PreDelay(tpl.Definition.Steps[nextIndex])
	}

	// A pre-delayed next step parks the run as WAITING_TIMER so the due-scan
	// picks it up; RUNNING runs are only revisited while a tick owns them.
	if delay > 0 {
		due := now.Add(delay)
		if err := c.Transition(ctx, run, schema.RunStatusWaitingTimer, store.RunUpdate{
			CurrentStepIndex: &nextIndex,
			Context:          merged,
			DueAt:            &due,
			ClearDeadline:    true,
		}); err != nil {
			return false, err
		}
		c.appendEvent(ctx, runID, run.CurrentStepIndex, schema.EventRunResumed, outcome)
		c.logger.InfoContext(ctx, "run resumed from call outcome, parked until due",
			slog.Time("due_at", due))
		return false, nil
	}

	due := now
	if err := c.Transition(ctx, run, schema.RunStatusRunning, store.RunUpdate{
		CurrentStepIndex: &nextIndex,
		Context:          merged,
		DueAt:            &due,
		ClearDeadline:    true,
	}); err != nil {
		return false, err
	}
	c.appendEvent(ctx, runID, run.CurrentStepIndex, schema.EventRunResumed, outcome)
	c.logger.InfoContext(ctx, "run resumed from call outcome")
	return true, nil
}

// Transition validates and persists a run status change, appending the
// matching run event. The update's Status field is set from to.
func (c *Coordinator) Transition(ctx context.Context, run *store.WorkflowRun, to schema.RunStatus, update store.RunUpdate) error {
	if !schema.IsValidRunTransition(run.Status, to) {
		return schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"run %q cannot move from %s to %s", run.ID, run.Status, to)
	}
	update.Status = &to
	if err := c.store.UpdateRun(ctx, run.ID, update); err != nil {
		return err
	}

	switch to {
	case schema.RunStatusCompleted:
		c.appendEvent(ctx, run.ID, run.CurrentStepIndex, schema.EventRunCompleted, nil)
	case schema.RunStatusFailed:
		payload := map[string]any{}
		if update.LastError != nil {
			payload["error"] = *update.LastError
		}
		c.appendEvent(ctx, run.ID, run.CurrentStepIndex, schema.EventRunFailed, payload)
	case schema.RunStatusCancelled:
		c.appendEvent(ctx, run.ID, run.CurrentStepIndex, schema.EventRunCancelled, nil)
	case schema.RunStatusWaitingExternal:
		c.appendEvent(ctx, run.ID, run.CurrentStepIndex, schema.EventRunSuspended, nil)
	}
	return nil
}

// AppendStepEvent records a step-level event on the run's event log.
func (c *Coordinator) AppendStepEvent(ctx context.Context, runID string, stepIndex int, eventType string, payload map[string]any) {
	c.appendEvent(ctx, runID, stepIndex, eventType, payload)
}

// appendEvent writes to the event log best-effort. The log is an audit
// trail; losing an entry must not fail the transition it describes.
func (c *Coordinator) appendEvent(ctx context.Context, runID string, stepIndex int, eventType string, payload map[string]any) {
	var raw json.RawMessage
	if len(payload) > 0 {
		if b, err := json.Marshal(payload); err == nil {
			raw = b
		}
	}
	ev := &store.RunEvent{
		RunID:     runID,
		StepIndex: stepIndex,
		Type:      eventType,
		Payload:   raw,
	}
	if err := c.store.AppendEvent(ctx, ev); err != nil {
		c.logger.ErrorContext(ctx, "append run event failed",
			slog.String("event_type", eventType), slog.String("error", err.Error()))
	}
}

// PreDelay is the pause before a step executes. Wait steps have none: their
// delay is the pause they enact once executed.
func PreDelay(step schema.StepConfig) time.Duration {
	if step.Kind == schema.StepWait {
		return 0
	}
	return time.Duration(step.DelayMs) * time.Millisecond
}

func isNotFound(err error) bool {
	var oe *schema.OutreachError
	return errors.As(err, &oe) && oe.Code == schema.ErrCodeNotFound
}

func mergeContext(base map[string]any, extra map[string]any) map[string]any {
	if len(extra) == 0 {
		return base
	}
	merged := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}
