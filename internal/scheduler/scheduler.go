// Package scheduler decides when the next step of a run executes. Delays
// are never slept out in-process: a waiting run carries a persisted due
// time and a later due-scan tick picks it up, so pending runs survive
// process restarts.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/leadflow/outreach/internal/engine"
	"github.com/leadflow/outreach/internal/logging"
	"github.com/leadflow/outreach/internal/store"
	"github.com/leadflow/outreach/pkg/schema"
)

// Config holds the scheduler's timing and retry knobs.
type Config struct {
	TickInterval        time.Duration
	RetryCeiling        int
	BackoffBase         time.Duration
	BackoffCap          time.Duration
	ExternalWaitCeiling time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval:        15 * time.Second,
		RetryCeiling:        3,
		BackoffBase:         30 * time.Second,
		BackoffCap:          10 * time.Minute,
		ExternalWaitCeiling: 4 * time.Hour,
	}
}

// Scheduler advances due runs, sweeps expired external waits, and starts
// recurring runs from cron-scheduled jobs.
type Scheduler struct {
	store       store.Store
	coordinator *engine.Coordinator
	executors   engine.ExecutorSet
	conditions  *engine.ConditionEvaluator
	parser      cron.Parser
	logger      *slog.Logger
	cfg         Config

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex

	inflightMu sync.Mutex
	inflight   map[string]struct{} // scheduled job IDs currently executing (dedup)
}

// NewScheduler creates a scheduler over the given coordinator and executors.
func NewScheduler(st store.Store, coordinator *engine.Coordinator, executors engine.ExecutorSet, cfg Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}
	if cfg.RetryCeiling <= 0 {
		cfg.RetryCeiling = DefaultConfig().RetryCeiling
	}
	return &Scheduler{
		store:       st,
		coordinator: coordinator,
		executors:   executors,
		conditions:  engine.NewConditionEvaluator(),
		parser:      cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		logger:      logger,
		cfg:         cfg,
		inflight:    make(map[string]struct{}),
	}
}

// Start launches the background due-scan loop.
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
	s.logger.Info("scheduler started", slog.Duration("tick_interval", s.cfg.TickInterval))
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	// Run an initial tick immediately so due runs from a previous process
	// life are picked up at startup.
	s.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
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

	s.logger.Info("scheduler stopped")
	return nil
}

// Tick runs one full due-scan pass: due runs, expired external waits, and
// due scheduled jobs.
func (s *Scheduler) Tick(ctx context.Context) {
	now := time.Now().UTC()
	s.advanceDueRuns(ctx, now)
	s.sweepExternalWaits(ctx, now)
	s.runScheduledJobs(ctx, now)
}

// Advance satisfies engine.Advancer: the coordinator pokes the scheduler
// when a run becomes immediately runnable.
func (s *Scheduler) Advance(ctx context.Context, runID string) {
	if err := s.AdvanceRun(ctx, runID); err != nil {
		s.logger.ErrorContext(logging.WithRunID(ctx, runID), "advance run failed",
			slog.String("error", err.Error()))
	}
}

// advanceDueRuns finds runs whose due time has passed and advances them.
// RUNNING runs with a due time are included: a run is briefly RUNNING
// between a resume and its first tick, and the scan is the safety net when
// the resume's advancer poke loses the lock race.
func (s *Scheduler) advanceDueRuns(ctx context.Context, now time.Time) {
	for _, status := range []schema.RunStatus{schema.RunStatusPending, schema.RunStatusWaitingTimer, schema.RunStatusRunning} {
		st := status
		runs, err := s.store.ListRuns(ctx, store.RunFilter{Status: &st, DueBefore: &now})
		if err != nil {
			s.logger.Error("list due runs failed",
				slog.String("status", string(status)), slog.String("error", err.Error()))
			continue
		}
		for _, run := range runs {
			s.Advance(ctx, run.ID)
		}
	}
}

// sweepExternalWaits fails runs stuck in WAITING_EXTERNAL past their
// deadline. The call tracker keeps recording late callbacks on the call
// record; the run just stops listening.
func (s *Scheduler) sweepExternalWaits(ctx context.Context, now time.Time) {
	st := schema.RunStatusWaitingExternal
	runs, err := s.store.ListRuns(ctx, store.RunFilter{Status: &st})
	if err != nil {
		s.logger.Error("list waiting runs failed", slog.String("error", err.Error()))
		return
	}

	for _, run := range runs {
		if run.Deadline == nil || run.Deadline.After(now) {
			continue
		}
		if !s.coordinator.TryLockRun(run.ID) {
			continue
		}
		s.timeoutRun(ctx, run.ID, now)
		s.coordinator.UnlockRun(run.ID)
	}
}

func (s *Scheduler) timeoutRun(ctx context.Context, runID string, now time.Time) {
	ctx = logging.WithRunID(ctx, runID)

	// Re-load under the lock: a callback may have resumed the run between
	// the scan and the lock acquisition.
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		s.logger.ErrorContext(ctx, "load run for timeout failed", slog.String("error", err.Error()))
		return
	}
	if run.Status != schema.RunStatusWaitingExternal || run.Deadline == nil || run.Deadline.After(now) {
		return
	}

	cause := schema.NewErrorf(schema.ErrCodeExternalTimeout,
		"no call outcome before deadline %s", run.Deadline.Format(time.RFC3339))
	msg := cause.Error()
	if err := s.coordinator.Transition(ctx, run, schema.RunStatusFailed, store.RunUpdate{
		LastError:     &msg,
		ClearDueAt:    true,
		ClearDeadline: true,
	}); err != nil {
		s.logger.ErrorContext(ctx, "timeout transition failed", slog.String("error", err.Error()))
		return
	}
	s.logger.WarnContext(ctx, "run failed waiting on external outcome",
		slog.Time("deadline", *run.Deadline))
}

// AdvanceRun advances one run as far as it can go in this tick: back-to-back
// zero-delay steps run in a loop under a single run lock. A run that is not
// runnable (not due, already terminal, locked by another worker) is left
// untouched.
func (s *Scheduler) AdvanceRun(ctx context.Context, runID string) error {
	if !s.coordinator.TryLockRun(runID) {
		return nil // another worker owns this run's tick
	}
	defer s.coordinator.UnlockRun(runID)

	for {
		again, err := s.advanceOnce(ctx, runID)
		if err != nil || !again {
			return err
		}
	}
}

// advanceOnce executes at most one step. It returns again=true when the
// next step is immediately due and should run in the same tick.
func (s *Scheduler) advanceOnce(ctx context.Context, runID string) (again bool, err error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return false, err
	}
	ctx = logging.WithLeadID(logging.WithRunID(ctx, runID), run.LeadID)
	now := time.Now().UTC()

	// Duplicate-tick defense: only a run that is due is advanced.
	switch run.Status {
	case schema.RunStatusPending, schema.RunStatusRunning:
		if run.DueAt != nil && run.DueAt.After(now) {
			return false, nil
		}
	case schema.RunStatusWaitingTimer:
		if run.DueAt == nil || run.DueAt.After(now) {
			return false, nil
		}
	default:
		return false, nil
	}

	tpl, err := s.store.GetTemplate(ctx, run.WorkflowID)
	if err != nil {
		return false, s.failRun(ctx, run, schema.NewErrorf(schema.ErrCodeFatal,
			"workflow template %q unavailable: %s", run.WorkflowID, err.Error()).WithCause(err))
	}
	steps := tpl.Definition.Steps

	if run.CurrentStepIndex >= len(steps) {
		if err := s.coordinator.Transition(ctx, run, schema.RunStatusCompleted, store.RunUpdate{
			ClearDueAt: true,
		}); err != nil {
			return false, err
		}
		s.logger.InfoContext(ctx, "run completed", slog.Int("steps", len(steps)))
		return false, nil
	}

	if run.Status != schema.RunStatusRunning {
		if err := s.coordinator.Transition(ctx, run, schema.RunStatusRunning, store.RunUpdate{
			ClearDueAt: true,
		}); err != nil {
			return false, err
		}
		run.Status = schema.RunStatusRunning
	}

	step := steps[run.CurrentStepIndex]
	ctx = logging.WithStepIndex(ctx, run.CurrentStepIndex)

	if step.Condition != "" {
		pass, err := s.conditions.EvaluateBool(ctx, step.Condition, run.Context)
		if err != nil {
			return false, s.failRun(ctx, run, err)
		}
		if !pass {
			s.coordinator.AppendStepEvent(ctx, run.ID, run.CurrentStepIndex, schema.EventStepSkipped,
				map[string]any{"condition": step.Condition})
			s.logger.InfoContext(ctx, "step skipped", slog.String("condition", step.Condition))
			return s.scheduleNext(ctx, run, steps, 0, nil, now)
		}
	}

	s.coordinator.AppendStepEvent(ctx, run.ID, run.CurrentStepIndex, schema.EventStepStarted,
		map[string]any{"kind": string(step.Kind)})

	executor, ok := s.executors[step.Kind]
	if !ok {
		return false, s.failRun(ctx, run, schema.NewErrorf(schema.ErrCodeFatal,
			"no executor for step kind %q", step.Kind))
	}

	result, execErr := executor.Execute(ctx, run, step)

	// Cancellation takes effect between steps: a cancel issued while the
	// step ran wins, and the step's outcome is discarded.
	if fresh, err := s.store.GetRun(ctx, runID); err == nil && fresh.Status.IsTerminal() {
		s.logger.InfoContext(ctx, "run reached terminal state mid-step, outcome discarded",
			slog.String("status", string(fresh.Status)))
		return false, nil
	}

	if execErr != nil {
		return s.handleStepError(ctx, run, step, execErr, now)
	}

	merged := run.Context
	if len(result.Data) > 0 {
		merged = mergeContext(run.Context, result.Data)
	}
	zero := 0

	if result.AwaitExternal {
		deadline := now.Add(s.cfg.ExternalWaitCeiling)
		if err := s.coordinator.Transition(ctx, run, schema.RunStatusWaitingExternal, store.RunUpdate{
			Context:    merged,
			RetryCount: &zero,
			Deadline:   &deadline,
			ClearDueAt: true,
		}); err != nil {
			return false, err
		}
		s.logger.InfoContext(ctx, "run waiting on external outcome", slog.Time("deadline", deadline))
		return false, nil
	}

	s.coordinator.AppendStepEvent(ctx, run.ID, run.CurrentStepIndex, schema.EventStepCompleted,
		map[string]any{"kind": string(step.Kind)})

	var pause time.Duration
	if step.Kind == schema.StepWait {
		pause = time.Duration(step.DelayMs) * time.Millisecond
	}
	return s.scheduleNext(ctx, run, steps, pause, merged, now)
}

// scheduleNext moves the run past the current step: either parks it as
// WAITING_TIMER until the combined pause plus next pre-delay elapses, or
// reports that the next step should execute in the same tick.
func (s *Scheduler) scheduleNext(ctx context.Context, run *store.WorkflowRun, steps []schema.StepConfig, pause time.Duration, merged map[string]any, now time.Time) (bool, error) {
	next := run.CurrentStepIndex + 1
	delay := pause
	if next < len(steps) {
		delay += engine.PreDelay(steps[next])
	}
	zero := 0

	if delay > 0 {
		due := now.Add(delay)
		if err := s.coordinator.Transition(ctx, run, schema.RunStatusWaitingTimer, store.RunUpdate{
			CurrentStepIndex: &next,
			Context:          merged,
			RetryCount:       &zero,
			DueAt:            &due,
		}); err != nil {
			return false, err
		}
		s.logger.InfoContext(ctx, "run parked until due",
			slog.Int("next_step", next), slog.Time("due_at", due))
		return false, nil
	}

	if err := s.store.UpdateRun(ctx, run.ID, store.RunUpdate{
		CurrentStepIndex: &next,
		Context:          merged,
		RetryCount:       &zero,
	}); err != nil {
		return false, err
	}
	return true, nil
}

// handleStepError applies the retry policy: retryable failures under the
// ceiling reschedule the same step with exponential backoff; everything
// else fails the run.
func (s *Scheduler) handleStepError(ctx context.Context, run *store.WorkflowRun, step schema.StepConfig, execErr error, now time.Time) (bool, error) {
	if !engine.IsRetryableError(execErr) {
		return false, s.failRun(ctx, run, execErr)
	}

	attempt := run.RetryCount + 1
	if attempt > s.cfg.RetryCeiling {
		return false, s.failRun(ctx, run, schema.NewErrorf(schema.ErrCodeRetryExhausted,
			"step %d failed after %d attempts: %s", run.CurrentStepIndex, run.RetryCount, execErr.Error()).
			WithCause(execErr))
	}

	backoff := engine.ComputeBackoff(s.cfg.BackoffBase, s.cfg.BackoffCap, attempt)
	due := now.Add(backoff)
	msg := execErr.Error()
	if err := s.coordinator.Transition(ctx, run, schema.RunStatusWaitingTimer, store.RunUpdate{
		RetryCount: &attempt,
		DueAt:      &due,
		LastError:  &msg,
	}); err != nil {
		return false, err
	}
	s.coordinator.AppendStepEvent(ctx, run.ID, run.CurrentStepIndex, schema.EventStepRetrying,
		map[string]any{"attempt": attempt, "error": msg})
	s.logger.WarnContext(ctx, "step failed, retry scheduled",
		slog.Int("attempt", attempt),
		slog.Duration("backoff", backoff),
		slog.String("error", msg))
	return false, nil
}

func (s *Scheduler) failRun(ctx context.Context, run *store.WorkflowRun, cause error) error {
	msg := cause.Error()
	s.coordinator.AppendStepEvent(ctx, run.ID, run.CurrentStepIndex, schema.EventStepFailed,
		map[string]any{"error": msg})
	if err := s.coordinator.Transition(ctx, run, schema.RunStatusFailed, store.RunUpdate{
		LastError:     &msg,
		ClearDueAt:    true,
		ClearDeadline: true,
	}); err != nil {
		return err
	}
	s.logger.ErrorContext(ctx, "run failed", slog.String("error", msg))
	return nil
}

// --- Scheduled jobs ---

// runScheduledJobs starts runs for enabled cron jobs whose next run time
// has passed. A lead with an active run for the job's workflow is skipped
// until the next occurrence.
func (s *Scheduler) runScheduledJobs(ctx context.Context, now time.Time) {
	enabled := true
	jobs, err := s.store.ListScheduledJobs(ctx, store.ScheduledJobFilter{Enabled: &enabled})
	if err != nil {
		s.logger.Error("list scheduled jobs failed", slog.String("error", err.Error()))
		return
	}

	for _, job := range jobs {
		if job.NextRunAt != nil && job.NextRunAt.After(now) {
			continue
		}
		if !s.tryAcquireJob(job.ID) {
			continue // already running (dedup)
		}
		if err := s.runJob(ctx, job, now); err != nil {
			s.logger.Error("scheduled job failed",
				slog.String("job_id", job.ID), slog.String("error", err.Error()))
		}
		s.releaseJob(job.ID)
	}
}

func (s *Scheduler) runJob(ctx context.Context, job *store.ScheduledJob, now time.Time) error {
	s.logger.Info("running scheduled job",
		slog.String("job_id", job.ID),
		slog.String("workflow_id", job.WorkflowID),
		slog.String("lead_id", job.LeadID))

	status := "success"
	_, err := s.coordinator.StartRun(ctx, job.WorkflowID, job.LeadID, nil)
	if err != nil {
		var oe *schema.OutreachError
		if errors.As(err, &oe) && oe.Code == schema.ErrCodeConflict {
			status = "skipped" // lead already mid-sequence
		} else {
			status = "error"
			s.logger.Error("scheduled job start failed",
				slog.String("job_id", job.ID), slog.String("error", err.Error()))
		}
	}

	nextRun, err := s.CalculateNextRun(job.CronExpression, now)
	if err != nil {
		return fmt.Errorf("calculate next run for job %q: %w", job.ID, err)
	}
	return s.store.UpdateScheduledJob(ctx, job.ID, store.ScheduledJobUpdate{
		LastRunAt:     &now,
		NextRunAt:     &nextRun,
		LastRunStatus: status,
	})
}

// CalculateNextRun computes the next run time for a cron expression.
func (s *Scheduler) CalculateNextRun(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

// tryAcquireJob returns true and marks the job in-flight if it is not
// already running.
func (s *Scheduler) tryAcquireJob(jobID string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[jobID]; ok {
		return false
	}
	s.inflight[jobID] = struct{}{}
	return true
}

func (s *Scheduler) releaseJob(jobID string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, jobID)
}

func mergeContext(base, extra map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}
