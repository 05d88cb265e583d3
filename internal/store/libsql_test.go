package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflow/outreach/pkg/schema"
)

func newTestStore(t *testing.T) *LibSQLStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewLibSQLStore("file:" + dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedTemplate(t *testing.T, s *LibSQLStore) *WorkflowTemplate {
	t.Helper()
	tpl := &WorkflowTemplate{
		ID:          "cold-outreach",
		Name:        "Cold Outreach",
		Description: "Intro email, wait, follow-up call",
		Definition: schema.WorkflowDefinition{
			Trigger: schema.TriggerLeadCreated,
			Steps: []schema.StepConfig{
				{Kind: schema.StepEmail, Template: "lead_intro", Subject: "Hello"},
				{Kind: schema.StepWait, DelayMs: 1000},
				{Kind: schema.StepCall, Script: "follow_up"},
			},
		},
	}
	require.NoError(t, s.StoreTemplate(context.Background(), tpl))
	return tpl
}

func seedRun(t *testing.T, s *LibSQLStore, workflowID, leadID string, status schema.RunStatus) *WorkflowRun {
	t.Helper()
	run := &WorkflowRun{
		ID:         uuid.New().String(),
		WorkflowID: workflowID,
		LeadID:     leadID,
		Status:     status,
	}
	require.NoError(t, s.CreateRun(context.Background(), run))
	return run
}

// --- Templates ---

func TestStoreAndGetTemplate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tpl := seedTemplate(t, s)

	got, err := s.GetTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cold Outreach", got.Name)
	assert.Equal(t, schema.TriggerLeadCreated, got.Definition.Trigger)
	require.Len(t, got.Definition.Steps, 3)
	assert.Equal(t, schema.StepWait, got.Definition.Steps[1].Kind)
	assert.Equal(t, int64(1000), got.Definition.Steps[1].DelayMs)
}

func TestGetTemplateNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetTemplate(context.Background(), "missing")
	require.Error(t, err)
	var oe *schema.OutreachError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, schema.ErrCodeNotFound, oe.Code)
}

func TestStoreTemplateUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tpl := seedTemplate(t, s)
	tpl.Name = "Cold Outreach v2"
	require.NoError(t, s.StoreTemplate(ctx, tpl))

	got, err := s.GetTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cold Outreach v2", got.Name)

	all, err := s.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

// --- Runs ---

func TestCreateAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	due := time.Now().UTC().Add(time.Minute).Truncate(time.Second)
	run := &WorkflowRun{
		ID:         uuid.New().String(),
		WorkflowID: "cold-outreach",
		LeadID:     "lead-1",
		Status:     schema.RunStatusWaitingTimer,
		DueAt:      &due,
		Context:    map[string]any{"reaction": "more_info_requested"},
	}
	require.NoError(t, s.CreateRun(ctx, run))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.RunStatusWaitingTimer, got.Status)
	assert.Equal(t, 0, got.CurrentStepIndex)
	require.NotNil(t, got.DueAt)
	assert.WithinDuration(t, due, *got.DueAt, time.Second)
	assert.Equal(t, "more_info_requested", got.Context["reaction"])
}

func TestUpdateRunFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := seedRun(t, s, "cold-outreach", "lead-1", schema.RunStatusRunning)

	status := schema.RunStatusWaitingTimer
	idx := 2
	due := time.Now().UTC().Add(time.Hour)
	require.NoError(t, s.UpdateRun(ctx, run.ID, RunUpdate{
		Status:           &status,
		CurrentStepIndex: &idx,
		DueAt:            &due,
	}))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.RunStatusWaitingTimer, got.Status)
	assert.Equal(t, 2, got.CurrentStepIndex)
	require.NotNil(t, got.DueAt)

	require.NoError(t, s.UpdateRun(ctx, run.ID, RunUpdate{ClearDueAt: true}))
	got, err = s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DueAt)
}

func TestUpdateRunNotFound(t *testing.T) {
	s := newTestStore(t)
	status := schema.RunStatusRunning
	err := s.UpdateRun(context.Background(), "missing", RunUpdate{Status: &status})
	var oe *schema.OutreachError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, schema.ErrCodeNotFound, oe.Code)
}

func TestListRunsDueBefore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Minute)
	future := time.Now().UTC().Add(time.Hour)

	dueRun := &WorkflowRun{
		ID: uuid.New().String(), WorkflowID: "w", LeadID: "l1",
		Status: schema.RunStatusWaitingTimer, DueAt: &past,
	}
	notDue := &WorkflowRun{
		ID: uuid.New().String(), WorkflowID: "w", LeadID: "l2",
		Status: schema.RunStatusWaitingTimer, DueAt: &future,
	}
	require.NoError(t, s.CreateRun(ctx, dueRun))
	require.NoError(t, s.CreateRun(ctx, notDue))

	status := schema.RunStatusWaitingTimer
	now := time.Now().UTC()
	due, err := s.ListRuns(ctx, RunFilter{Status: &status, DueBefore: &now})
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, dueRun.ID, due[0].ID)
}

func TestFindActiveRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Terminal runs are ignored.
	seedRun(t, s, "w", "l", schema.RunStatusCompleted)
	_, err := s.FindActiveRun(ctx, "w", "l")
	require.Error(t, err)

	active := seedRun(t, s, "w", "l", schema.RunStatusWaitingExternal)
	got, err := s.FindActiveRun(ctx, "w", "l")
	require.NoError(t, err)
	assert.Equal(t, active.ID, got.ID)
}

// --- Calls ---

func TestCreateAndUpdateCall(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &CallRecord{
		CallSid:     "CA100",
		RunID:       "run-1",
		LeadID:      "lead-1",
		PhoneNumber: "*******1234",
		Script:      "cold_call",
		Status:      schema.CallStatusQueued,
	}
	require.NoError(t, s.CreateCall(ctx, rec))

	status := schema.CallStatusCompleted
	duration := 42
	end := time.Now().UTC()
	notified := true
	require.NoError(t, s.UpdateCall(ctx, "CA100", CallUpdate{
		Status: &status, Duration: &duration, EndTime: &end, Notified: &notified,
	}))

	got, err := s.GetCall(ctx, "CA100")
	require.NoError(t, err)
	assert.Equal(t, schema.CallStatusCompleted, got.Status)
	assert.Equal(t, 42, got.Duration)
	assert.True(t, got.Notified)
	require.NotNil(t, got.EndTime)

	reaction := schema.ReactionOptOut
	require.NoError(t, s.UpdateCall(ctx, "CA100", CallUpdate{Reaction: &reaction}))
	got, err = s.GetCall(ctx, "CA100")
	require.NoError(t, err)
	assert.Equal(t, schema.ReactionOptOut, got.Reaction)
}

func TestGetCallNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetCall(context.Background(), "CA-none")
	var oe *schema.OutreachError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, schema.ErrCodeNotFound, oe.Code)
}

// --- Interactions ---

func TestAppendAndListInteractions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, typ := range []string{"email", "call"} {
		require.NoError(t, s.AppendInteraction(ctx, &Interaction{
			ID:        uuid.New().String(),
			LeadID:    "lead-1",
			RunID:     "run-1",
			Type:      typ,
			Status:    "sent",
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, s.AppendInteraction(ctx, &Interaction{
		ID: uuid.New().String(), LeadID: "lead-2", Type: "email", Status: "sent",
	}))

	got, err := s.ListInteractions(ctx, "lead-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "email", got[0].Type)
	assert.Equal(t, "call", got[1].Type)
}

// --- Run events ---

func TestAppendEventSequence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		e := &RunEvent{RunID: "run-1", StepIndex: i, Type: schema.EventStepStarted}
		require.NoError(t, s.AppendEvent(ctx, e))
		assert.Equal(t, int64(i+1), e.Sequence)
	}
	// Sequences are per-run.
	other := &RunEvent{RunID: "run-2", Type: schema.EventRunStarted}
	require.NoError(t, s.AppendEvent(ctx, other))
	assert.Equal(t, int64(1), other.Sequence)

	events, err := s.GetEvents(ctx, "run-1", 1)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(2), events[0].Sequence)
	assert.Equal(t, int64(3), events[1].Sequence)
}

// --- Scheduled jobs ---

func TestScheduledJobLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	next := time.Now().UTC().Add(time.Hour)
	job := &ScheduledJob{
		ID:             uuid.New().String(),
		WorkflowID:     "re-engagement",
		LeadID:         "lead-1",
		CronExpression: "0 9 * * 1",
		Enabled:        true,
		NextRunAt:      &next,
	}
	require.NoError(t, s.CreateScheduledJob(ctx, job))

	enabled := true
	jobs, err := s.ListScheduledJobs(ctx, ScheduledJobFilter{Enabled: &enabled})
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	now := time.Now().UTC()
	require.NoError(t, s.UpdateScheduledJob(ctx, job.ID, ScheduledJobUpdate{
		LastRunAt: &now, LastRunStatus: "success",
	}))
	got, err := s.GetScheduledJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "success", got.LastRunStatus)
	require.NotNil(t, got.LastRunAt)

	require.NoError(t, s.DeleteScheduledJob(ctx, job.ID))
	_, err = s.GetScheduledJob(ctx, job.ID)
	require.Error(t, err)
}
