package call

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflow/outreach/internal/store"
	"github.com/leadflow/outreach/pkg/schema"
)

type recordingResumer struct {
	calls    []map[string]any
	runIDs   []string
	failNext bool
}

func (r *recordingResumer) ResumeFromExternalEvent(_ context.Context, runID string, outcome map[string]any) error {
	if r.failNext {
		r.failNext = false
		return schema.NewError(schema.ErrCodeStore, "resume failed")
	}
	r.runIDs = append(r.runIDs, runID)
	r.calls = append(r.calls, outcome)
	return nil
}

func newTestTracker(t *testing.T) (*Tracker, store.Store, *recordingResumer) {
	t.Helper()
	st, err := store.NewLibSQLStore("file:" + filepath.Join(t.TempDir(), "tracker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	tr := NewTracker(st, slog.Default())
	resumer := &recordingResumer{}
	tr.SetResumer(resumer)
	return tr, st, resumer
}

func TestCreateCallStartsQueued(t *testing.T) {
	tr, st, _ := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, tr.CreateCall(ctx, "CA1", "run-1", "lead-1", "*******4567", "cold_call"))

	rec, err := st.GetCall(ctx, "CA1")
	require.NoError(t, err)
	assert.Equal(t, schema.CallStatusQueued, rec.Status)
	assert.Equal(t, "run-1", rec.RunID)
	assert.Equal(t, "*******4567", rec.PhoneNumber)
	assert.False(t, rec.Notified)
}

func TestApplyStatusAdvancesMonotonically(t *testing.T) {
	tr, st, _ := newTestTracker(t)
	ctx := context.Background()
	require.NoError(t, tr.CreateCall(ctx, "CA1", "run-1", "lead-1", "****", "cold_call"))

	require.NoError(t, tr.ApplyStatus(ctx, "CA1", "ringing", 0))
	require.NoError(t, tr.ApplyStatus(ctx, "CA1", "in-progress", 0))

	// Late or duplicate callbacks must not move the call backwards.
	require.NoError(t, tr.ApplyStatus(ctx, "CA1", "ringing", 0))
	rec, err := st.GetCall(ctx, "CA1")
	require.NoError(t, err)
	assert.Equal(t, schema.CallStatusInProgress, rec.Status)
	assert.Nil(t, rec.EndTime)
}

func TestApplyStatusTerminalWakesRunOnce(t *testing.T) {
	tr, st, resumer := newTestTracker(t)
	ctx := context.Background()
	require.NoError(t, tr.CreateCall(ctx, "CA1", "run-1", "lead-1", "****", "follow_up"))

	require.NoError(t, tr.ApplyStatus(ctx, "CA1", "completed", 42))

	require.Len(t, resumer.runIDs, 1)
	assert.Equal(t, "run-1", resumer.runIDs[0])
	assert.Equal(t, "completed", resumer.calls[0]["call_status"])
	assert.Equal(t, 42, resumer.calls[0]["call_duration"])

	rec, err := st.GetCall(ctx, "CA1")
	require.NoError(t, err)
	assert.True(t, rec.Notified)
	assert.NotNil(t, rec.EndTime)
	assert.Equal(t, 42, rec.Duration)

	// The provider redelivers terminal callbacks; the run is woken once.
	require.NoError(t, tr.ApplyStatus(ctx, "CA1", "completed", 42))
	assert.Len(t, resumer.runIDs, 1)
}

func TestApplyStatusRetriesWakeOnDuplicateTerminal(t *testing.T) {
	tr, st, resumer := newTestTracker(t)
	ctx := context.Background()
	require.NoError(t, tr.CreateCall(ctx, "CA1", "run-1", "lead-1", "****", "cold_call"))

	resumer.failNext = true
	err := tr.ApplyStatus(ctx, "CA1", "no-answer", 0)
	require.Error(t, err)

	rec, err2 := st.GetCall(ctx, "CA1")
	require.NoError(t, err2)
	assert.Equal(t, schema.CallStatusNoAnswer, rec.Status)
	assert.False(t, rec.Notified)

	// Redelivery of the same terminal status retries the wake-up.
	require.NoError(t, tr.ApplyStatus(ctx, "CA1", "no-answer", 0))
	require.Len(t, resumer.runIDs, 1)
	assert.Equal(t, "no_answer", resumer.calls[0]["call_status"])

	rec, err2 = st.GetCall(ctx, "CA1")
	require.NoError(t, err2)
	assert.True(t, rec.Notified)
}

func TestApplyStatusUnknownSidDropped(t *testing.T) {
	tr, _, resumer := newTestTracker(t)
	require.NoError(t, tr.ApplyStatus(context.Background(), "CA-nope", "completed", 10))
	assert.Empty(t, resumer.runIDs)
}

func TestApplyStatusUnknownStatusDropped(t *testing.T) {
	tr, st, _ := newTestTracker(t)
	ctx := context.Background()
	require.NoError(t, tr.CreateCall(ctx, "CA1", "run-1", "lead-1", "****", "cold_call"))

	require.NoError(t, tr.ApplyStatus(ctx, "CA1", "transmogrified", 0))
	rec, err := st.GetCall(ctx, "CA1")
	require.NoError(t, err)
	assert.Equal(t, schema.CallStatusQueued, rec.Status)
}

func TestApplyReactionRecordedAndMergedIntoOutcome(t *testing.T) {
	tr, st, resumer := newTestTracker(t)
	ctx := context.Background()
	require.NoError(t, tr.CreateCall(ctx, "CA1", "run-1", "lead-1", "****", "cold_call"))
	require.NoError(t, tr.ApplyStatus(ctx, "CA1", "in-progress", 0))

	reaction, err := tr.ApplyReaction(ctx, "CA1", "1")
	require.NoError(t, err)
	assert.Equal(t, schema.ReactionAppointmentRequested, reaction)

	rec, err := st.GetCall(ctx, "CA1")
	require.NoError(t, err)
	assert.Equal(t, schema.ReactionAppointmentRequested, rec.Reaction)

	require.NoError(t, tr.ApplyStatus(ctx, "CA1", "completed", 55))
	require.Len(t, resumer.calls, 1)
	assert.Equal(t, "appointment_requested", resumer.calls[0]["reaction"])
}

func TestApplyReactionUnknownSidDropped(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	reaction, err := tr.ApplyReaction(context.Background(), "CA-nope", "3")
	require.NoError(t, err)
	assert.Equal(t, schema.ReactionOptOut, reaction)
}
