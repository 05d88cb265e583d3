// Package call tracks the lifecycle of outbound calls driven by provider
// status callbacks. The tracker owns call records; runs waiting on a call
// are woken through the RunResumer exactly once per call.
package call

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/leadflow/outreach/internal/logging"
	"github.com/leadflow/outreach/internal/store"
	"github.com/leadflow/outreach/pkg/schema"
)

// RunResumer resumes a suspended run once its awaited call reaches a
// terminal state. Implemented by the engine coordinator.
type RunResumer interface {
	ResumeFromExternalEvent(ctx context.Context, runID string, outcome map[string]any) error
}

// Tracker applies provider callbacks to call records. Status updates are
// monotonic: a callback that does not move the call later in the lattice
// queued < ringing < in_progress < terminal is dropped.
type Tracker struct {
	store  store.Store
	logger *slog.Logger

	mu      sync.Mutex
	resumer RunResumer
}

// NewTracker creates a tracker over the given store.
func NewTracker(st store.Store, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{store: st, logger: logger}
}

// SetResumer wires the coordinator in after construction. Must be called
// before callbacks start arriving.
func (t *Tracker) SetResumer(r RunResumer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resumer = r
}

// CreateCall registers a freshly placed call in the QUEUED state. The phone
// number is expected to be masked by the caller before it reaches here.
func (t *Tracker) CreateCall(ctx context.Context, callSid, runID, leadID, maskedPhone, script string) error {
	rec := &store.CallRecord{
		CallSid:     callSid,
		RunID:       runID,
		LeadID:      leadID,
		PhoneNumber: maskedPhone,
		Script:      script,
		Status:      schema.CallStatusQueued,
		StartTime:   time.Now().UTC(),
	}
	if err := t.store.CreateCall(ctx, rec); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "create call record: %s", err.Error()).WithCause(err)
	}
	t.logger.InfoContext(logging.WithCallSid(ctx, callSid), "call registered",
		slog.String("script", script), slog.String("phone", maskedPhone))
	return nil
}

// ApplyStatus applies a provider status callback. Unknown call SIDs are
// logged and dropped; the provider retries callbacks and an unknown SID is
// not an engine fault. Duplicate or out-of-order callbacks are no-ops.
func (t *Tracker) ApplyStatus(ctx context.Context, callSid, rawStatus string, durationSecs int) error {
	ctx = logging.WithCallSid(ctx, callSid)

	status, ok := schema.ParseCallStatus(rawStatus)
	if !ok {
		t.logger.WarnContext(ctx, "unrecognized call status dropped", slog.String("raw_status", rawStatus))
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	rec, err := t.store.GetCall(ctx, callSid)
	if err != nil {
		var oe *schema.OutreachError
		if errors.As(err, &oe) && oe.Code == schema.ErrCodeNotFound {
			t.logger.WarnContext(ctx, "status callback for unknown call dropped",
				slog.String("status", string(status)))
			return nil
		}
		return schema.NewErrorf(schema.ErrCodeStore, "load call record: %s", err.Error()).WithCause(err)
	}
	ctx = logging.WithLeadID(logging.WithRunID(ctx, rec.RunID), rec.LeadID)

	if status.Rank() <= rec.Status.Rank() {
		// Duplicate delivery of the terminal callback is the retry path for
		// a previously failed wake-up.
		if rec.Status.IsTerminal() && !rec.Notified {
			return t.notifyRun(ctx, rec)
		}
		t.logger.DebugContext(ctx, "stale call status dropped",
			slog.String("current", string(rec.Status)), slog.String("incoming", string(status)))
		return nil
	}

	update := store.CallUpdate{Status: &status}
	if status.IsTerminal() {
		now := time.Now().UTC()
		update.EndTime = &now
		if durationSecs > 0 {
			update.Duration = &durationSecs
		}
	}
	if err := t.store.UpdateCall(ctx, callSid, update); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "update call record: %s", err.Error()).WithCause(err)
	}
	t.logger.InfoContext(ctx, "call status advanced",
		slog.String("from", string(rec.Status)), slog.String("to", string(status)))

	if !status.IsTerminal() {
		return nil
	}

	rec.Status = status
	if update.Duration != nil {
		rec.Duration = *update.Duration
	}
	return t.notifyRun(ctx, rec)
}

// ApplyReaction records the lead's DTMF response on the call record. The
// reaction is merged into the run context later, when the terminal status
// callback wakes the run.
func (t *Tracker) ApplyReaction(ctx context.Context, callSid, digits string) (schema.Reaction, error) {
	ctx = logging.WithCallSid(ctx, callSid)
	reaction := schema.ReactionForDigits(digits)

	t.mu.Lock()
	defer t.mu.Unlock()

	rec, err := t.store.GetCall(ctx, callSid)
	if err != nil {
		var oe *schema.OutreachError
		if errors.As(err, &oe) && oe.Code == schema.ErrCodeNotFound {
			t.logger.WarnContext(ctx, "reaction for unknown call dropped", slog.String("digits", digits))
			return reaction, nil
		}
		return reaction, schema.NewErrorf(schema.ErrCodeStore, "load call record: %s", err.Error()).WithCause(err)
	}

	if err := t.store.UpdateCall(ctx, callSid, store.CallUpdate{Reaction: &reaction}); err != nil {
		return reaction, schema.NewErrorf(schema.ErrCodeStore, "record reaction: %s", err.Error()).WithCause(err)
	}
	t.logger.InfoContext(logging.WithLeadID(ctx, rec.LeadID), "call reaction recorded",
		slog.String("reaction", string(reaction)))
	return reaction, nil
}

// notifyRun wakes the waiting run with the call outcome and marks the record
// notified. The Notified flag is only set after a successful wake, so a
// failed resume is retried on the next duplicate terminal callback.
func (t *Tracker) notifyRun(ctx context.Context, rec *store.CallRecord) error {
	if rec.RunID == "" {
		return nil
	}
	if t.resumer == nil {
		t.logger.ErrorContext(ctx, "no resumer wired, terminal call cannot wake its run")
		return nil
	}

	// Reaction may have landed after the snapshot was read.
	if fresh, err := t.store.GetCall(ctx, rec.CallSid); err == nil {
		rec = fresh
	}

	outcome := map[string]any{
		"call_sid":      rec.CallSid,
		"call_status":   string(rec.Status),
		"call_duration": rec.Duration,
	}
	if rec.Reaction != "" {
		outcome["reaction"] = string(rec.Reaction)
	}

	if err := t.resumer.ResumeFromExternalEvent(ctx, rec.RunID, outcome); err != nil {
		t.logger.ErrorContext(ctx, "waking run from call outcome failed", slog.String("error", err.Error()))
		return err
	}

	notified := true
	if err := t.store.UpdateCall(ctx, rec.CallSid, store.CallUpdate{Notified: &notified}); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "mark call notified: %s", err.Error()).WithCause(err)
	}
	t.logger.InfoContext(ctx, "run woken from call outcome", slog.String("call_status", string(rec.Status)))
	return nil
}
