package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/leadflow/outreach/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB for advanced usage.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// --- Workflow templates ---

func (s *LibSQLStore) StoreTemplate(ctx context.Context, tpl *WorkflowTemplate) error {
	def, err := json.Marshal(tpl.Definition)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workflow_templates (id, name, description, definition, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name=excluded.name, description=excluded.description,
		   definition=excluded.definition, updated_at=CURRENT_TIMESTAMP`,
		tpl.ID, tpl.Name, nullStr(tpl.Description), string(def),
		timeOrNow(tpl.CreatedAt), timeOrNow(tpl.UpdatedAt),
	)
	return err
}

func (s *LibSQLStore) GetTemplate(ctx context.Context, id string) (*WorkflowTemplate, error) {
	t := &WorkflowTemplate{}
	var desc sql.NullString
	var defJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, definition, created_at, updated_at
		 FROM workflow_templates WHERE id = ?`, id,
	).Scan(&t.ID, &t.Name, &desc, &defJSON, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("workflow template", id)
	}
	if err != nil {
		return nil, err
	}
	t.Description = desc.String
	if err := json.Unmarshal([]byte(defJSON), &t.Definition); err != nil {
		return nil, fmt.Errorf("unmarshal definition: %w", err)
	}
	return t, nil
}

func (s *LibSQLStore) ListTemplates(ctx context.Context) ([]*WorkflowTemplate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, definition, created_at, updated_at
		 FROM workflow_templates ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*WorkflowTemplate
	for rows.Next() {
		t := &WorkflowTemplate{}
		var desc sql.NullString
		var defJSON string
		if err := rows.Scan(&t.ID, &t.Name, &desc, &defJSON, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		t.Description = desc.String
		if err := json.Unmarshal([]byte(defJSON), &t.Definition); err != nil {
			return nil, fmt.Errorf("unmarshal template definition: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// --- Workflow runs ---

func (s *LibSQLStore) CreateRun(ctx context.Context, run *WorkflowRun) error {
	runCtx, err := marshalMapOrDefault(run.Context)
	if err != nil {
		return fmt.Errorf("marshal run context: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workflow_runs (id, workflow_id, lead_id, status, current_step_index, retry_count, context, due_at, deadline, last_error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.WorkflowID, run.LeadID, string(run.Status),
		run.CurrentStepIndex, run.RetryCount, string(runCtx),
		nullTime(run.DueAt), nullTime(run.Deadline), nullStr(run.LastError),
		timeOrNow(run.CreatedAt), timeOrNow(run.UpdatedAt),
	)
	return err
}

func (s *LibSQLStore) GetRun(ctx context.Context, id string) (*WorkflowRun, error) {
	return s.scanRun(s.db.QueryRowContext(ctx,
		`SELECT id, workflow_id, lead_id, status, current_step_index, retry_count, context, due_at, deadline, last_error, created_at, updated_at
		 FROM workflow_runs WHERE id = ?`, id), id)
}

func (s *LibSQLStore) scanRun(row *sql.Row, id string) (*WorkflowRun, error) {
	run := &WorkflowRun{}
	var (
		status            string
		ctxJSON, lastErr  sql.NullString
		dueAt, deadline   sql.NullTime
	)
	err := row.Scan(&run.ID, &run.WorkflowID, &run.LeadID, &status,
		&run.CurrentStepIndex, &run.RetryCount, &ctxJSON, &dueAt, &deadline,
		&lastErr, &run.CreatedAt, &run.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("run", id)
	}
	if err != nil {
		return nil, err
	}
	run.Status = schema.RunStatus(status)
	run.LastError = lastErr.String
	if ctxJSON.Valid && ctxJSON.String != "" {
		_ = json.Unmarshal([]byte(ctxJSON.String), &run.Context)
	}
	if dueAt.Valid {
		run.DueAt = &dueAt.Time
	}
	if deadline.Valid {
		run.Deadline = &deadline.Time
	}
	return run, nil
}

func (s *LibSQLStore) UpdateRun(ctx context.Context, id string, update RunUpdate) error {
	var sets []string
	var args []any

	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*update.Status))
	}
	if update.CurrentStepIndex != nil {
		sets = append(sets, "current_step_index = ?")
		args = append(args, *update.CurrentStepIndex)
	}
	if update.RetryCount != nil {
		sets = append(sets, "retry_count = ?")
		args = append(args, *update.RetryCount)
	}
	if update.Context != nil {
		ctxJSON, err := json.Marshal(update.Context)
		if err != nil {
			return fmt.Errorf("marshal run context: %w", err)
		}
		sets = append(sets, "context = ?")
		args = append(args, string(ctxJSON))
	}
	if update.ClearDueAt {
		sets = append(sets, "due_at = NULL")
	} else if update.DueAt != nil {
		sets = append(sets, "due_at = ?")
		args = append(args, *update.DueAt)
	}
	if update.ClearDeadline {
		sets = append(sets, "deadline = NULL")
	} else if update.Deadline != nil {
		sets = append(sets, "deadline = ?")
		args = append(args, *update.Deadline)
	}
	if update.LastError != nil {
		sets = append(sets, "last_error = ?")
		args = append(args, nullStr(*update.LastError))
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE workflow_runs SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "run", id)
}

func (s *LibSQLStore) ListRuns(ctx context.Context, filter RunFilter) ([]*WorkflowRun, error) {
	var where []string
	var args []any

	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.DueBefore != nil {
		where = append(where, "due_at IS NOT NULL AND due_at <= ?")
		args = append(args, *filter.DueBefore)
	}
	if filter.WorkflowID != "" {
		where = append(where, "workflow_id = ?")
		args = append(args, filter.WorkflowID)
	}
	if filter.LeadID != "" {
		where = append(where, "lead_id = ?")
		args = append(args, filter.LeadID)
	}

	query := `SELECT id, workflow_id, lead_id, status, current_step_index, retry_count, context, due_at, deadline, last_error, created_at, updated_at FROM workflow_runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*WorkflowRun
	for rows.Next() {
		run := &WorkflowRun{}
		var (
			status           string
			ctxJSON, lastErr sql.NullString
			dueAt, deadline  sql.NullTime
		)
		if err := rows.Scan(&run.ID, &run.WorkflowID, &run.LeadID, &status,
			&run.CurrentStepIndex, &run.RetryCount, &ctxJSON, &dueAt, &deadline,
			&lastErr, &run.CreatedAt, &run.UpdatedAt); err != nil {
			return nil, err
		}
		run.Status = schema.RunStatus(status)
		run.LastError = lastErr.String
		if ctxJSON.Valid && ctxJSON.String != "" {
			_ = json.Unmarshal([]byte(ctxJSON.String), &run.Context)
		}
		if dueAt.Valid {
			run.DueAt = &dueAt.Time
		}
		if deadline.Valid {
			run.Deadline = &deadline.Time
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// FindActiveRun returns the non-terminal run for the (workflowID, leadID)
// pair, or a NOT_FOUND error when none exists.
func (s *LibSQLStore) FindActiveRun(ctx context.Context, workflowID, leadID string) (*WorkflowRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, workflow_id, lead_id, status, current_step_index, retry_count, context, due_at, deadline, last_error, created_at, updated_at
		 FROM workflow_runs
		 WHERE workflow_id = ? AND lead_id = ? AND status NOT IN (?, ?, ?)
		 ORDER BY created_at DESC LIMIT 1`,
		workflowID, leadID,
		string(schema.RunStatusCompleted), string(schema.RunStatusFailed), string(schema.RunStatusCancelled))
	return s.scanRun(row, workflowID+"/"+leadID)
}

// --- Call records ---

func (s *LibSQLStore) CreateCall(ctx context.Context, rec *CallRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO call_records (call_sid, run_id, lead_id, phone_number, script, status, reaction, duration, notified, start_time, end_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CallSid, nullStr(rec.RunID), rec.LeadID, rec.PhoneNumber, nullStr(rec.Script),
		string(rec.Status), nullStr(string(rec.Reaction)), rec.Duration, rec.Notified,
		timeOrNow(rec.StartTime), nullTime(rec.EndTime),
	)
	return err
}

func (s *LibSQLStore) GetCall(ctx context.Context, callSid string) (*CallRecord, error) {
	rec := &CallRecord{}
	var (
		runID, script, reaction sql.NullString
		duration                sql.NullInt64
		endTime                 sql.NullTime
		status                  string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT call_sid, run_id, lead_id, phone_number, script, status, reaction, duration, notified, start_time, end_time
		 FROM call_records WHERE call_sid = ?`, callSid,
	).Scan(&rec.CallSid, &runID, &rec.LeadID, &rec.PhoneNumber, &script,
		&status, &reaction, &duration, &rec.Notified, &rec.StartTime, &endTime)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("call", callSid)
	}
	if err != nil {
		return nil, err
	}
	rec.RunID = runID.String
	rec.Script = script.String
	rec.Status = schema.CallStatus(status)
	rec.Reaction = schema.Reaction(reaction.String)
	rec.Duration = int(duration.Int64)
	if endTime.Valid {
		rec.EndTime = &endTime.Time
	}
	return rec, nil
}

func (s *LibSQLStore) UpdateCall(ctx context.Context, callSid string, update CallUpdate) error {
	var sets []string
	var args []any

	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*update.Status))
	}
	if update.Reaction != nil {
		sets = append(sets, "reaction = ?")
		args = append(args, string(*update.Reaction))
	}
	if update.Duration != nil {
		sets = append(sets, "duration = ?")
		args = append(args, *update.Duration)
	}
	if update.Notified != nil {
		sets = append(sets, "notified = ?")
		args = append(args, *update.Notified)
	}
	if update.EndTime != nil {
		sets = append(sets, "end_time = ?")
		args = append(args, *update.EndTime)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, callSid)

	query := fmt.Sprintf("UPDATE call_records SET %s WHERE call_sid = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "call", callSid)
}

func (s *LibSQLStore) ListCalls(ctx context.Context, filter CallFilter) ([]*CallRecord, error) {
	var where []string
	var args []any

	if filter.LeadID != "" {
		where = append(where, "lead_id = ?")
		args = append(args, filter.LeadID)
	}
	if filter.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, filter.RunID)
	}

	query := `SELECT call_sid, run_id, lead_id, phone_number, script, status, reaction, duration, notified, start_time, end_time FROM call_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_time DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*CallRecord
	for rows.Next() {
		rec := &CallRecord{}
		var (
			runID, script, reaction sql.NullString
			duration                sql.NullInt64
			endTime                 sql.NullTime
			status                  string
		)
		if err := rows.Scan(&rec.CallSid, &runID, &rec.LeadID, &rec.PhoneNumber, &script,
			&status, &reaction, &duration, &rec.Notified, &rec.StartTime, &endTime); err != nil {
			return nil, err
		}
		rec.RunID = runID.String
		rec.Script = script.String
		rec.Status = schema.CallStatus(status)
		rec.Reaction = schema.Reaction(reaction.String)
		rec.Duration = int(duration.Int64)
		if endTime.Valid {
			rec.EndTime = &endTime.Time
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// --- Interactions ---

func (s *LibSQLStore) AppendInteraction(ctx context.Context, in *Interaction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interactions (id, lead_id, run_id, type, content, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.LeadID, nullStr(in.RunID), in.Type, nullStr(in.Content), in.Status,
		timeOrNow(in.CreatedAt),
	)
	return err
}

func (s *LibSQLStore) ListInteractions(ctx context.Context, leadID string) ([]*Interaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lead_id, run_id, type, content, status, created_at
		 FROM interactions WHERE lead_id = ? ORDER BY created_at`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var interactions []*Interaction
	for rows.Next() {
		in := &Interaction{}
		var runID, content sql.NullString
		if err := rows.Scan(&in.ID, &in.LeadID, &runID, &in.Type, &content, &in.Status, &in.CreatedAt); err != nil {
			return nil, err
		}
		in.RunID = runID.String
		in.Content = content.String
		interactions = append(interactions, in)
	}
	return interactions, rows.Err()
}

// --- Run events ---

// AppendEvent appends an event with a monotonically increasing per-run
// sequence. The store holds a single connection, so the read-then-insert
// inside one transaction cannot interleave with another writer.
func (s *LibSQLStore) AppendEvent(ctx context.Context, event *RunEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin event tx: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM run_events WHERE run_id = ?`, event.RunID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("get next sequence: %w", err)
	}
	event.Sequence = seq

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO run_events (run_id, step_index, event_type, payload, timestamp, sequence)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.RunID, event.StepIndex, event.Type, nullRaw(event.Payload), event.Timestamp, seq,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event: %w", err)
	}
	return nil
}

func (s *LibSQLStore) GetEvents(ctx context.Context, runID string, since int64) ([]*RunEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, step_index, event_type, payload, timestamp, sequence
		 FROM run_events WHERE run_id = ? AND sequence > ? ORDER BY sequence`, runID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*RunEvent
	for rows.Next() {
		e := &RunEvent{}
		var payload sql.NullString
		if err := rows.Scan(&e.ID, &e.RunID, &e.StepIndex, &e.Type, &payload, &e.Timestamp, &e.Sequence); err != nil {
			return nil, err
		}
		e.Payload = rawOrNil(payload)
		events = append(events, e)
	}
	return events, rows.Err()
}

// --- Scheduled jobs ---

func (s *LibSQLStore) CreateScheduledJob(ctx context.Context, job *ScheduledJob) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scheduled_jobs (id, workflow_id, lead_id, cron_expression, enabled, last_run_at, next_run_at, last_run_status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.WorkflowID, job.LeadID, job.CronExpression, job.Enabled,
		nullTime(job.LastRunAt), nullTime(job.NextRunAt), nullStr(job.LastRunStatus),
		timeOrNow(job.CreatedAt),
	)
	return err
}

func (s *LibSQLStore) GetScheduledJob(ctx context.Context, id string) (*ScheduledJob, error) {
	job := &ScheduledJob{}
	var lastRun, nextRun sql.NullTime
	var lastStatus sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, workflow_id, lead_id, cron_expression, enabled, last_run_at, next_run_at, last_run_status, created_at
		 FROM scheduled_jobs WHERE id = ?`, id,
	).Scan(&job.ID, &job.WorkflowID, &job.LeadID, &job.CronExpression, &job.Enabled,
		&lastRun, &nextRun, &lastStatus, &job.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("scheduled job", id)
	}
	if err != nil {
		return nil, err
	}
	if lastRun.Valid {
		job.LastRunAt = &lastRun.Time
	}
	if nextRun.Valid {
		job.NextRunAt = &nextRun.Time
	}
	job.LastRunStatus = lastStatus.String
	return job, nil
}

func (s *LibSQLStore) UpdateScheduledJob(ctx context.Context, id string, update ScheduledJobUpdate) error {
	var sets []string
	var args []any

	if update.Enabled != nil {
		sets = append(sets, "enabled = ?")
		args = append(args, *update.Enabled)
	}
	if update.LastRunAt != nil {
		sets = append(sets, "last_run_at = ?")
		args = append(args, *update.LastRunAt)
	}
	if update.NextRunAt != nil {
		sets = append(sets, "next_run_at = ?")
		args = append(args, *update.NextRunAt)
	}
	if update.LastRunStatus != "" {
		sets = append(sets, "last_run_status = ?")
		args = append(args, update.LastRunStatus)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE scheduled_jobs SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "scheduled job", id)
}

func (s *LibSQLStore) ListScheduledJobs(ctx context.Context, filter ScheduledJobFilter) ([]*ScheduledJob, error) {
	var where []string
	var args []any

	if filter.Enabled != nil {
		where = append(where, "enabled = ?")
		args = append(args, *filter.Enabled)
	}
	if filter.LeadID != "" {
		where = append(where, "lead_id = ?")
		args = append(args, filter.LeadID)
	}

	query := `SELECT id, workflow_id, lead_id, cron_expression, enabled, last_run_at, next_run_at, last_run_status, created_at FROM scheduled_jobs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*ScheduledJob
	for rows.Next() {
		job := &ScheduledJob{}
		var lastRun, nextRun sql.NullTime
		var lastStatus sql.NullString
		if err := rows.Scan(&job.ID, &job.WorkflowID, &job.LeadID, &job.CronExpression, &job.Enabled,
			&lastRun, &nextRun, &lastStatus, &job.CreatedAt); err != nil {
			return nil, err
		}
		if lastRun.Valid {
			job.LastRunAt = &lastRun.Time
		}
		if nextRun.Valid {
			job.NextRunAt = &nextRun.Time
		}
		job.LastRunStatus = lastStatus.String
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *LibSQLStore) DeleteScheduledJob(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_jobs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "scheduled job", id)
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.OutreachError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func rawOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

func marshalMapOrDefault(m map[string]any) (json.RawMessage, error) {
	if len(m) == 0 {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(m)
}
