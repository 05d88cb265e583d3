package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leadflow/outreach/internal/call"
	"github.com/leadflow/outreach/internal/logging"
	"github.com/leadflow/outreach/internal/outbound"
	"github.com/leadflow/outreach/internal/store"
	"github.com/leadflow/outreach/internal/twilio"
	"github.com/leadflow/outreach/pkg/schema"
)

// StepResult is the outcome of a successfully executed step. Data is merged
// into the run context; AwaitExternal suspends the run until a verified
// provider callback reports the step's real outcome.
type StepResult struct {
	Data          map[string]any
	AwaitExternal bool
}

// Executor performs one kind of step. A nil error with AwaitExternal=false
// means the step is done; errors carry a retryable or fatal code that
// drives the retry policy.
type Executor interface {
	Kind() schema.StepKind
	Execute(ctx context.Context, run *store.WorkflowRun, step schema.StepConfig) (*StepResult, error)
}

// ExecutorSet maps step kinds to their executors.
type ExecutorSet map[schema.StepKind]Executor

// NewExecutorSet builds the standard executor set over the given collaborators.
func NewExecutorSet(st store.Store, sender outbound.EmailSender, placer outbound.CallPlacer, tracker *call.Tracker, logger *slog.Logger) ExecutorSet {
	if logger == nil {
		logger = slog.Default()
	}
	set := ExecutorSet{}
	for _, ex := range []Executor{
		&EmailExecutor{store: st, sender: sender, logger: logger},
		&CallExecutor{store: st, placer: placer, tracker: tracker, logger: logger},
		&WaitExecutor{},
		&WebhookExecutor{store: st, extractor: NewExtractor(), client: &http.Client{Timeout: 30 * time.Second}, logger: logger},
	} {
		set[ex.Kind()] = ex
	}
	return set
}

// appendInteraction records an outbound touch best-effort. A failing audit
// write never changes the outcome of the step itself.
func appendInteraction(ctx context.Context, st store.Store, logger *slog.Logger, run *store.WorkflowRun, typ, content, status string) {
	in := &store.Interaction{
		ID:      uuid.NewString(),
		LeadID:  run.LeadID,
		RunID:   run.ID,
		Type:    typ,
		Content: content,
		Status:  status,
	}
	if err := st.AppendInteraction(ctx, in); err != nil {
		logger.ErrorContext(ctx, "append interaction failed",
			slog.String("type", typ), slog.String("error", err.Error()))
	}
}

func contextString(run *store.WorkflowRun, key string) string {
	if run.Context == nil {
		return ""
	}
	v, _ := run.Context[key].(string)
	return v
}

// EmailExecutor hands a send request to the email collaborator. Success
// means the provider accepted the request; delivery is its problem.
type EmailExecutor struct {
	store  store.Store
	sender outbound.EmailSender
	logger *slog.Logger
}

func (e *EmailExecutor) Kind() schema.StepKind { return schema.StepEmail }

func (e *EmailExecutor) Execute(ctx context.Context, run *store.WorkflowRun, step schema.StepConfig) (*StepResult, error) {
	if step.Template == "" {
		return nil, schema.NewError(schema.ErrCodeFatal, "email step has no template")
	}

	req := outbound.EmailRequest{
		LeadID:   run.LeadID,
		To:       contextString(run, "email"),
		Template: step.Template,
		Subject:  step.Subject,
	}
	if err := e.sender.Send(ctx, req); err != nil {
		appendInteraction(ctx, e.store, e.logger, run, "email", step.Template, "failed")
		return nil, err
	}

	e.logger.InfoContext(ctx, "email accepted", slog.String("template", step.Template))
	appendInteraction(ctx, e.store, e.logger, run, "email", step.Template, "sent")
	return &StepResult{Data: map[string]any{"last_email_template": step.Template}}, nil
}

// CallExecutor places an outbound call and suspends the run. The call's
// real outcome arrives later through the status webhook; the executor only
// registers the call and reports the suspension marker.
type CallExecutor struct {
	store   store.Store
	placer  outbound.CallPlacer
	tracker *call.Tracker
	logger  *slog.Logger
}

func (e *CallExecutor) Kind() schema.StepKind { return schema.StepCall }

func (e *CallExecutor) Execute(ctx context.Context, run *store.WorkflowRun, step schema.StepConfig) (*StepResult, error) {
	phone := contextString(run, "phone")
	if phone == "" {
		return nil, schema.NewError(schema.ErrCodeFatal, "call step requires a lead phone number in run context")
	}

	script := step.Script
	if script == "" {
		script = twilio.DefaultScript
	}

	callSid, err := e.placer.Place(ctx, outbound.CallRequest{
		LeadID:      run.LeadID,
		PhoneNumber: phone,
		Script:      script,
	})
	if err != nil {
		appendInteraction(ctx, e.store, e.logger, run, "call", script, "failed")
		return nil, err
	}

	masked := outbound.MaskPhone(phone)
	if err := e.tracker.CreateCall(ctx, callSid, run.ID, run.LeadID, masked, script); err != nil {
		// The call is already ringing; losing the record would orphan its
		// callbacks, so the run fails rather than retrying a second dial.
		return nil, schema.NewErrorf(schema.ErrCodeFatal, "register placed call: %s", err.Error()).WithCause(err)
	}

	e.logger.InfoContext(logging.WithCallSid(ctx, callSid), "call placed",
		slog.String("script", script), slog.String("phone", masked))
	appendInteraction(ctx, e.store, e.logger, run, "call", script, "placed")

	return &StepResult{
		Data:          map[string]any{"call_sid": callSid},
		AwaitExternal: true,
	}, nil
}

// WaitExecutor always succeeds; the pause itself is enacted by the
// scheduler when it computes the run's next due time.
type WaitExecutor struct{}

func (e *WaitExecutor) Kind() schema.StepKind { return schema.StepWait }

func (e *WaitExecutor) Execute(context.Context, *store.WorkflowRun, schema.StepConfig) (*StepResult, error) {
	return &StepResult{}, nil
}

// WebhookExecutor calls an arbitrary HTTP collaborator with the run context
// and merges extracted fields of the JSON response back into it.
type WebhookExecutor struct {
	store     store.Store
	extractor *Extractor
	client    *http.Client
	logger    *slog.Logger
}

func (e *WebhookExecutor) Kind() schema.StepKind { return schema.StepWebhook }

func (e *WebhookExecutor) Execute(ctx context.Context, run *store.WorkflowRun, step schema.StepConfig) (*StepResult, error) {
	if step.URL == "" {
		return nil, schema.NewError(schema.ErrCodeFatal, "webhook step has no url")
	}
	method := strings.ToUpper(step.Method)
	if method == "" {
		method = http.MethodPost
	}

	var body io.Reader
	if method != http.MethodGet {
		payload, err := json.Marshal(map[string]any{
			"run_id":  run.ID,
			"lead_id": run.LeadID,
			"context": run.Context,
		})
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeFatal, "marshal webhook payload: %s", err.Error()).WithCause(err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, step.URL, body)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeFatal, "build webhook request: %s", err.Error()).WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		appendInteraction(ctx, e.store, e.logger, run, "webhook", step.URL, "failed")
		return nil, schema.NewErrorf(schema.ErrCodeRetryable, "webhook unreachable: %s", err.Error()).WithCause(err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 256*1024))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		appendInteraction(ctx, e.store, e.logger, run, "webhook", step.URL, "failed")
		return nil, schema.NewErrorf(schema.ErrCodeRetryable, "webhook returned %d", resp.StatusCode)
	default:
		appendInteraction(ctx, e.store, e.logger, run, "webhook", step.URL, "failed")
		return nil, schema.NewErrorf(schema.ErrCodeFatal, "webhook rejected request: status %d", resp.StatusCode)
	}

	appendInteraction(ctx, e.store, e.logger, run, "webhook", step.URL, "delivered")

	result := &StepResult{}
	if step.Extract != "" && len(raw) > 0 {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeFatal, "webhook response is not json: %s", err.Error()).WithCause(err)
		}
		out, err := e.extractor.Extract(ctx, step.Extract, decoded)
		if err != nil {
			return nil, err
		}
		switch v := out.(type) {
		case nil:
		case map[string]any:
			result.Data = v
		default:
			result.Data = map[string]any{"webhook_result": v}
		}
	}
	if result.Data != nil {
		e.logger.DebugContext(ctx, "webhook response extracted", slog.Int("keys", len(result.Data)))
	}
	return result, nil
}
