package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	runIDKey ctxKey = iota
	leadIDKey
	callSidKey
	stepIndexKey
)

// WithRunID returns a context with the run ID set.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// WithLeadID returns a context with the lead ID set.
func WithLeadID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, leadIDKey, id)
}

// WithCallSid returns a context with the call SID set.
func WithCallSid(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, callSidKey, sid)
}

// RunID extracts the run ID from the context, or "" if absent.
func RunID(ctx context.Context) string {
	v, _ := ctx.Value(runIDKey).(string)
	return v
}

// LeadID extracts the lead ID from the context, or "" if absent.
func LeadID(ctx context.Context) string {
	v, _ := ctx.Value(leadIDKey).(string)
	return v
}

// CallSid extracts the call SID from the context, or "" if absent.
func CallSid(ctx context.Context) string {
	v, _ := ctx.Value(callSidKey).(string)
	return v
}

// WithStepIndex returns a context with the step index set.
func WithStepIndex(ctx context.Context, idx int) context.Context {
	return context.WithValue(ctx, stepIndexKey, idx)
}

// StepIndex extracts the step index from the context, or -1 if absent.
func StepIndex(ctx context.Context) int {
	if v, ok := ctx.Value(stepIndexKey).(int); ok {
		return v
	}
	return -1
}

// CorrelationHandler wraps an slog.Handler, automatically injecting
// correlation IDs from the context into every log record.
// Use with slog.New(NewCorrelationHandler(inner)) so callers can use
// logger.InfoContext(ctx, ...) and IDs appear automatically.
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps the given handler with automatic correlation ID injection.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	if v := RunID(ctx); v != "" {
		r.AddAttrs(slog.String("run_id", v))
	}
	if v := LeadID(ctx); v != "" {
		r.AddAttrs(slog.String("lead_id", v))
	}
	if v := CallSid(ctx); v != "" {
		r.AddAttrs(slog.String("call_sid", v))
	}
	if v := StepIndex(ctx); v >= 0 {
		r.AddAttrs(slog.Int("step", v))
	}
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}
