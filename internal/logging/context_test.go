package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextAccessors(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RunID(ctx))
	assert.Empty(t, LeadID(ctx))
	assert.Empty(t, CallSid(ctx))

	ctx = WithRunID(ctx, "run-1")
	ctx = WithLeadID(ctx, "lead-1")
	ctx = WithCallSid(ctx, "CA123")

	assert.Equal(t, "run-1", RunID(ctx))
	assert.Equal(t, "lead-1", LeadID(ctx))
	assert.Equal(t, "CA123", CallSid(ctx))

	assert.Equal(t, -1, StepIndex(ctx))
	assert.Equal(t, 2, StepIndex(WithStepIndex(ctx, 2)))
}

func TestCorrelationHandlerInjectsIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := WithCallSid(WithRunID(context.Background(), "run-7"), "CA42")
	ctx = WithStepIndex(ctx, 0)
	logger.InfoContext(ctx, "call status applied")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "run-7", record["run_id"])
	assert.Equal(t, "CA42", record["call_sid"])
	assert.EqualValues(t, 0, record["step"])
	_, hasLead := record["lead_id"]
	assert.False(t, hasLead, "empty IDs must not be injected")
}
