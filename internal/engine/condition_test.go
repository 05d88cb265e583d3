package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateBoolEmptyExpressionPasses(t *testing.T) {
	e := NewConditionEvaluator()
	ok, err := e.EvaluateBool(context.Background(), "", nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateBoolAgainstRunContext(t *testing.T) {
	e := NewConditionEvaluator()
	ctx := context.Background()
	runCtx := map[string]any{
		"reaction":      "appointment_requested",
		"call_duration": 42,
	}

	tests := []struct {
		expr string
		want bool
	}{
		{`reaction == "appointment_requested"`, true},
		{`reaction == "opt_out"`, false},
		{`call_duration > 30`, true},
		{`call_duration > 60`, false},
		{`reaction != "opt_out" && call_duration > 0`, true},
	}
	for _, tt := range tests {
		got, err := e.EvaluateBool(ctx, tt.expr, runCtx)
		require.NoError(t, err, tt.expr)
		assert.Equal(t, tt.want, got, tt.expr)
	}
}

func TestEvaluateBoolUndefinedVariableIsFalse(t *testing.T) {
	e := NewConditionEvaluator()
	ok, err := e.EvaluateBool(context.Background(), "reaction", map[string]any{})
	require.NoError(t, err)
	assert.False(t, ok, "a condition over an absent key must skip the step, not error")
}

func TestEvaluateBoolNonBooleanIsTruthy(t *testing.T) {
	e := NewConditionEvaluator()
	ok, err := e.EvaluateBool(context.Background(), `"some string"`, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateBoolCompileError(t *testing.T) {
	e := NewConditionEvaluator()
	_, err := e.EvaluateBool(context.Background(), "reaction ==", nil)
	require.Error(t, err)
}

func TestEvaluateBoolCachesPrograms(t *testing.T) {
	e := NewConditionEvaluator()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := e.EvaluateBool(ctx, `call_duration > 10`, map[string]any{"call_duration": i * 10})
		require.NoError(t, err)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	assert.Len(t, e.cache, 1)
}
