package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSingleValue(t *testing.T) {
	e := NewExtractor()
	out, err := e.Extract(context.Background(), ".lead.score", map[string]any{
		"lead": map[string]any{"score": 87.5},
	})
	require.NoError(t, err)
	assert.Equal(t, 87.5, out)
}

func TestExtractObject(t *testing.T) {
	e := NewExtractor()
	out, err := e.Extract(context.Background(), `{appointment: .slot, confirmed: .ok}`, map[string]any{
		"slot": "2026-09-03T10:00",
		"ok":   true,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"appointment": "2026-09-03T10:00", "confirmed": true}, out)
}

func TestExtractMultipleOutputsCollected(t *testing.T) {
	e := NewExtractor()
	out, err := e.Extract(context.Background(), ".items[]", map[string]any{
		"items": []any{"a", "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, out)
}

func TestExtractEmptyExpressionIsNil(t *testing.T) {
	e := NewExtractor()
	out, err := e.Extract(context.Background(), "", map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestExtractParseError(t *testing.T) {
	e := NewExtractor()
	_, err := e.Extract(context.Background(), ".[broken", nil)
	require.Error(t, err)
}

func TestExtractEnvIsBlocked(t *testing.T) {
	e := NewExtractor()
	t.Setenv("OUTREACH_SECRET_PROBE", "leak")
	out, err := e.Extract(context.Background(), `$ENV.OUTREACH_SECRET_PROBE`, map[string]any{})
	require.NoError(t, err)
	assert.Nil(t, out)
}
