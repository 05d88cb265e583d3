package engine

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedTemplates(t *testing.T) {
	st := newEngineStore(t)
	ctx := context.Background()

	require.NoError(t, SeedTemplates(ctx, st, slog.Default()))

	templates, err := st.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 3)

	cold, err := st.GetTemplate(ctx, "cold-outreach")
	require.NoError(t, err)
	require.Len(t, cold.Definition.Steps, 3)
	assert.EqualValues(t, 48*3600*1000, cold.Definition.Steps[1].DelayMs)
}

func TestSeedTemplatesKeepsOperatorEdits(t *testing.T) {
	st := newEngineStore(t)
	ctx := context.Background()
	require.NoError(t, SeedTemplates(ctx, st, slog.Default()))

	edited, err := st.GetTemplate(ctx, "demo-followup")
	require.NoError(t, err)
	edited.Definition.Steps[0].DelayMs = 1000
	require.NoError(t, st.StoreTemplate(ctx, edited))

	require.NoError(t, SeedTemplates(ctx, st, slog.Default()))

	got, err := st.GetTemplate(ctx, "demo-followup")
	require.NoError(t, err)
	assert.EqualValues(t, 1000, got.Definition.Steps[0].DelayMs, "reseeding must not clobber edits")
}
