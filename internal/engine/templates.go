package engine

import (
	"context"
	"log/slog"

	"github.com/leadflow/outreach/internal/store"
	"github.com/leadflow/outreach/pkg/schema"
)

// BuiltinTemplates returns the outreach sequences shipped with the engine.
func BuiltinTemplates() []*store.WorkflowTemplate {
	const (
		hour = int64(3600 * 1000)
		day  = 24 * hour
	)
	return []*store.WorkflowTemplate{
		{
			ID:          "cold-outreach",
			Name:        "Cold Outreach",
			Description: "Intro email, then a call once the lead had time to look",
			Definition: schema.WorkflowDefinition{
				Trigger: schema.TriggerLeadCreated,
				Steps: []schema.StepConfig{
					{Kind: schema.StepEmail, Template: "lead_intro", Subject: "Ihre neue Website-Vorschau"},
					{Kind: schema.StepWait, DelayMs: 2 * day},
					{Kind: schema.StepCall, Script: "cold_call"},
				},
			},
		},
		{
			ID:          "demo-followup",
			Name:        "Demo Follow-up",
			Description: "Call the day after a demo went out",
			Definition: schema.WorkflowDefinition{
				Trigger: schema.TriggerDemoSent,
				Steps: []schema.StepConfig{
					{Kind: schema.StepWait, DelayMs: day},
					{Kind: schema.StepCall, Script: "demo_discussion"},
				},
			},
		},
		{
			ID:          "re-engagement",
			Name:        "Re-engagement",
			Description: "Win back leads that went quiet",
			Definition: schema.WorkflowDefinition{
				Trigger: schema.TriggerScheduled,
				Steps: []schema.StepConfig{
					{Kind: schema.StepWait, DelayMs: 7 * day},
					{Kind: schema.StepEmail, Template: "re_engagement", Subject: "Kurze Frage zu Ihrer Website"},
					{Kind: schema.StepWait, DelayMs: 3 * day},
					{Kind: schema.StepCall, Script: "follow_up", Condition: `reaction != "opt_out"`},
				},
			},
		},
	}
}

// SeedTemplates stores the built-in templates that are not present yet.
// Existing templates are left alone so operator edits survive restarts.
func SeedTemplates(ctx context.Context, st store.Store, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	for _, tpl := range BuiltinTemplates() {
		if _, err := st.GetTemplate(ctx, tpl.ID); err == nil {
			continue
		} else if !isNotFound(err) {
			return err
		}
		if err := st.StoreTemplate(ctx, tpl); err != nil {
			return err
		}
		logger.Info("seeded workflow template", slog.String("template_id", tpl.ID))
	}
	return nil
}
