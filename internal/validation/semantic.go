package validation

import (
	"fmt"

	"github.com/leadflow/outreach/internal/twilio"
	"github.com/leadflow/outreach/pkg/schema"
)

// validateSemantics enforces kind-specific step rules the JSON Schema
// cannot express.
func validateSemantics(def *schema.WorkflowDefinition) error {
	for i, step := range def.Steps {
		switch step.Kind {
		case schema.StepEmail:
			if step.Template == "" {
				return stepError(i, "email step requires a template")
			}
		case schema.StepCall:
			if step.Script != "" && !twilio.KnownScript(step.Script) {
				return stepError(i, fmt.Sprintf("unknown call script %q", step.Script))
			}
		case schema.StepWait:
			if step.DelayMs <= 0 {
				return stepError(i, "wait step requires a positive delay_ms")
			}
			if step.Template != "" || step.Script != "" || step.URL != "" {
				return stepError(i, "wait step carries no payload")
			}
		case schema.StepWebhook:
			if step.URL == "" {
				return stepError(i, "webhook step requires a url")
			}
		}
	}
	return nil
}

func stepError(index int, msg string) *schema.OutreachError {
	return schema.NewErrorf(schema.ErrCodeValidation, "steps[%d]: %s", index, msg).
		WithStep(fmt.Sprintf("%d", index))
}
