package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflow/outreach/pkg/schema"
)

func newValidator(t *testing.T) *WorkflowValidator {
	t.Helper()
	v, err := NewWorkflowValidator()
	require.NoError(t, err)
	return v
}

func TestValidateColdOutreachDefinition(t *testing.T) {
	v := newValidator(t)
	def := &schema.WorkflowDefinition{
		Trigger: schema.TriggerLeadCreated,
		Steps: []schema.StepConfig{
			{Kind: schema.StepEmail, Template: "lead_intro", Subject: "Ihre Website"},
			{Kind: schema.StepWait, DelayMs: 48 * 3600 * 1000},
			{Kind: schema.StepCall, Script: "cold_call"},
		},
	}
	require.NoError(t, v.ValidateDefinition(def))
}

func TestValidateRejectsStructuralErrors(t *testing.T) {
	v := newValidator(t)
	tests := []struct {
		name string
		def  *schema.WorkflowDefinition
	}{
		{"nil definition", nil},
		{"no steps", &schema.WorkflowDefinition{Trigger: schema.TriggerManual}},
		{"unknown kind", &schema.WorkflowDefinition{Steps: []schema.StepConfig{{Kind: "sms"}}}},
		{"negative delay", &schema.WorkflowDefinition{Steps: []schema.StepConfig{
			{Kind: schema.StepEmail, Template: "t", DelayMs: -5},
		}}},
		{"bad webhook url", &schema.WorkflowDefinition{Steps: []schema.StepConfig{
			{Kind: schema.StepWebhook, URL: "ftp://nope"},
		}}},
		{"bad method", &schema.WorkflowDefinition{Steps: []schema.StepConfig{
			{Kind: schema.StepWebhook, URL: "https://x", Method: "FETCH"},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateDefinition(tt.def)
			var oe *schema.OutreachError
			require.ErrorAs(t, err, &oe)
			assert.Equal(t, schema.ErrCodeValidation, oe.Code)
		})
	}
}

func TestValidateSemanticRules(t *testing.T) {
	v := newValidator(t)
	tests := []struct {
		name string
		def  *schema.WorkflowDefinition
		msg  string
	}{
		{"email without template",
			&schema.WorkflowDefinition{Steps: []schema.StepConfig{{Kind: schema.StepEmail}}},
			"requires a template"},
		{"unknown call script",
			&schema.WorkflowDefinition{Steps: []schema.StepConfig{{Kind: schema.StepCall, Script: "hard_sell"}}},
			"unknown call script"},
		{"wait without delay",
			&schema.WorkflowDefinition{Steps: []schema.StepConfig{{Kind: schema.StepWait}}},
			"positive delay_ms"},
		{"wait with payload",
			&schema.WorkflowDefinition{Steps: []schema.StepConfig{{Kind: schema.StepWait, DelayMs: 100, Template: "t"}}},
			"no payload"},
		{"webhook without url",
			&schema.WorkflowDefinition{Steps: []schema.StepConfig{{Kind: schema.StepWebhook}}},
			"requires a url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateDefinition(tt.def)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestValidateTriggerOptional(t *testing.T) {
	v := newValidator(t)

	// Omitted trigger means manual; only a present-but-unknown value fails.
	def := &schema.WorkflowDefinition{
		Steps: []schema.StepConfig{{Kind: schema.StepEmail, Template: "t"}},
	}
	require.NoError(t, v.ValidateDefinition(def))

	def.Trigger = "on_full_moon"
	err := v.ValidateDefinition(def)
	var oe *schema.OutreachError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, schema.ErrCodeValidation, oe.Code)
}

func TestValidateCallStepDefaultScriptAllowed(t *testing.T) {
	v := newValidator(t)
	def := &schema.WorkflowDefinition{
		Steps: []schema.StepConfig{{Kind: schema.StepCall}}, // empty script falls back at execution
	}
	require.NoError(t, v.ValidateDefinition(def))
}
