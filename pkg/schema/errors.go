package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeAuth              = "AUTH_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
	ErrCodeRetryable         = "RETRYABLE_EXECUTION"
	ErrCodeFatal             = "FATAL_EXECUTION"
	ErrCodeRetryExhausted    = "RETRY_EXHAUSTED"
	ErrCodeExternalTimeout   = "EXTERNAL_TIMEOUT"
	ErrCodeCancelled         = "CANCELLED"
	ErrCodeStore             = "STORE_ERROR"
)

// OutreachError is the structured error type for all engine operations.
type OutreachError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	StepID  string         `json:"step_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *OutreachError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("[%s] step %s: %s", e.Code, e.StepID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *OutreachError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether the error code allows another attempt.
func (e *OutreachError) IsRetryable() bool {
	return e.Code == ErrCodeRetryable || e.Code == ErrCodeStore
}

// NewError creates a new OutreachError.
func NewError(code, message string) *OutreachError {
	return &OutreachError{Code: code, Message: message}
}

// NewErrorf creates a new OutreachError with a formatted message.
func NewErrorf(code, format string, args ...any) *OutreachError {
	return &OutreachError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithStep attaches a step ID to the error.
func (e *OutreachError) WithStep(stepID string) *OutreachError {
	e.StepID = stepID
	return e
}

// WithCause attaches an underlying cause.
func (e *OutreachError) WithCause(err error) *OutreachError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *OutreachError) WithDetails(details map[string]any) *OutreachError {
	e.Details = details
	return e
}
