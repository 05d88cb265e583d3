package engine

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/leadflow/outreach/pkg/schema"
)

// IsRetryableError classifies whether a step execution error warrants
// another attempt. Typed OutreachErrors answer for themselves; network
// errors and timeouts are retryable; a cancelled context means the engine
// is shutting down and is not.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var oe *schema.OutreachError
	if errors.As(err, &oe) {
		return oe.IsRetryable()
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// String heuristics for common retryable patterns.
	msg := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"eof",
		"temporary failure",
		"i/o timeout",
		"service unavailable",
		"bad gateway",
		"gateway timeout",
		"too many requests",
	}
	for _, p := range retryablePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// ComputeBackoff calculates the delay before retry attempt n (1-based):
// base * 2^(attempt-1), capped at max. Attempts below 1 get the base delay.
func ComputeBackoff(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if max > 0 && delay >= max {
			return max
		}
	}
	if max > 0 && delay > max {
		return max
	}
	return delay
}
