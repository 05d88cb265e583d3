// Package outbound holds the collaborator interfaces the engine performs
// side effects through, plus their HTTP implementations. The engine only
// interprets outcomes; delivery guarantees belong to the providers.
package outbound

import (
	"context"
	"strings"
)

// EmailRequest is a send request handed to the email provider.
type EmailRequest struct {
	LeadID   string `json:"lead_id"`
	To       string `json:"to,omitempty"`
	Template string `json:"template"`
	Subject  string `json:"subject,omitempty"`
}

// EmailSender submits an email send request. A nil error means the provider
// accepted the request, not that the mail was delivered.
type EmailSender interface {
	Send(ctx context.Context, req EmailRequest) error
}

// CallRequest is a call placement request handed to the telephony provider.
type CallRequest struct {
	LeadID      string
	PhoneNumber string
	Script      string
}

// CallPlacer places an outbound call and returns the provider's call SID.
type CallPlacer interface {
	Place(ctx context.Context, req CallRequest) (string, error)
}

// MaskPhone hides all but the last four digits of a phone number for
// persistence and logs.
func MaskPhone(phone string) string {
	clean := strings.Join(strings.Fields(phone), "")
	if clean == "" {
		return "unknown"
	}
	if len(clean) < 4 {
		return "****"
	}
	masked := []byte(clean[:len(clean)-4])
	for i, c := range masked {
		if c >= '0' && c <= '9' {
			masked[i] = '*'
		}
	}
	return string(masked) + clean[len(clean)-4:]
}
