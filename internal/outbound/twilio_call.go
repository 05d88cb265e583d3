package outbound

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/leadflow/outreach/pkg/schema"
)

// TwilioConfig carries the credentials and URLs needed to place calls.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string // provider API base, e.g. https://api.twilio.com
	PublicURL  string // this service's public base for webhook callbacks
}

// TwilioCallPlacer places calls through the Twilio REST API.
type TwilioCallPlacer struct {
	cfg    TwilioConfig
	client *http.Client
}

// NewTwilioCallPlacer creates a placer with the given configuration.
func NewTwilioCallPlacer(cfg TwilioConfig) *TwilioCallPlacer {
	return &TwilioCallPlacer{
		cfg:    cfg,
		client: &http.Client{Timeout: defaultSendTimeout},
	}
}

// Place creates an outbound call. The voice webhook URL carries the script
// name; the status callback reports lifecycle events back to the engine.
func (p *TwilioCallPlacer) Place(ctx context.Context, req CallRequest) (string, error) {
	if p.cfg.AccountSID == "" || p.cfg.AuthToken == "" {
		return "", schema.NewError(schema.ErrCodeFatal, "telephony credentials not configured")
	}

	form := url.Values{}
	form.Set("To", req.PhoneNumber)
	form.Set("From", p.cfg.FromNumber)
	form.Set("Url", fmt.Sprintf("%s/webhooks/voice/incoming?script=%s", p.cfg.PublicURL, url.QueryEscape(req.Script)))
	form.Set("StatusCallback", p.cfg.PublicURL+"/webhooks/voice/status")
	// The REST API wants the parameter repeated per event.
	for _, ev := range []string{"initiated", "ringing", "answered", "completed"} {
		form.Add("StatusCallbackEvent", ev)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", p.cfg.BaseURL, p.cfg.AccountSID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", schema.NewErrorf(schema.ErrCodeFatal, "build call request: %s", err.Error()).WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(p.cfg.AccountSID, p.cfg.AuthToken)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", schema.NewErrorf(schema.ErrCodeRetryable, "telephony provider unreachable: %s", err.Error()).WithCause(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var created struct {
			Sid string `json:"sid"`
		}
		if err := json.Unmarshal(body, &created); err != nil || created.Sid == "" {
			return "", schema.NewError(schema.ErrCodeFatal, "telephony provider response missing call sid")
		}
		return created.Sid, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return "", schema.NewErrorf(schema.ErrCodeRetryable, "telephony provider returned %d", resp.StatusCode)
	default:
		return "", schema.NewErrorf(schema.ErrCodeFatal, "telephony provider rejected call: status %d", resp.StatusCode)
	}
}
