package outbound

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/leadflow/outreach/pkg/schema"
)

const defaultSendTimeout = 30 * time.Second

// HTTPEmailSender posts send requests to the email provider's REST API.
type HTTPEmailSender struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPEmailSender creates a sender targeting the given provider base URL.
func NewHTTPEmailSender(baseURL, apiKey string) *HTTPEmailSender {
	return &HTTPEmailSender{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: defaultSendTimeout},
	}
}

// Send submits the request and interprets the provider's response: 2xx is
// acceptance, 5xx and transport failures are retryable, other statuses are
// fatal.
func (s *HTTPEmailSender) Send(ctx context.Context, req EmailRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeFatal, "marshal email request: %s", err.Error()).WithCause(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/send", bytes.NewReader(body))
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeFatal, "build email request: %s", err.Error()).WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeRetryable, "email provider unreachable: %s", err.Error()).WithCause(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return schema.NewErrorf(schema.ErrCodeRetryable, "email provider returned %d", resp.StatusCode)
	default:
		return schema.NewErrorf(schema.ErrCodeFatal, "email provider rejected request: %s",
			fmt.Sprintf("status %d", resp.StatusCode))
	}
}
