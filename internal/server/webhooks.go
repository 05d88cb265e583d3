package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/leadflow/outreach/internal/logging"
	"github.com/leadflow/outreach/internal/twilio"
	"github.com/leadflow/outreach/pkg/schema"
)

// StatusCallback is the typed shape of the provider's status webhook. The
// boundary parses into this before any field is trusted.
type StatusCallback struct {
	CallSid      string `form:"CallSid"`
	CallStatus   string `form:"CallStatus"`
	CallDuration string `form:"CallDuration"`
	Digits       string `form:"Digits"`
}

// verifySignature authenticates an inbound provider request. Fails closed:
// a missing secret, missing header, or bad signature all reject. The caller
// is told only that authentication failed, never which part.
func (s *Server) verifySignature(c echo.Context) error {
	req := c.Request()
	if err := req.ParseForm(); err != nil {
		return schema.NewError(schema.ErrCodeValidation, "malformed form body")
	}

	params := make(map[string]string, len(req.PostForm))
	for k, vs := range req.PostForm {
		if len(vs) > 0 {
			params[k] = vs[0]
		}
	}

	url := s.cfg.PublicURL + req.RequestURI
	sig := req.Header.Get(twilio.SignatureHeader)
	if !twilio.Verify(s.cfg.AuthToken, sig, url, params) {
		return schema.NewError(schema.ErrCodeAuth, "signature verification failed")
	}
	return nil
}

// handleVoiceStatus ingests call lifecycle callbacks. Internal persistence
// failures still answer 200 "OK": the provider's retries cannot fix them
// and would only flood the verifier, so the failure is logged instead.
func (s *Server) handleVoiceStatus(c echo.Context) error {
	if err := s.verifySignature(c); err != nil {
		return writeError(c, err)
	}

	var cb StatusCallback
	if err := c.Bind(&cb); err != nil {
		return writeError(c, schema.NewError(schema.ErrCodeValidation, "malformed callback body"))
	}
	if cb.CallSid == "" || cb.CallStatus == "" {
		return writeError(c, schema.NewError(schema.ErrCodeValidation, "CallSid and CallStatus are required"))
	}

	ctx := logging.WithCallSid(c.Request().Context(), cb.CallSid)
	duration := 0
	if cb.CallDuration != "" {
		if d, err := strconv.Atoi(cb.CallDuration); err == nil {
			duration = d
		}
	}

	if cb.Digits != "" {
		if _, err := s.tracker.ApplyReaction(ctx, cb.CallSid, cb.Digits); err != nil {
			s.logger.ErrorContext(ctx, "reaction ingest failed", slog.String("error", err.Error()))
		}
	}
	if err := s.tracker.ApplyStatus(ctx, cb.CallSid, cb.CallStatus, duration); err != nil {
		s.logger.ErrorContext(ctx, "status ingest failed", slog.String("error", err.Error()))
	}

	return c.String(http.StatusOK, "OK")
}

// handleVoiceIncoming answers the provider's voice webhook with the spoken
// script. The script is selected by the query parameter the call placer put
// on the webhook URL; an optional company parameter personalizes the intro.
func (s *Server) handleVoiceIncoming(c echo.Context) error {
	if err := s.verifySignature(c); err != nil {
		return writeError(c, err)
	}

	script := c.QueryParam("script")
	company := c.QueryParam("company")
	responseURL := s.cfg.PublicURL + "/webhooks/voice/response"

	return c.Blob(http.StatusOK, "text/xml; charset=utf-8",
		[]byte(twilio.CallTwiML(script, company, responseURL)))
}

// handleVoiceResponse ingests the DTMF response gathered during the call
// and answers with a spoken acknowledgement. No digits means the lead hung
// up on the prompt; the call just ends.
func (s *Server) handleVoiceResponse(c echo.Context) error {
	if err := s.verifySignature(c); err != nil {
		return writeError(c, err)
	}

	callSid := c.FormValue("CallSid")
	digits := c.FormValue("Digits")
	ctx := logging.WithCallSid(c.Request().Context(), callSid)

	if digits == "" {
		return c.Blob(http.StatusOK, "text/xml; charset=utf-8", []byte(twilio.HangupTwiML()))
	}

	if callSid != "" {
		if _, err := s.tracker.ApplyReaction(ctx, callSid, digits); err != nil {
			s.logger.ErrorContext(ctx, "reaction ingest failed", slog.String("error", err.Error()))
		}
	}
	return c.Blob(http.StatusOK, "text/xml; charset=utf-8", []byte(twilio.ResponseTwiML(digits)))
}
