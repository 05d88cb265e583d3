package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no config.yaml present

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, "file:outreach.db", cfg.DB.Path)
	assert.Equal(t, 3, cfg.Engine.RetryCeiling)
	assert.Equal(t, 30*time.Second, cfg.Engine.BackoffBase)
	assert.Equal(t, 4*time.Hour, cfg.Engine.ExternalWaitCeiling)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("OUTREACH_SERVER_LISTEN_ADDR", ":9999")
	t.Setenv("OUTREACH_TWILIO_AUTH_TOKEN", "s3cr3t")
	t.Setenv("OUTREACH_TWILIO_ACCOUNT_SID", "AC42")
	t.Setenv("OUTREACH_TWILIO_FROM_NUMBER", "+41440000000")
	t.Setenv("OUTREACH_EMAIL_API_KEY", "mail-key")
	t.Setenv("OUTREACH_EMAIL_BASE_URL", "https://mail.example.com/")
	t.Setenv("OUTREACH_SERVER_PUBLIC_URL", "https://outreach.example.com/")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.ListenAddr)
	assert.Equal(t, "s3cr3t", cfg.Twilio.AuthToken)
	assert.Equal(t, "AC42", cfg.Twilio.AccountSID)
	assert.Equal(t, "+41440000000", cfg.Twilio.FromNumber)
	assert.Equal(t, "mail-key", cfg.Email.APIKey)
	assert.Equal(t, "https://mail.example.com", cfg.Email.BaseURL, "trailing slash stripped")
	assert.Equal(t, "https://outreach.example.com", cfg.Server.PublicURL, "trailing slash stripped")
}
