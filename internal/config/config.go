// Package config loads process configuration from an optional yaml file and
// the environment. Values are read once at process start; there is no
// hot-reload.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the configuration for the outreach engine.
type Config struct {
	Server struct {
		ListenAddr string `mapstructure:"listen_addr"`
		PublicURL  string `mapstructure:"public_url"`
	} `mapstructure:"server"`
	DB struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"db"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
	Twilio struct {
		AccountSID string `mapstructure:"account_sid"`
		AuthToken  string `mapstructure:"auth_token"`
		FromNumber string `mapstructure:"from_number"`
		BaseURL    string `mapstructure:"base_url"`
	} `mapstructure:"twilio"`
	Email struct {
		BaseURL string `mapstructure:"base_url"`
		APIKey  string `mapstructure:"api_key"`
	} `mapstructure:"email"`
	Engine struct {
		TickInterval        time.Duration `mapstructure:"tick_interval"`
		RetryCeiling        int           `mapstructure:"retry_ceiling"`
		BackoffBase         time.Duration `mapstructure:"backoff_base"`
		BackoffCap          time.Duration `mapstructure:"backoff_cap"`
		ExternalWaitCeiling time.Duration `mapstructure:"external_wait_ceiling"`
	} `mapstructure:"engine"`
}

// LoadConfig loads configuration from an optional config.yaml plus the
// environment. Every key can be set via OUTREACH_-prefixed env vars, e.g.
// OUTREACH_TWILIO_AUTH_TOKEN.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Keys without defaults are invisible to Unmarshal unless bound
	// explicitly; AutomaticEnv alone does not surface them.
	for _, key := range []string{
		"twilio.account_sid",
		"twilio.auth_token",
		"twilio.from_number",
		"email.base_url",
		"email.api_key",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; env vars and defaults still apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Server.PublicURL = strings.TrimRight(strings.TrimSpace(cfg.Server.PublicURL), "/")
	cfg.Twilio.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Twilio.BaseURL), "/")
	cfg.Email.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Email.BaseURL), "/")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.public_url", "http://localhost:8080")
	v.SetDefault("db.path", "file:outreach.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("twilio.base_url", "https://api.twilio.com")
	v.SetDefault("engine.tick_interval", 15*time.Second)
	v.SetDefault("engine.retry_ceiling", 3)
	v.SetDefault("engine.backoff_base", 30*time.Second)
	v.SetDefault("engine.backoff_cap", 10*time.Minute)
	v.SetDefault("engine.external_wait_ceiling", 4*time.Hour)
}
