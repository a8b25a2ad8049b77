package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sigbridge.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func validConfig() *Config {
	cfg := Default()
	cfg.Daemon = "127.0.0.1:7583"
	cfg.Webhook = "http://localhost:8080/hook"
	return &cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "http://localhost", cfg.URL)
	assert.Equal(t, "0.0.0.0:80", cfg.BindAddr())
	assert.Equal(t, 8<<20, cfg.MaxFrameBytes)
	assert.Equal(t, int64(16<<20), cfg.MaxBodyBytes)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Zero(t, cfg.WebhookTimeoutDuration())
}

func TestLoad_EmptyPathGivesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestLoad_OverlaysFile(t *testing.T) {
	path := writeConfig(t, `
daemon = "signal:7583"
webhook = "https://hooks.example.com/signal"
port = 8080
log_format = "text"
webhook_timeout = 5
cors_origins = ["https://app.example.com"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "signal:7583", cfg.Daemon)
	assert.Equal(t, "https://hooks.example.com/signal", cfg.Webhook)
	assert.Equal(t, "0.0.0.0:8080", cfg.BindAddr())
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "5s", cfg.WebhookTimeoutDuration().String())
	assert.Equal(t, []string{"https://app.example.com"}, cfg.CORSOrigins)
	// untouched keys keep their defaults
	assert.Equal(t, "http://localhost", cfg.URL)
	assert.Equal(t, 16, cfg.MaxEventListeners)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `port = "eighty"`))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `unknown_key = true`))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"missing daemon", func(c *Config) { c.Daemon = "" }, false},
		{"daemon without port", func(c *Config) { c.Daemon = "localhost" }, false},
		{"missing webhook", func(c *Config) { c.Webhook = "" }, false},
		{"relative webhook", func(c *Config) { c.Webhook = "/hook" }, false},
		{"ftp webhook", func(c *Config) { c.Webhook = "ftp://example.com/hook" }, false},
		{"port zero", func(c *Config) { c.Port = 0 }, false},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, false},
		{"debug log level", func(c *Config) { c.LogLevel = "debug" }, true},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, false},
		{"tiny frames", func(c *Config) { c.MaxFrameBytes = 10 }, false},
		{"tiny bodies", func(c *Config) { c.MaxBodyBytes = 10 }, false},
		{"negative timeout", func(c *Config) { c.WebhookTimeout = -1 }, false},
		{"rate without burst", func(c *Config) { c.RateLimit = 5; c.RateBurst = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
