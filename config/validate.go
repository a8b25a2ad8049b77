package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDaemon(); err != nil {
		return err
	}
	if err := c.validateWebhook(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateLimits()
}

func (c *Config) validateDaemon() error {
	if strings.TrimSpace(c.Daemon) == "" {
		return errors.New("daemon is required (host:port of the signal-cli daemon)")
	}
	if _, _, err := net.SplitHostPort(c.Daemon); err != nil {
		return fmt.Errorf("daemon %q must be host:port: %w", c.Daemon, err)
	}
	return nil
}

func (c *Config) validateWebhook() error {
	if strings.TrimSpace(c.Webhook) == "" {
		return errors.New("webhook is required")
	}
	u, err := url.Parse(c.Webhook)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("webhook %q must be an absolute http or https URL", c.Webhook)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if _, err := url.Parse(c.URL); err != nil {
		return fmt.Errorf("url: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("log_format must be json or text, got %q", c.LogFormat)
	}
	return nil
}

func (c *Config) validateLimits() error {
	if c.MaxFrameBytes < 1024 {
		return errors.New("max_frame_bytes must be at least 1024")
	}
	if c.MaxBodyBytes < 1024 {
		return errors.New("max_body_bytes must be at least 1024")
	}
	if c.WebhookTimeout < 0 {
		return errors.New("webhook_timeout must not be negative")
	}
	if c.RateLimit < 0 {
		return errors.New("rate_limit must not be negative")
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return errors.New("rate_burst must be positive when rate_limit is set")
	}
	if c.MaxEventListeners < 0 {
		return errors.New("max_event_listeners must not be negative")
	}
	return nil
}
