// Package config holds the bridge settings. Values come from defaults, then an
// optional TOML file, then command-line flags.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config encapsulates all configuration values for the bridge.
type Config struct {
	Daemon  string `toml:"daemon"`  // signal-cli JSON-RPC address, host:port
	Webhook string `toml:"webhook"` // endpoint received events are posted to
	URL     string `toml:"url"`     // external URL the gateway is reachable at
	Host    string `toml:"host"`
	Port    int    `toml:"port"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	MaxFrameBytes     int      `toml:"max_frame_bytes"`
	MaxBodyBytes      int64    `toml:"max_body_bytes"` // gateway request body limit
	WebhookTimeout    int      `toml:"webhook_timeout"` // seconds, 0 waits forever
	CORSOrigins       []string `toml:"cors_origins"`
	RateLimit         float64  `toml:"rate_limit"` // gateway actions per second, 0 is unlimited
	RateBurst         int      `toml:"rate_burst"`
	MaxEventListeners int      `toml:"max_event_listeners"` // 0 is unlimited
	MCPStdio          bool     `toml:"mcp_stdio"`
}

// Default returns a Config populated with built-in defaults.
func Default() Config {
	return Config{
		URL:               "http://localhost",
		Host:              "0.0.0.0",
		Port:              80,
		LogLevel:          "info",
		LogFormat:         "json",
		MaxFrameBytes:     8 << 20,
		MaxBodyBytes:      16 << 20,
		CORSOrigins:       []string{"*"},
		RateBurst:         10,
		MaxEventListeners: 16,
	}
}

// Load returns the defaults overlaid with the TOML file at path. An empty path
// yields the defaults. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return &cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// BindAddr is the address the gateway listens on.
func (c *Config) BindAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Config) WebhookTimeoutDuration() time.Duration {
	return time.Duration(c.WebhookTimeout) * time.Second
}
