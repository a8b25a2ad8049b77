package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mbocsi/sigbridge/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type flags struct {
	config    string
	daemon    string
	webhook   string
	url       string
	host      string
	port      int
	logLevel  string
	logFormat string
	mcpStdio  bool
}

func newRootCommand() *cobra.Command {
	var f flags

	rootCmd := &cobra.Command{
		Use:           "sigbridge",
		Short:         "Bridge a signal-cli JSON-RPC daemon to a webhook and a REST API",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &f)
			if err != nil {
				return err
			}

			var logOut io.Writer = os.Stdout
			if cfg.MCPStdio {
				// stdout carries MCP traffic
				logOut = os.Stderr
			}
			if err := setupLogger(cfg.LogLevel, cfg.LogFormat, logOut); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	bindFlags(rootCmd.Flags(), &f)
	return rootCmd
}

func bindFlags(fs *pflag.FlagSet, f *flags) {
	defaults := config.Default()
	fs.StringVarP(&f.config, "config", "c", "", "Configuration file path (TOML)")
	fs.StringVar(&f.daemon, "daemon", "", "Address of the signal-cli daemon (host:port)")
	fs.StringVar(&f.webhook, "webhook", "", "Endpoint to forward received messages to")
	fs.StringVar(&f.url, "url", defaults.URL, "External URL the service can be accessed from")
	fs.StringVar(&f.host, "host", defaults.Host, "Host to bind the HTTP server to")
	fs.IntVar(&f.port, "port", defaults.Port, "Port to bind the HTTP server to")
	fs.StringVar(&f.logLevel, "log-level", defaults.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&f.logFormat, "log-format", defaults.LogFormat, "Log format (json or text)")
	fs.BoolVar(&f.mcpStdio, "mcp-stdio", false, "Serve the gateway actions as MCP tools on stdio")
}

// loadConfig reads the config file, applies explicitly set flags over it and
// validates the result.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg, err := config.Load(f.config)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("daemon") {
		cfg.Daemon = f.daemon
	}
	if changed("webhook") {
		cfg.Webhook = f.webhook
	}
	if changed("url") {
		cfg.URL = f.url
	}
	if changed("host") {
		cfg.Host = f.host
	}
	if changed("port") {
		cfg.Port = f.port
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("log-format") {
		cfg.LogFormat = f.logFormat
	}
	if changed("mcp-stdio") {
		cfg.MCPStdio = f.mcpStdio
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setupLogger(level, format string, w io.Writer) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}
