package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mbocsi/sigbridge/broker"
	"github.com/mbocsi/sigbridge/client"
	"github.com/mbocsi/sigbridge/config"
	"github.com/mbocsi/sigbridge/mcp"
	"github.com/mbocsi/sigbridge/metrics"
	"github.com/mbocsi/sigbridge/relay"
	"github.com/mbocsi/sigbridge/services"
	"github.com/mbocsi/sigbridge/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var errRelayStopped = errors.New("event relay stopped")

func run(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		return err
	}

	sig, err := client.Dial(ctx, cfg.Daemon, cfg.MaxFrameBytes, client.WithMetrics(m))
	if err != nil {
		return err
	}

	events := broker.NewBroker(broker.WithMaxListeners(cfg.MaxEventListeners))
	events.OnChange(m.SetListeners)

	webhook := relay.NewWebhook(cfg.Webhook, &http.Client{Timeout: cfg.WebhookTimeoutDuration()})
	webhook.UserAgent = web.Name + "/" + web.Version
	rl := relay.New(
		func(ctx context.Context) (relay.Stream, error) {
			sub, err := sig.SubscribeReceive(ctx)
			if err != nil {
				return nil, err
			}
			return sub, nil
		},
		webhook,
		relay.WithMetrics(m),
		relay.WithPublisher(events.Publish),
	)

	serviceContainer := services.NewServiceContainer(sig)
	gateway := web.NewGateway(serviceContainer, events,
		web.WithBaseURL(cfg.URL),
		web.WithCORSOrigins(cfg.CORSOrigins),
		web.WithMaxBodyBytes(cfg.MaxBodyBytes),
		web.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		web.WithMetrics(m, registry),
		web.WithReadinessCheck("daemon", sig.Healthy),
		web.WithReadinessCheck("relay", func() error {
			if state := rl.State(); state == relay.StateTerminated {
				return fmt.Errorf("relay %s", state)
			}
			return nil
		}),
	)

	g, gctx := errgroup.WithContext(ctx)
	relayDone := make(chan struct{})

	g.Go(func() error {
		defer close(relayDone)
		if err := rl.Run(gctx); err != nil {
			return err
		}
		if gctx.Err() == nil {
			return errRelayStopped
		}
		return nil
	})

	g.Go(func() error {
		return gateway.Start(cfg.BindAddr())
	})

	g.Go(func() error {
		select {
		case <-sig.Disconnected():
			if cause := sig.Err(); cause != nil {
				return fmt.Errorf("%w: %w", client.ErrDisconnected, cause)
			}
			return client.ErrDisconnected
		case <-gctx.Done():
			return nil
		}
	})

	if cfg.MCPStdio {
		mcpServer := mcp.NewMCPServer(web.Name, web.Version, serviceContainer)
		g.Go(func() error {
			err := mcpServer.Run(gctx, os.Stdin, os.Stdout)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("mcp server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := gateway.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Gateway shutdown failed", "error", err)
		}

		// let the relay unsubscribe before the connection goes
		select {
		case <-relayDone:
		case <-shutdownCtx.Done():
			slog.Warn("Relay did not stop in time")
		}
		return sig.Close()
	})

	err = g.Wait()
	if err != nil && ctx.Err() != nil && errors.Is(err, client.ErrDisconnected) {
		// closing the connection on shutdown is not a failure
		err = nil
	}
	slog.Info("Shut down", "error", err)
	return err
}
