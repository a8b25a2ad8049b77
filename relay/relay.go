// Package relay forwards every notification of the daemon's receive
// subscription to a webhook. A failed delivery is logged and dropped; only the
// end of the subscription stops the relay.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/mbocsi/sigbridge/metrics"
)

type State int32

const (
	StateIdle State = iota
	StateSubscribing
	StateForwarding
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateSubscribing:
		return "subscribing"
	case StateForwarding:
		return "forwarding"
	case StateTerminated:
		return "terminated"
	default:
		return "idle"
	}
}

// Stream is an open subscription. Next returns an error matching io.EOF once
// the subscription has ended; any other error concerns a single item.
type Stream interface {
	Next(ctx context.Context) (json.RawMessage, error)
	Unsubscribe(ctx context.Context) error
}

// SubscribeFunc opens the subscription the relay drains.
type SubscribeFunc func(ctx context.Context) (Stream, error)

// Deliverer makes one delivery attempt for one payload.
type Deliverer interface {
	Deliver(ctx context.Context, payload json.RawMessage) error
}

type Option func(*Relay)

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

// WithPublisher hands every event to fn in addition to the webhook.
func WithPublisher(fn func(json.RawMessage)) Option {
	return func(r *Relay) {
		r.publish = fn
	}
}

type Relay struct {
	subscribe SubscribeFunc
	webhook   Deliverer
	publish   func(json.RawMessage)
	metrics   *metrics.Metrics
	state     atomic.Int32
}

func New(subscribe SubscribeFunc, webhook Deliverer, opts ...Option) *Relay {
	r := &Relay{subscribe: subscribe, webhook: webhook}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Relay) State() State {
	return State(r.state.Load())
}

func (r *Relay) setState(s State) {
	r.state.Store(int32(s))
	slog.Debug("Relay state changed", "state", s.String())
}

// Run subscribes and forwards until the subscription ends or ctx is done.
// A subscribe failure is returned as is. Otherwise the result is that of the
// final unsubscribe call.
func (r *Relay) Run(ctx context.Context) error {
	r.setState(StateSubscribing)
	stream, err := r.subscribe(ctx)
	if err != nil {
		r.setState(StateTerminated)
		return fmt.Errorf("subscribe to daemon events: %w", err)
	}

	r.setState(StateForwarding)
	slog.Info("Relaying daemon events")

	for {
		event, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				slog.Info("Event subscription ended", "reason", err)
				break
			}
			r.metrics.ObserveDelivery(err)
			slog.Warn("Dropping undecodable event", "error", err)
			continue
		}
		r.forward(ctx, event)
	}

	r.setState(StateTerminated)
	if err := stream.Unsubscribe(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("unsubscribe from daemon events: %w", err)
	}
	return nil
}

func (r *Relay) forward(ctx context.Context, event json.RawMessage) {
	r.metrics.ObserveEvent()
	if r.publish != nil {
		r.publish(event)
	}

	err := r.webhook.Deliver(ctx, event)
	r.metrics.ObserveDelivery(err)
	if err != nil {
		slog.Warn("Webhook delivery failed", "error", err, "size", len(event))
		return
	}
	slog.Debug("Event delivered", "size", len(event))
}
