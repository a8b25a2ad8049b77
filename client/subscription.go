package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/mbocsi/sigbridge/proto"
)

var (
	// ErrSubscriptionClosed ends a subscription. It matches io.EOF.
	ErrSubscriptionClosed = fmt.Errorf("subscription closed: %w", io.EOF)

	// ErrMalformedNotification is returned by Next for a notification whose
	// payload could not be decoded. The subscription stays open.
	ErrMalformedNotification = errors.New("malformed notification payload")
)

type event struct {
	payload json.RawMessage
	err     error
}

// Subscription is a lazy, non-restartable sequence of notification payloads.
// Next is meant for a single consumer.
type Subscription struct {
	client *Client
	id     json.RawMessage
	key    string

	mu    sync.Mutex
	queue []event
	limit int
	ready chan struct{}

	done      chan struct{}
	closeOnce sync.Once

	unsubOnce sync.Once
	unsubErr  error
}

func newSubscription(c *Client, id json.RawMessage, key string) *Subscription {
	return &Subscription{
		client: c,
		id:     id,
		key:    key,
		limit:  maxQueued,
		ready:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// ID is the subscription id the daemon assigned.
func (s *Subscription) ID() string {
	return string(s.id)
}

func (s *Subscription) push(payload json.RawMessage) {
	ev := event{payload: payload}
	if len(payload) == 0 || !json.Valid(payload) {
		ev = event{err: ErrMalformedNotification}
	}

	s.mu.Lock()
	if len(s.queue) >= s.limit {
		s.mu.Unlock()
		slog.Warn("Subscription queue full, dropping notification", "subscription", s.key, "queued", s.limit)
		s.client.metrics.ObserveDrop("queue_full")
		return
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

func (s *Subscription) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Next blocks until the next payload arrives. Payloads queued before the
// subscription closed are still returned; after that Next returns
// ErrSubscriptionClosed.
func (s *Subscription) Next(ctx context.Context) (json.RawMessage, error) {
	for {
		if ev, ok := s.pop(); ok {
			return ev.payload, ev.err
		}

		select {
		case <-s.ready:
		case <-s.done:
			if ev, ok := s.pop(); ok {
				return ev.payload, ev.err
			}
			return nil, ErrSubscriptionClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *Subscription) pop() (event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return event{}, false
	}
	ev := s.queue[0]
	s.queue[0] = event{}
	s.queue = s.queue[1:]
	return ev, true
}

// Unsubscribe tells the daemon the consumer is gone and closes the sequence.
// Only the first call reaches the daemon; later calls return its result.
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	s.unsubOnce.Do(func() {
		s.client.unregister(s.key)
		s.close()
		s.unsubErr = s.client.call(ctx, proto.MethodUnsubscribeReceive, proto.UnsubscribeParams{Subscription: s.id}, nil)
	})
	return s.unsubErr
}

// subscriptionKey normalises an id so numeric and string ids from the daemon
// compare equal regardless of formatting.
func subscriptionKey(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("missing subscription id")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("invalid subscription id: %w", err)
	}
	switch id := v.(type) {
	case json.Number:
		return "n:" + id.String(), nil
	case string:
		return "s:" + id, nil
	default:
		return "", fmt.Errorf("invalid subscription id %s", string(raw))
	}
}
