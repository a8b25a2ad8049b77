// Package broker fans relayed daemon events out to live listeners.
package broker

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
)

// queueSize is how many events a listener may fall behind before new ones
// are dropped for it.
const queueSize = 64

var ErrTooManyListeners = errors.New("too many event listeners")

type Listener interface {
	ID() string
	Send(event json.RawMessage) error
}

type Option func(*Broker)

// WithMaxListeners caps concurrent listeners. Zero means no cap.
func WithMaxListeners(n int) Option {
	return func(b *Broker) {
		b.maxListeners = n
	}
}

// subscription owns the queue that decouples one listener from Publish.
type subscription struct {
	listener Listener
	queue    chan json.RawMessage
	done     chan struct{}
}

func (s *subscription) run() {
	for {
		select {
		case event := <-s.queue:
			if err := s.listener.Send(event); err != nil {
				slog.Warn("There was an error publishing an event to a listener", "listenerId", s.listener.ID(), "error", err.Error())
			}
		case <-s.done:
			return
		}
	}
}

type Broker struct {
	mu           sync.RWMutex
	subs         map[string]*subscription
	maxListeners int
	onChange     func(n int)
}

func NewBroker(opts ...Option) *Broker {
	b := &Broker{subs: make(map[string]*subscription)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OnChange registers fn to be told the listener count after every change.
func (b *Broker) OnChange(fn func(n int)) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// Subscribe starts delivering events to l. It fails with ErrTooManyListeners
// once the cap is reached.
func (b *Broker) Subscribe(l Listener) error {
	slog.Debug("Subscribing listener", "listenerId", l.ID())
	b.mu.Lock()
	if b.maxListeners > 0 && len(b.subs) >= b.maxListeners {
		b.mu.Unlock()
		return ErrTooManyListeners
	}
	sub := &subscription{
		listener: l,
		queue:    make(chan json.RawMessage, queueSize),
		done:     make(chan struct{}),
	}
	if old, ok := b.subs[l.ID()]; ok {
		close(old.done)
	}
	b.subs[l.ID()] = sub
	n, fn := len(b.subs), b.onChange
	b.mu.Unlock()

	go sub.run()
	if fn != nil {
		fn(n)
	}
	return nil
}

func (b *Broker) Unsubscribe(l Listener) {
	slog.Debug("Unsubscribing listener", "listenerId", l.ID())
	b.mu.Lock()
	if sub, ok := b.subs[l.ID()]; ok {
		close(sub.done)
		delete(b.subs, l.ID())
	} else {
		slog.Warn("Did not find listener to unsubscribe", "listenerId", l.ID())
	}
	n, fn := len(b.subs), b.onChange
	b.mu.Unlock()

	if fn != nil {
		fn(n)
	}
}

func (b *Broker) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish queues event for every listener and never waits on one. A listener
// whose queue is full misses the event.
func (b *Broker) Publish(event json.RawMessage) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	queued := 0
	for id, sub := range b.subs {
		select {
		case sub.queue <- event:
			queued++
		default:
			slog.Warn("Dropped event for slow listener (buffer full)", "listenerId", id)
		}
	}
	slog.Debug("Event published", "listeners", queued, "size", len(event))
}
