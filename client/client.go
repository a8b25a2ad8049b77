// Package client is the JSON-RPC handle to a signal-cli daemon. It runs
// sourcegraph/jsonrpc2 over the line transport and adds the typed methods and
// the receive subscription the relay and gateway use. A Client is safe for
// concurrent use.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mbocsi/sigbridge/metrics"
	"github.com/mbocsi/sigbridge/proto"
	"github.com/mbocsi/sigbridge/transport"
	"github.com/sourcegraph/jsonrpc2"
)

const (
	// maxOrphans bounds notifications held for subscriptions not yet registered.
	maxOrphans = 128

	// maxQueued bounds notifications a subscription holds for a slow consumer.
	maxQueued = 1024
)

var ErrDisconnected = errors.New("daemon connection closed")

// CallError is an error reply from the daemon.
type CallError struct {
	Method  string
	Code    int64
	Message string
	Data    string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: rpc error %d: %s", e.Method, e.Code, e.Message)
}

type Option func(*Client)

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

type Client struct {
	conn    *jsonrpc2.Conn
	stream  *transport.Stream
	metrics *metrics.Metrics
	closing atomic.Bool

	subMu        sync.Mutex
	subs         map[string]*Subscription
	orphans      map[string][]json.RawMessage
	orphanCount  int
	disconnected bool
}

// Dial connects to the daemon at addr.
func Dial(ctx context.Context, addr string, maxFrameSize int, opts ...Option) (*Client, error) {
	conn, err := transport.Dial(ctx, addr, maxFrameSize)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon %s: %w", addr, err)
	}
	return New(ctx, conn, opts...), nil
}

// New starts a client on an already framed connection.
func New(ctx context.Context, conn transport.FrameConn, opts ...Option) *Client {
	c := &Client{
		stream:  transport.NewStream(conn, conn),
		subs:    make(map[string]*Subscription),
		orphans: make(map[string][]json.RawMessage),
	}
	for _, opt := range opts {
		opt(c)
	}
	rpcLog := slog.NewLogLogger(slog.Default().Handler(), slog.LevelError)
	c.conn = jsonrpc2.NewConn(ctx, c.stream, c, jsonrpc2.SetLogger(rpcLog))
	go c.watch()
	return c
}

func (c *Client) watch() {
	<-c.conn.DisconnectNotify()
	cause := c.Err()
	switch {
	case c.closing.Load():
		slog.Info("Daemon connection closed")
	case errors.Is(cause, transport.ErrClosed):
		slog.Warn("Daemon hung up", "error", cause)
	default:
		attrs := []any{"error", cause}
		var terr *transport.TransportError
		if errors.As(cause, &terr) {
			attrs = append(attrs, "debug", terr.Debug)
		}
		slog.Error("Daemon connection lost", attrs...)
	}

	c.subMu.Lock()
	c.disconnected = true
	subs := c.subs
	c.subs = make(map[string]*Subscription)
	c.subMu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}

// Disconnected is closed once the daemon connection is gone.
func (c *Client) Disconnected() <-chan struct{} {
	return c.conn.DisconnectNotify()
}

// Healthy reports ErrDisconnected once the connection has been lost.
func (c *Client) Healthy() error {
	select {
	case <-c.conn.DisconnectNotify():
		return ErrDisconnected
	default:
		return nil
	}
}

// Err returns what ended the daemon connection, or nil while it is up.
func (c *Client) Err() error {
	return c.stream.Err()
}

func (c *Client) Close() error {
	c.closing.Store(true)
	return c.conn.Close()
}

// Handle receives everything the daemon initiates.
func (c *Client) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	if !req.Notif {
		err := conn.ReplyWithError(ctx, req.ID, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeMethodNotFound,
			Message: fmt.Sprintf("method not supported: %s", req.Method),
		})
		if err != nil {
			slog.Warn("Failed to reject daemon request", "method", req.Method, "error", err)
		}
		return
	}

	if req.Method != proto.NotificationReceive {
		slog.Debug("Ignoring notification", "method", req.Method)
		return
	}

	var params proto.ReceiveParams
	if req.Params == nil {
		slog.Warn("Receive notification without params")
		return
	}
	if err := json.Unmarshal(*req.Params, &params); err != nil {
		slog.Warn("Invalid receive notification", "error", err, "data", string(*req.Params))
		return
	}
	key, err := subscriptionKey(params.Subscription)
	if err != nil {
		slog.Debug("Receive notification without subscription", "error", err)
		return
	}
	c.dispatch(key, params.Result)
}

func (c *Client) dispatch(key string, payload json.RawMessage) {
	c.subMu.Lock()
	sub, ok := c.subs[key]
	if !ok {
		if c.orphanCount >= maxOrphans {
			c.subMu.Unlock()
			slog.Warn("Dropping notification for unknown subscription", "subscription", key)
			c.metrics.ObserveDrop("orphan_overflow")
			return
		}
		c.orphans[key] = append(c.orphans[key], payload)
		c.orphanCount++
		c.subMu.Unlock()
		return
	}
	c.subMu.Unlock()

	sub.push(payload)
}

func (c *Client) call(ctx context.Context, method string, params, result any) error {
	err := c.conn.Call(ctx, method, params, result)
	c.metrics.ObserveCall(method, err)
	if err == nil {
		return nil
	}

	var rpcErr *jsonrpc2.Error
	if errors.As(err, &rpcErr) {
		callErr := &CallError{Method: method, Code: rpcErr.Code, Message: rpcErr.Message}
		if rpcErr.Data != nil {
			callErr.Data = string(*rpcErr.Data)
		}
		return callErr
	}
	return fmt.Errorf("%s: %w", method, err)
}

// Send delivers a message and returns the raw result, which carries the
// timestamp the daemon assigned.
func (c *Client) Send(ctx context.Context, params proto.SendParams) (json.RawMessage, error) {
	if params.Attachments == nil {
		params.Attachments = []string{}
	}
	var result json.RawMessage
	if err := c.call(ctx, proto.MethodSend, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) SendReaction(ctx context.Context, params proto.ReactionParams) error {
	return c.call(ctx, proto.MethodSendReaction, params, nil)
}

func (c *Client) SendReceipt(ctx context.Context, params proto.ReceiptParams) error {
	return c.call(ctx, proto.MethodSendReceipt, params, nil)
}

func (c *Client) SendTyping(ctx context.Context, params proto.TypingParams) error {
	return c.call(ctx, proto.MethodSendTyping, params, nil)
}

// SubscribeReceive opens the stream of inbound messages.
func (c *Client) SubscribeReceive(ctx context.Context) (*Subscription, error) {
	var id json.RawMessage
	if err := c.call(ctx, proto.MethodSubscribeReceive, struct{}{}, &id); err != nil {
		return nil, err
	}
	key, err := subscriptionKey(id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", proto.MethodSubscribeReceive, err)
	}

	sub := newSubscription(c, id, key)

	c.subMu.Lock()
	if c.disconnected {
		c.subMu.Unlock()
		sub.close()
		return sub, nil
	}
	c.subs[key] = sub
	early := c.orphans[key]
	delete(c.orphans, key)
	c.orphanCount -= len(early)
	c.subMu.Unlock()

	for _, payload := range early {
		sub.push(payload)
	}
	slog.Info("Subscribed to daemon events", "subscription", key, "buffered", len(early))
	return sub, nil
}

func (c *Client) unregister(key string) {
	c.subMu.Lock()
	delete(c.subs, key)
	c.subMu.Unlock()
}
