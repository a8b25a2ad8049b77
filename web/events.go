package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

var errNotConnected = errors.New("listener never connected")

// wsListener is a websocket peer receiving a copy of every relayed event. It
// holds its broker slot from before the upgrade; Send waits until attach.
type wsListener struct {
	id    string
	ready chan struct{}
	conn  *websocket.Conn
	mu    sync.Mutex
}

func newWSListener() *wsListener {
	return &wsListener{id: "ws-" + uuid.NewString(), ready: make(chan struct{})}
}

// attach hands over the upgraded connection, or nil if the upgrade failed.
func (l *wsListener) attach(conn *websocket.Conn) {
	l.conn = conn
	close(l.ready)
}

func (l *wsListener) ID() string {
	return l.id
}

func (l *wsListener) Send(event json.RawMessage) error {
	<-l.ready
	if l.conn == nil {
		return errNotConnected
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := l.conn.WriteMessage(websocket.TextMessage, event); err != nil {
		return err
	}

	slog.Debug("Sent WebSocket event", "to", l.id, "size", len(event))
	return nil
}

// HandleEvents upgrades the request and streams events until the peer goes away.
// Anything the peer sends is discarded.
func (g *Gateway) HandleEvents(wr http.ResponseWriter, r *http.Request) {
	listener := newWSListener()
	if err := g.broker.Subscribe(listener); err != nil {
		slog.Warn("Rejecting event listener", "remote_addr", r.RemoteAddr, "error", err)
		http.Error(wr, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer g.broker.Unsubscribe(listener)

	conn, err := g.upgrader.Upgrade(wr, r, nil)
	listener.attach(conn)
	if err != nil {
		slog.Error("Failed to upgrade connection", "error", err)
		return
	}
	slog.Info("Event listener connected", "addr", r.RemoteAddr, "id", listener.id)

	defer func() {
		conn.Close()
		slog.Info("Event listener disconnected", "addr", r.RemoteAddr, "id", listener.id)
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("WebSocket connection error", "addr", r.RemoteAddr, "error", err)
			}
			return
		}
	}
}
