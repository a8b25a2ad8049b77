package client

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/mbocsi/sigbridge/transport"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

type daemonHandler func(d *fakeDaemon, req rpcRequest) (any, *rpcError)

// fakeDaemon speaks the daemon side of the line protocol over an in-memory pipe.
type fakeDaemon struct {
	t       *testing.T
	end     *transport.PipeEnd
	handler daemonHandler
	async   bool

	mu        sync.Mutex
	calls     []rpcRequest
	responses chan rpcRequest
}

func newFakeDaemon(t *testing.T, handler daemonHandler) (*fakeDaemon, *Client) {
	t.Helper()
	clientEnd, daemonEnd := transport.NewPipe()
	d := &fakeDaemon{
		t:         t,
		end:       daemonEnd,
		handler:   handler,
		responses: make(chan rpcRequest, 8),
	}
	go d.serve()

	c := New(context.Background(), clientEnd)
	t.Cleanup(func() {
		c.Close()
		daemonEnd.Close()
	})
	return d, c
}

func (d *fakeDaemon) serve() {
	for {
		frame, err := d.end.ReadFrame()
		if err != nil {
			return
		}
		var req rpcRequest
		if err := json.Unmarshal([]byte(frame), &req); err != nil {
			d.t.Errorf("daemon received invalid JSON %q: %v", frame, err)
			return
		}
		if req.Method == "" {
			d.responses <- req
			continue
		}

		d.mu.Lock()
		d.calls = append(d.calls, req)
		d.mu.Unlock()

		if len(req.ID) == 0 {
			continue
		}
		if d.async {
			go d.respond(req)
		} else {
			d.respond(req)
		}
	}
}

func (d *fakeDaemon) respond(req rpcRequest) {
	result, rerr := d.handler(d, req)
	msg := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if rerr != nil {
		msg["error"] = rerr
	} else {
		msg["result"] = result
	}
	d.write(msg)
}

func (d *fakeDaemon) notify(method string, params any) {
	d.write(map[string]any{"jsonrpc": "2.0", "method": method, "params": params})
}

func (d *fakeDaemon) write(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		d.t.Errorf("marshal daemon message: %v", err)
		return
	}
	_ = d.end.WriteFrame(string(data))
}

func (d *fakeDaemon) hangUp() {
	d.end.Close()
}

func (d *fakeDaemon) callsTo(method string) []rpcRequest {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []rpcRequest
	for _, c := range d.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}
