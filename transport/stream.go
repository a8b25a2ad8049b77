package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sourcegraph/jsonrpc2"
)

// Sender is the outgoing half of the adapter.
type Sender struct {
	sink FrameSink
}

func NewSender(sink FrameSink) *Sender {
	return &Sender{sink: sink}
}

// Send writes one frame. It returns once the sink has accepted it.
func (s *Sender) Send(text string) error {
	if err := s.sink.WriteFrame(text); err != nil {
		return newTransportError("send", err)
	}
	return nil
}

// WriteObject encodes obj as a single JSON frame. encoding/json escapes
// control characters, so the output never contains the delimiter.
func (s *Sender) WriteObject(obj interface{}) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return s.Send(string(data))
}

func (s *Sender) Close() error {
	if err := s.sink.Close(); err != nil {
		return newTransportError("close", err)
	}
	return nil
}

// Receiver is the incoming half of the adapter. It remembers the error that
// ended the stream.
type Receiver struct {
	source FrameSource

	mu  sync.Mutex
	err error
}

func NewReceiver(source FrameSource) *Receiver {
	return &Receiver{source: source}
}

// Receive waits for the next frame. A clean end of stream is reported as
// ErrClosed; anything else is wrapped in a TransportError.
func (r *Receiver) Receive() (string, error) {
	frame, err := r.source.ReadFrame()
	if err == nil {
		return frame, nil
	}
	if errors.Is(err, io.EOF) {
		err = ErrClosed
	} else {
		err = newTransportError("receive", err)
	}

	r.fail(err)
	return "", err
}

func (r *Receiver) fail(err error) {
	r.mu.Lock()
	if r.err == nil {
		r.err = err
	}
	r.mu.Unlock()
}

// Err returns the error that ended the stream, or nil while it is open.
func (r *Receiver) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// ReadObject decodes the next frame into v. A clean close is reported as
// io.EOF, which jsonrpc2 treats as an orderly hang up.
func (r *Receiver) ReadObject(v interface{}) error {
	frame, err := r.Receive()
	if errors.Is(err, ErrClosed) {
		return io.EOF
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(frame), v); err != nil {
		err = fmt.Errorf("decode frame: %w", err)
		r.fail(err)
		return err
	}
	return nil
}

// Stream joins both halves into the object stream jsonrpc2 runs on. It adds
// no queueing: every read and write goes straight to the frame connection.
type Stream struct {
	*Sender
	*Receiver
}

var _ jsonrpc2.ObjectStream = (*Stream)(nil)

func NewStream(sink FrameSink, source FrameSource) *Stream {
	return &Stream{Sender: NewSender(sink), Receiver: NewReceiver(source)}
}
