package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedFrame is returned when a frame is not valid UTF-8 text.
	ErrMalformedFrame = errors.New("malformed frame: invalid UTF-8")

	// ErrTruncatedFrame is returned when the stream ends in the middle of a frame.
	ErrTruncatedFrame = errors.New("stream ended with a partial frame")

	// ErrClosed is the terminal receive result once the peer has closed the stream.
	ErrClosed = errors.New("transport closed")
)

// TransportError wraps a failure of the underlying connection. The cause is
// kept both for errors.Is/As and, in verbose form, for diagnostics.
type TransportError struct {
	Op    string
	Err   error
	Debug string
}

func newTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err, Debug: fmt.Sprintf("%#v", err)}
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
