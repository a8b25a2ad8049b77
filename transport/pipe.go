package transport

import (
	"io"
	"sync"
)

// PipeEnd is one side of an in-memory frame pipe.
type PipeEnd struct {
	in   <-chan string
	out  chan<- string
	done chan struct{}
	peer *PipeEnd
	once sync.Once
}

// NewPipe returns two connected in-memory frame endpoints. Frames written to
// one end are read from the other in order; closing an end makes the peer's
// ReadFrame return io.EOF.
func NewPipe() (*PipeEnd, *PipeEnd) {
	ab := make(chan string)
	ba := make(chan string)
	a := &PipeEnd{in: ba, out: ab, done: make(chan struct{})}
	b := &PipeEnd{in: ab, out: ba, done: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

func (p *PipeEnd) WriteFrame(frame string) error {
	select {
	case <-p.done:
		return io.ErrClosedPipe
	case <-p.peer.done:
		return io.ErrClosedPipe
	default:
	}

	select {
	case p.out <- frame:
		return nil
	case <-p.done:
		return io.ErrClosedPipe
	case <-p.peer.done:
		return io.ErrClosedPipe
	}
}

func (p *PipeEnd) ReadFrame() (string, error) {
	select {
	case frame := <-p.in:
		return frame, nil
	case <-p.peer.done:
		return "", io.EOF
	case <-p.done:
		return "", io.ErrClosedPipe
	}
}

func (p *PipeEnd) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
