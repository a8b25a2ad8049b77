// Package transport carries newline-delimited text frames over a byte stream
// and adapts them to the object stream a JSON-RPC connection consumes.
package transport

// FrameSink accepts outgoing frames. Close signals the end of output.
type FrameSink interface {
	WriteFrame(frame string) error
	Close() error
}

// FrameSource yields incoming frames in wire order. It returns io.EOF once the
// peer has finished sending.
type FrameSource interface {
	ReadFrame() (string, error)
}

// FrameConn is a duplex frame connection.
type FrameConn interface {
	FrameSink
	FrameSource
}
