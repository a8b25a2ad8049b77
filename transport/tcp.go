package transport

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
)

// DefaultMaxFrameSize bounds a single frame when no limit is configured.
const DefaultMaxFrameSize = 8 << 20

// LineConn frames a byte stream with the line codec.
type LineConn struct {
	rwc     io.ReadWriteCloser
	scanner *bufio.Scanner

	wmu  sync.Mutex
	wbuf []byte
}

func NewLineConn(rwc io.ReadWriteCloser, maxFrameSize int) *LineConn {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	scanner := bufio.NewScanner(rwc)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	scanner.Split(Decode)
	return &LineConn{rwc: rwc, scanner: scanner}
}

// Dial opens a TCP connection to a line-framed JSON-RPC daemon.
func Dial(ctx context.Context, addr string, maxFrameSize int) (*LineConn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	slog.Info("Connected to daemon", "addr", addr, "local", conn.LocalAddr().String())
	return NewLineConn(conn, maxFrameSize), nil
}

func (c *LineConn) WriteFrame(frame string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	c.wbuf = Encode(c.wbuf[:0], frame)
	_, err := c.rwc.Write(c.wbuf)
	return err
}

func (c *LineConn) ReadFrame() (string, error) {
	if c.scanner.Scan() {
		return string(c.scanner.Bytes()), nil
	}
	if err := c.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (c *LineConn) Close() error {
	return c.rwc.Close()
}
