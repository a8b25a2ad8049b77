package transport

import (
	"bytes"
	"unicode/utf8"
)

// Delimiter terminates every frame on the wire.
const Delimiter byte = '\n'

// Decode is a bufio.SplitFunc that yields one newline-terminated frame at a time.
//
// When data holds no delimiter it asks for more data by returning (0, nil, nil)
// and leaves the buffer untouched. The delimiter is stripped from the returned
// token. A frame that is not valid UTF-8 fails with ErrMalformedFrame; there is
// no way to resynchronise after that, so the caller must drop the connection.
func Decode(data []byte, atEOF bool) (advance int, token []byte, err error) {
	i := bytes.IndexByte(data, Delimiter)
	if i < 0 {
		if atEOF && len(data) > 0 {
			return 0, nil, ErrTruncatedFrame
		}
		return 0, nil, nil
	}

	frame := data[:i]
	if !utf8.Valid(frame) {
		return 0, nil, ErrMalformedFrame
	}
	return i + 1, frame, nil
}

// Encode appends frame and a single delimiter to dst. No escaping is done, so
// frame must not contain the delimiter itself.
func Encode(dst []byte, frame string) []byte {
	dst = append(dst, frame...)
	return append(dst, Delimiter)
}
