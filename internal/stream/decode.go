package stream

import (
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
)

// ErrUnsupportedEncoding is returned for a Content-Encoding Decode cannot undo.
var ErrUnsupportedEncoding = errors.New("unsupported content encoding")

// ErrBodyTooLarge is returned by ReadAllLimit when the body exceeds the limit.
var ErrBodyTooLarge = errors.New("body exceeds size limit")

// Decode wraps body so that reads return identity-encoded bytes. Closing the
// result closes both the decoder and body.
func Decode(encoding string, body io.ReadCloser) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return body, nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return &readCloser{Reader: zr, closers: []io.Closer{zr, body}}, nil
	case "deflate":
		zr, err := zlib.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("deflate: %w", err)
		}
		return &readCloser{Reader: zr, closers: []io.Closer{zr, body}}, nil
	case "br":
		return &readCloser{Reader: brotli.NewReader(body), closers: []io.Closer{body}}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, encoding)
	}
}

// ReadAllLimit reads r to EOF, failing with ErrBodyTooLarge once more than
// limit bytes have been seen. A limit <= 0 disables the check.
func ReadAllLimit(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, limit)
	}
	return data, nil
}
