// Package stream turns upstream bodies into pull-based chunk iterators and
// decodes content for the buffered rewrite path.
package stream

import (
	"context"
	"errors"
	"io"
	"sync"

	"go.uber.org/multierr"
)

// DefaultChunkSize matches the buffer size io.Copy uses.
const DefaultChunkSize = 32 * 1024

// Chunks is a cancellable iterator over a body. Each call to Next returns the
// bytes read by one Read on the body, in order. Chunks is not safe for
// concurrent use; one request owns one iterator.
type Chunks struct {
	ctx     context.Context
	body    io.ReadCloser
	buf     []byte
	err     error
	release func()

	closeOnce sync.Once
	closeErr  error
}

// NewChunks wraps body. release, if non-nil, runs once on Close after the
// body is closed; callers use it to cancel the per-request context.
func NewChunks(ctx context.Context, body io.ReadCloser, size int, release func()) *Chunks {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &Chunks{
		ctx:     ctx,
		body:    body,
		buf:     make([]byte, size),
		release: release,
	}
}

// Next returns the next chunk. It returns io.EOF after the last chunk and
// the context's error once the context is done. The returned slice is only
// valid until the next call.
func (c *Chunks) Next() ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	for {
		if err := c.ctx.Err(); err != nil {
			c.err = err
			return nil, err
		}
		n, err := c.body.Read(c.buf)
		if err != nil {
			// Keep the error for the following call so the bytes that came
			// with it are delivered first.
			c.err = err
			if errors.Is(err, io.EOF) {
				c.err = io.EOF
			} else if ctxErr := c.ctx.Err(); ctxErr != nil {
				c.err = ctxErr
			}
		}
		if n > 0 {
			return c.buf[:n], nil
		}
		if c.err != nil {
			return nil, c.err
		}
	}
}

// Close closes the body and releases the request context. It is safe to
// call more than once.
func (c *Chunks) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.body.Close()
		if c.release != nil {
			c.release()
		}
		if c.err == nil {
			c.err = errClosed
		}
	})
	return c.closeErr
}

var errClosed = errors.New("stream: iterator closed")

// readCloser joins a decoding reader with the body it reads from.
type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r *readCloser) Close() error {
	var err error
	for _, c := range r.closers {
		err = multierr.Append(err, c.Close())
	}
	return err
}
