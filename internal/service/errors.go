package service

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"cdn-proxy-go/internal/model"
)

// UpstreamHTTPError is returned when the upstream answered with a non-2xx
// status. The proxy replies with the same status.
type UpstreamHTTPError struct {
	Route      model.RouteKind
	StatusCode int
	Status     string
}

func (e *UpstreamHTTPError) Error() string {
	return fmt.Sprintf("%s: upstream returned %d %s", e.Route, e.StatusCode, e.StatusText())
}

// StatusText returns the upstream reason phrase, falling back to the
// standard text for the code.
func (e *UpstreamHTTPError) StatusText() string {
	text := strings.TrimSpace(strings.TrimPrefix(e.Status, strconv.Itoa(e.StatusCode)))
	if text == "" {
		text = http.StatusText(e.StatusCode)
	}
	return text
}

// UpstreamUnreachableError is returned when no usable reply was obtained
// before response headers were committed: connect or TLS failure, timeout,
// a redirect outside the allowlist, or a body that failed before its first
// byte could be relayed.
type UpstreamUnreachableError struct {
	Route   model.RouteKind
	Timeout bool
	Err     error
}

func (e *UpstreamUnreachableError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: upstream timed out: %v", e.Route, e.Err)
	}
	return fmt.Sprintf("%s: upstream unreachable: %v", e.Route, e.Err)
}

func (e *UpstreamUnreachableError) Unwrap() error { return e.Err }

// MidStreamTransferError is returned by Pipe when the transfer stops after
// headers were sent. The response cannot be changed any more; the connection
// is closed and the client sees a truncated body.
type MidStreamTransferError struct {
	Route      model.RouteKind
	Written    int64
	ClientGone bool
	Err        error
}

func (e *MidStreamTransferError) Error() string {
	if e.ClientGone {
		return fmt.Sprintf("%s: client went away after %d bytes: %v", e.Route, e.Written, e.Err)
	}
	return fmt.Sprintf("%s: transfer failed after %d bytes: %v", e.Route, e.Written, e.Err)
}

func (e *MidStreamTransferError) Unwrap() error { return e.Err }
