// Package model defines shared types for the proxy.
package model

import (
	"context"
	"io"
	"net/http"
	"time"
)

// RouteKind is the closed set of proxy endpoints.
type RouteKind int

const (
	RoutePackageFile RouteKind = iota + 1
	RoutePackageShortcut
	RouteFontCSS
	RouteFontAsset
)

// String returns the label used in logs and metrics.
func (k RouteKind) String() string {
	switch k {
	case RoutePackageFile:
		return "package_file"
	case RoutePackageShortcut:
		return "package_shortcut"
	case RouteFontCSS:
		return "font_css"
	case RouteFontAsset:
		return "font_asset"
	default:
		return "unknown"
	}
}

// ProxyRequest is an inbound request after routing, before resolution.
//
// PathParams holds the route captures in order. For the wildcard routes it is
// the escaped path suffix split on "/"; for FontCSS it is the single API
// version ("css" or "css2"). RawQuery is kept verbatim so that repeated keys
// and their order survive forwarding.
type ProxyRequest struct {
	Ctx             context.Context
	Kind            RouteKind
	PathParams      []string
	RawQuery        string
	UserAgent       string
	InboundHost     string
	InboundProtocol string
}

// Policy is the per-route caching and content configuration. It is produced
// once by the resolver and never modified afterwards.
type Policy struct {
	CacheMaxAgeSeconds  int
	Immutable           bool
	ContentTypeOverride string
	RewriteBody         bool
	CORSOpen            bool
	Timeout             time.Duration
}

// UpstreamTarget is the absolute URL of the upstream resource.
type UpstreamTarget struct {
	URL string
}

// UpstreamResponse is the raw upstream reply. The body is owned by whoever
// holds the response and must be closed exactly once.
type UpstreamResponse struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       io.ReadCloser
}

// ChunkIterator yields the upstream body one chunk at a time.
// Next returns io.EOF after the last chunk.
type ChunkIterator interface {
	Next() ([]byte, error)
	io.Closer
}

// OutboundResponse is written to the client exactly once. Exactly one of
// Body and Stream is set.
type OutboundResponse struct {
	StatusCode int
	Header     *Header
	Body       []byte
	Stream     ChunkIterator
}

// ErrorBody is the JSON shape of every proxy failure response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
	Timeout bool   `json:"timeout,omitempty"`
}
