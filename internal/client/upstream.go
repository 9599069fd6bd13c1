// Package client provides the upstream HTTP client shared by all proxy routes.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"cdn-proxy-go/internal/config"
	"cdn-proxy-go/internal/metrics"
	"cdn-proxy-go/internal/model"
)

// acceptEncoding is sent on every upstream request. Because it is set
// explicitly the transport does not decode bodies; encoded bytes are relayed
// as-is, and the CSS rewrite path decodes them itself.
const acceptEncoding = "gzip, deflate, br"

const maxRedirects = 10

// UpstreamClient sends GET requests to the fixed upstream origins. It is
// built once at startup and shared by every request.
type UpstreamClient struct {
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewUpstreamClient creates an UpstreamClient with connection pooling.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
//
// Deadlines are per request (see Fetch), so the http.Client itself has none.
// Redirects are followed only while they stay inside upstream.allowed_hosts.
func NewUpstreamClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *UpstreamClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true,
		ForceAttemptHTTP2:   true,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	allowed := cfg.Upstream.AllowedHosts
	return &UpstreamClient{
		httpClient: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				if !config.HostAllowed(allowed, req.URL.Hostname()) {
					return fmt.Errorf("redirect to %q is outside the upstream allowlist", req.URL.Hostname())
				}
				return nil
			},
		},
		userAgent: cfg.Upstream.UserAgent,
		logger:    logger.With("component", "upstream_client"),
		metrics:   m,
	}
}

// Fetch issues a GET for target. The inbound User-Agent is forwarded when
// non-empty, otherwise the configured default is sent.
//
// The provided context controls the lifetime of the whole exchange, body
// included: cancel it (or let its deadline pass) to abort the transfer.
// The caller is responsible for closing the response body.
func (c *UpstreamClient) Fetch(ctx context.Context, route model.RouteKind, target, userAgent string) (*model.UpstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	if userAgent == "" {
		userAgent = c.userAgent
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Encoding", acceptEncoding)
	req.Header.Set("Accept", "*/*")

	c.logger.Debug("upstream request",
		"route", route.String(),
		"host", req.URL.Host,
		"path", req.URL.Path,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:bodyclose // body ownership transfers to caller via UpstreamResponse
	duration := time.Since(start).Seconds()

	if c.metrics != nil {
		c.metrics.UpstreamDuration.WithLabelValues(route.String()).Observe(duration)
	}
	if err != nil {
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	if c.metrics != nil {
		c.metrics.UpstreamResponses.WithLabelValues(route.String(), strconv.Itoa(resp.StatusCode)).Inc()
	}

	return &model.UpstreamResponse{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

// IsTimeout reports whether err was caused by a deadline or a network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
