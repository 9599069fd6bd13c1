// Package service implements the stream relay: it resolves a routed request,
// fetches the upstream resource and hands back a response ready to be
// written, either streamed chunk by chunk or buffered after a CSS rewrite.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"

	"cdn-proxy-go/internal/client"
	"cdn-proxy-go/internal/config"
	"cdn-proxy-go/internal/metrics"
	"cdn-proxy-go/internal/model"
	"cdn-proxy-go/internal/resolver"
	"cdn-proxy-go/internal/stream"
)

// ProxyService relays requests to the upstream CDNs. It is stateless between
// requests and safe for concurrent use.
type ProxyService struct {
	resolver        *resolver.Resolver
	client          *client.UpstreamClient
	logger          *slog.Logger
	metrics         *metrics.Metrics
	rewriteMaxBytes int64
	chunkSize       int
	assetPrefixes   []string

	// Client disconnects are routine for large assets; log them sparingly.
	goneLog *rate.Sometimes
}

// NewProxyService creates a ProxyService. The metrics parameter is optional.
func NewProxyService(r *resolver.Resolver, c *client.UpstreamClient, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *ProxyService {
	return &ProxyService{
		resolver:        r,
		client:          c,
		logger:          logger.With("component", "relay"),
		metrics:         m,
		rewriteMaxBytes: cfg.Upstream.RewriteMaxBytes,
		chunkSize:       stream.DefaultChunkSize,
		assetPrefixes:   assetPrefixes(r.FontAssetOrigin()),
		goneLog:         &rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
}

// Forward resolves pr and relays it. Resolution failures are returned as
// *resolver.InvalidRouteError before any upstream traffic.
func (s *ProxyService) Forward(pr *model.ProxyRequest) (*model.OutboundResponse, error) {
	target, policy, err := s.resolver.Resolve(pr.Kind, pr.PathParams, pr.RawQuery)
	if err != nil {
		return nil, err
	}
	return s.Relay(pr, target, policy)
}

// Relay fetches target and builds the outbound response.
//
// On success with a streamed body, the first chunk has already been read:
// any failure up to that point is reported here, while the status can still
// be chosen. The caller must write the response and then Close the stream
// (Pipe does both).
func (s *ProxyService) Relay(pr *model.ProxyRequest, target model.UpstreamTarget, policy model.Policy) (*model.OutboundResponse, error) {
	parent := pr.Ctx
	if parent == nil {
		parent = context.Background()
	}
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if policy.Timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, policy.Timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}

	log := s.logger.With("route", pr.Kind.String(), "upstream", target.URL)
	log.Debug("fetch start", "timeout", policy.Timeout)
	start := time.Now()

	resp, err := s.client.Fetch(ctx, pr.Kind, target.URL, pr.UserAgent)
	if err != nil {
		cancel()
		timeout := client.IsTimeout(err)
		log.Error("upstream unreachable", "error", err, "timeout", timeout)
		s.countFailure(pr.Kind, metrics.StageBeforeHeaders)
		return nil, &UpstreamUnreachableError{Route: pr.Kind, Timeout: timeout, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		cancel()
		log.Warn("upstream error status", "status", resp.StatusCode)
		return nil, &UpstreamHTTPError{Route: pr.Kind, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	log = log.With("status", resp.StatusCode)
	if policy.RewriteBody {
		defer cancel()
		return s.buffered(pr, resp, policy, log, start)
	}
	return s.streamed(ctx, cancel, pr, resp, policy, log, start)
}

func (s *ProxyService) streamed(ctx context.Context, cancel context.CancelFunc, pr *model.ProxyRequest, resp *model.UpstreamResponse, policy model.Policy, log *slog.Logger, start time.Time) (*model.OutboundResponse, error) {
	chunks := stream.NewChunks(ctx, resp.Body, s.chunkSize, cancel)
	first, err := chunks.Next()
	if err != nil && !errors.Is(err, io.EOF) {
		_ = chunks.Close()
		timeout := client.IsTimeout(err)
		log.Error("upstream unreachable", "error", err, "timeout", timeout, "stage", "first_chunk")
		s.countFailure(pr.Kind, metrics.StageBeforeHeaders)
		return nil, &UpstreamUnreachableError{Route: pr.Kind, Timeout: timeout, Err: fmt.Errorf("read body: %w", err)}
	}

	size := "unknown"
	if n, perr := strconv.ParseUint(resp.Header.Get("Content-Length"), 10, 64); perr == nil {
		size = humanize.Bytes(n)
	}
	log.Info("fetch complete",
		"duration_ms", time.Since(start).Milliseconds(),
		"size", size,
		"content_encoding", resp.Header.Get("Content-Encoding"),
	)

	return &model.OutboundResponse{
		StatusCode: resp.StatusCode,
		Header:     responseHeaders(policy, resp.Header, true),
		Stream:     &primed{first: first, firstErr: err, rest: chunks},
	}, nil
}

func (s *ProxyService) buffered(pr *model.ProxyRequest, resp *model.UpstreamResponse, policy model.Policy, log *slog.Logger, start time.Time) (*model.OutboundResponse, error) {
	body, err := stream.Decode(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		_ = resp.Body.Close()
		s.countFailure(pr.Kind, metrics.StageBeforeHeaders)
		log.Error("upstream unreachable", "error", err, "stage", "decode")
		return nil, &UpstreamUnreachableError{Route: pr.Kind, Err: err}
	}
	defer func() { _ = body.Close() }()

	raw, err := stream.ReadAllLimit(body, s.rewriteMaxBytes)
	if err != nil {
		timeout := client.IsTimeout(err)
		s.countFailure(pr.Kind, metrics.StageBeforeHeaders)
		log.Error("upstream unreachable", "error", err, "timeout", timeout, "stage", "read")
		return nil, &UpstreamUnreachableError{Route: pr.Kind, Timeout: timeout, Err: fmt.Errorf("read body: %w", err)}
	}

	out := []byte(rewriteAssetURLs(string(raw), s.assetPrefixes, publicBase(pr.InboundProtocol, pr.InboundHost)))

	header := responseHeaders(policy, resp.Header, false)
	header.Set("Content-Length", strconv.Itoa(len(out)))

	if s.metrics != nil {
		s.metrics.RelayedBytes.WithLabelValues(pr.Kind.String()).Add(float64(len(out)))
	}
	log.Info("fetch complete",
		"duration_ms", time.Since(start).Milliseconds(),
		"upstream_size", humanize.Bytes(uint64(len(raw))),
		"size", humanize.Bytes(uint64(len(out))),
	)

	return &model.OutboundResponse{
		StatusCode: resp.StatusCode,
		Header:     header,
		Body:       out,
	}, nil
}

// Pipe copies a streamed response body to w, calling flush after every
// chunk, and closes the stream. ctx is the inbound request context; once it
// is done the client is treated as gone.
//
// A nil error means the whole body was delivered. Any other error is a
// *MidStreamTransferError: headers are already out, so the caller can only
// abandon the connection.
func (s *ProxyService) Pipe(ctx context.Context, route model.RouteKind, w io.Writer, flush func(), it model.ChunkIterator) (int64, error) {
	defer func() { _ = it.Close() }()

	var written int64
	for {
		chunk, err := it.Next()
		if len(chunk) > 0 {
			n, werr := w.Write(chunk)
			written += int64(n)
			if werr != nil {
				return written, s.midStream(route, written, true, werr)
			}
			if flush != nil {
				flush()
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			gone := ctx != nil && ctx.Err() != nil
			return written, s.midStream(route, written, gone, err)
		}
	}

	if s.metrics != nil {
		s.metrics.RelayedBytes.WithLabelValues(route.String()).Add(float64(written))
	}
	s.logger.Debug("stream complete", "route", route.String(), "size", humanize.Bytes(uint64(written)))
	return written, nil
}

func (s *ProxyService) midStream(route model.RouteKind, written int64, gone bool, err error) error {
	if s.metrics != nil {
		s.metrics.RelayedBytes.WithLabelValues(route.String()).Add(float64(written))
	}
	stage := metrics.StageMidStream
	if gone {
		stage = metrics.StageClientGone
		s.goneLog.Do(func() {
			s.logger.Warn("client disconnected during transfer",
				"route", route.String(),
				"sent", humanize.Bytes(uint64(written)),
			)
		})
	} else {
		s.logger.Error("mid-stream transfer failed",
			"route", route.String(),
			"sent", humanize.Bytes(uint64(written)),
			"error", err,
			"timeout", client.IsTimeout(err),
		)
	}
	s.countFailure(route, stage)
	return &MidStreamTransferError{Route: route, Written: written, ClientGone: gone, Err: err}
}

func (s *ProxyService) countFailure(route model.RouteKind, stage string) {
	if s.metrics != nil {
		s.metrics.StreamFailures.WithLabelValues(route.String(), stage).Inc()
	}
}

// primed replays the chunk read by Relay before handing over to the rest of
// the iterator.
type primed struct {
	first    []byte
	firstErr error
	started  bool
	rest     model.ChunkIterator
}

func (p *primed) Next() ([]byte, error) {
	if !p.started {
		p.started = true
		if len(p.first) > 0 || p.firstErr != nil {
			return p.first, p.firstErr
		}
	}
	return p.rest.Next()
}

func (p *primed) Close() error { return p.rest.Close() }
