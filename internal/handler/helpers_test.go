package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"cdn-proxy-go/internal/client"
	"cdn-proxy-go/internal/config"
	"cdn-proxy-go/internal/metrics"
	"cdn-proxy-go/internal/resolver"
	"cdn-proxy-go/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConfig points every upstream origin at base.
func testConfig(base string) *config.Config {
	cfg := config.Default()
	cfg.Upstream.PackageOrigin = base
	cfg.Upstream.FontAPIOrigin = base
	cfg.Upstream.FontAssetOrigin = base
	cfg.Upstream.AllowedHosts = []string{"127.0.0.1"}
	return cfg
}

// newTestEcho builds the full route table in front of upstream.
func newTestEcho(t *testing.T, upstream http.Handler) (*echo.Echo, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	cfg := testConfig(srv.URL)
	r, err := resolver.New(cfg)
	if err != nil {
		t.Fatalf("resolver.New() error = %v", err)
	}
	m := metrics.New()
	svc := service.NewProxyService(r, client.NewUpstreamClient(cfg, testLogger(), m), cfg, testLogger(), m)

	e := echo.New()
	RegisterRoutes(e, NewProxyHandler(svc, testLogger()), NewHealthHandler(cfg, "test"))
	RegisterMetrics(e, cfg.Metrics.Path, m)
	return e, srv
}

func get(e *echo.Echo, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}
