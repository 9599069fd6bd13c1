package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cdn-proxy-go/internal/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(e *echo.Echo, proxy *ProxyHandler, health *HealthHandler) {
	e.GET("/", Index)
	e.GET("/healthz", health.Healthz)
	e.GET("/proxy/status", health.Status)

	e.GET(PackagePrefix+"*", proxy.Package)
	e.GET(PackageShortcutPrefix+"*", proxy.PackageShortcut)
	e.GET(FontCSSPrefix+"css", proxy.FontCSS)
	e.GET(FontCSSPrefix+"css2", proxy.FontCSS)
	e.GET(FontAssetPrefix+"*", proxy.FontAsset)
}

// RegisterMetrics exposes the registry in the Prometheus text format at path.
func RegisterMetrics(e *echo.Echo, path string, m *metrics.Metrics) {
	e.GET(path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
}
