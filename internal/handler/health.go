package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"cdn-proxy-go/internal/config"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// StatusResponse is the body of GET /proxy/status.
type StatusResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Upstreams map[string]string `json:"upstreams"`
}

// Status returns the build version and the configured upstream origins.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{
		Status:  "ok",
		Version: string(h.version),
		Upstreams: map[string]string{
			"package":    h.cfg.Upstream.PackageOrigin,
			"font_api":   h.cfg.Upstream.FontAPIOrigin,
			"font_asset": h.cfg.Upstream.FontAssetOrigin,
		},
	})
}
