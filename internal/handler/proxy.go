package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"cdn-proxy-go/internal/model"
	"cdn-proxy-go/internal/resolver"
	"cdn-proxy-go/internal/service"
)

// Route prefixes. The wildcard routes take the raw escaped path after the
// prefix so that percent-encoding reaches the resolver untouched.
const (
	PackagePrefix         = "/jsdelivr/"
	PackageShortcutPrefix = "/package/"
	FontCSSPrefix         = "/fonts/"
	FontAssetPrefix       = "/fonts/s/"
)

// ProxyHandler serves the CDN proxy routes.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Package serves /jsdelivr/*: any path on the package CDN.
func (h *ProxyHandler) Package(c echo.Context) error {
	return h.serve(c, h.request(c, model.RoutePackageFile, wildcard(c, PackagePrefix), ""))
}

// PackageShortcut serves /package/<name>@<version>/<file>, an npm shorthand.
func (h *ProxyHandler) PackageShortcut(c echo.Context) error {
	return h.serve(c, h.request(c, model.RoutePackageShortcut, wildcard(c, PackageShortcutPrefix), ""))
}

// FontCSS serves /fonts/css and /fonts/css2. The query string is forwarded
// byte for byte.
func (h *ProxyHandler) FontCSS(c echo.Context) error {
	version := strings.TrimPrefix(c.Path(), FontCSSPrefix)
	return h.serve(c, h.request(c, model.RouteFontCSS, []string{version}, c.Request().URL.RawQuery))
}

// FontAsset serves /fonts/s/*, the font files referenced by rewritten CSS.
func (h *ProxyHandler) FontAsset(c echo.Context) error {
	return h.serve(c, h.request(c, model.RouteFontAsset, wildcard(c, FontAssetPrefix), ""))
}

func (h *ProxyHandler) request(c echo.Context, kind model.RouteKind, params []string, rawQuery string) *model.ProxyRequest {
	req := c.Request()
	return &model.ProxyRequest{
		Ctx:             req.Context(),
		Kind:            kind,
		PathParams:      params,
		RawQuery:        rawQuery,
		UserAgent:       req.UserAgent(),
		InboundHost:     req.Host,
		InboundProtocol: c.Scheme(),
	}
}

// wildcard splits the escaped path after prefix into segments.
func wildcard(c echo.Context, prefix string) []string {
	return strings.Split(strings.TrimPrefix(c.Request().URL.EscapedPath(), prefix), "/")
}

func (h *ProxyHandler) serve(c echo.Context, pr *model.ProxyRequest) error {
	out, err := h.service.Forward(pr)
	if err != nil {
		return h.writeError(c, pr.Kind, err)
	}

	res := c.Response()
	out.Header.CopyTo(res.Header())

	if out.Stream == nil {
		return c.Blob(out.StatusCode, out.Header.Get(echo.HeaderContentType), out.Body)
	}

	res.WriteHeader(out.StatusCode)
	if _, err := h.service.Pipe(pr.Ctx, pr.Kind, res, res.Flush, out.Stream); err != nil {
		// The status line is gone. Abort so the client sees a broken
		// transfer instead of a short body that looks complete.
		panic(http.ErrAbortHandler)
	}
	return nil
}

// writeError maps relay failures onto the JSON error body.
func (h *ProxyHandler) writeError(c echo.Context, kind model.RouteKind, err error) error {
	c.Response().Header().Set(echo.HeaderAccessControlAllowOrigin, "*")

	var (
		invalid     *resolver.InvalidRouteError
		httpErr     *service.UpstreamHTTPError
		unreachable *service.UpstreamUnreachableError
	)
	switch {
	case errors.As(err, &invalid):
		h.logger.Info("rejected request path", "route", kind.String(), "reason", invalid.Reason)
		return c.JSON(http.StatusBadRequest, model.ErrorBody{
			Error:   "invalid request path",
			Message: invalid.Reason,
			Status:  http.StatusBadRequest,
		})

	case errors.As(err, &httpErr):
		return c.JSON(httpErr.StatusCode, model.ErrorBody{
			Error:   failureLabel(kind),
			Message: httpErr.StatusText(),
			Status:  httpErr.StatusCode,
		})

	case errors.As(err, &unreachable):
		return c.JSON(http.StatusInternalServerError, model.ErrorBody{
			Error:   "network request failed",
			Message: "cannot reach " + upstreamName(kind) + ": " + unreachable.Err.Error(),
			Timeout: unreachable.Timeout,
		})

	default:
		h.logger.Error("proxy error", "route", kind.String(), "error", err)
		return c.JSON(http.StatusInternalServerError, model.ErrorBody{
			Error:   "server error",
			Message: err.Error(),
		})
	}
}

func failureLabel(kind model.RouteKind) string {
	switch kind {
	case model.RouteFontCSS:
		return "failed to fetch font stylesheet"
	case model.RouteFontAsset:
		return "failed to fetch font file"
	default:
		return "failed to fetch package content"
	}
}

func upstreamName(kind model.RouteKind) string {
	switch kind {
	case model.RouteFontCSS, model.RouteFontAsset:
		return "Google Fonts"
	default:
		return "jsDelivr"
	}
}
