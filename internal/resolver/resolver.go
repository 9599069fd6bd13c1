// Package resolver maps a routed request onto an upstream URL and the
// caching/content policy for that route kind.
package resolver

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/net/idna"

	"cdn-proxy-go/internal/config"
	"cdn-proxy-go/internal/model"
)

// ErrInvalidRoute is matched by every *InvalidRouteError.
var ErrInvalidRoute = errors.New("invalid route")

// InvalidRouteError reports route parameters that cannot form an upstream URL.
type InvalidRouteError struct {
	Kind   model.RouteKind
	Reason string
}

func (e *InvalidRouteError) Error() string {
	return fmt.Sprintf("invalid %s route: %s", e.Kind, e.Reason)
}

func (e *InvalidRouteError) Unwrap() error { return ErrInvalidRoute }

func invalid(kind model.RouteKind, format string, args ...any) error {
	return &InvalidRouteError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Cache lifetimes per route family.
const (
	packageMaxAge   = 3600
	fontCSSMaxAge   = 86400
	fontAssetMaxAge = 31536000
)

const fontCSSContentType = "text/css; charset=utf-8"

// smallPackageExts are package files fetched under the small timeout budget.
var smallPackageExts = map[string]bool{
	".json": true, ".css": true, ".map": true, ".txt": true, ".md": true,
}

// Resolver builds upstream targets. It holds only immutable configuration and
// is safe for concurrent use.
type Resolver struct {
	packageOrigin   *url.URL
	fontAPIOrigin   *url.URL
	fontAssetOrigin *url.URL
	allowedHosts    []string
	smallTimeout    time.Duration
	largeTimeout    time.Duration
}

// New creates a Resolver from the upstream configuration. Every configured
// origin must itself pass the host allow-list.
func New(cfg *config.Config) (*Resolver, error) {
	r := &Resolver{
		allowedHosts: cfg.Upstream.AllowedHosts,
		smallTimeout: cfg.Upstream.SmallTimeout(),
		largeTimeout: cfg.Upstream.LargeTimeout(),
	}

	origins := []struct {
		name string
		raw  string
		dst  **url.URL
	}{
		{"package_origin", cfg.Upstream.PackageOrigin, &r.packageOrigin},
		{"font_api_origin", cfg.Upstream.FontAPIOrigin, &r.fontAPIOrigin},
		{"font_asset_origin", cfg.Upstream.FontAssetOrigin, &r.fontAssetOrigin},
	}
	for _, o := range origins {
		u, err := url.Parse(strings.TrimSuffix(o.raw, "/"))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", o.name, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("%s %q is not an absolute URL", o.name, o.raw)
		}
		host, err := canonicalHost(u.Hostname())
		if err != nil {
			return nil, fmt.Errorf("%s host: %w", o.name, err)
		}
		if !config.HostAllowed(r.allowedHosts, host) {
			return nil, fmt.Errorf("%s host %q is not in the allowlist", o.name, host)
		}
		u.Path, u.RawPath = "", ""
		*o.dst = u
	}

	return r, nil
}

// FontAssetOrigin returns the font asset origin, e.g. https://fonts.gstatic.com.
func (r *Resolver) FontAssetOrigin() *url.URL {
	u := *r.fontAssetOrigin
	return &u
}

// Resolve returns the upstream target and policy for one request.
//
// For the wildcard routes pathParams is the escaped path suffix split on "/".
// For RouteFontCSS it is the API version, and rawQuery is forwarded verbatim.
func (r *Resolver) Resolve(kind model.RouteKind, pathParams []string, rawQuery string) (model.UpstreamTarget, model.Policy, error) {
	var (
		origin *url.URL
		suffix string
		policy = model.Policy{CORSOpen: true}
	)

	switch kind {
	case model.RoutePackageFile:
		if err := checkSegments(kind, pathParams); err != nil {
			return model.UpstreamTarget{}, model.Policy{}, err
		}
		origin = r.packageOrigin
		suffix = "/" + strings.Join(pathParams, "/")
		policy.CacheMaxAgeSeconds = packageMaxAge
		policy.Timeout = r.packageTimeout(pathParams)

	case model.RoutePackageShortcut:
		spec, err := parseShortcut(pathParams)
		if err != nil {
			return model.UpstreamTarget{}, model.Policy{}, err
		}
		origin = r.packageOrigin
		suffix = "/npm/" + spec
		policy.CacheMaxAgeSeconds = packageMaxAge
		policy.Timeout = r.packageTimeout(pathParams)

	case model.RouteFontCSS:
		if len(pathParams) != 1 || (pathParams[0] != "css" && pathParams[0] != "css2") {
			return model.UpstreamTarget{}, model.Policy{}, invalid(kind, "unknown font css api version %v", pathParams)
		}
		if !validQuery(rawQuery) {
			return model.UpstreamTarget{}, model.Policy{}, invalid(kind, "malformed query string")
		}
		origin = r.fontAPIOrigin
		suffix = "/" + pathParams[0]
		if rawQuery != "" {
			suffix += "?" + rawQuery
		}
		policy.CacheMaxAgeSeconds = fontCSSMaxAge
		policy.ContentTypeOverride = fontCSSContentType
		policy.RewriteBody = true
		policy.Timeout = r.smallTimeout

	case model.RouteFontAsset:
		if err := checkSegments(kind, pathParams); err != nil {
			return model.UpstreamTarget{}, model.Policy{}, err
		}
		origin = r.fontAssetOrigin
		suffix = "/s/" + strings.Join(pathParams, "/")
		policy.CacheMaxAgeSeconds = fontAssetMaxAge
		policy.Immutable = true
		policy.ContentTypeOverride = FontContentType(pathParams[len(pathParams)-1])
		policy.Timeout = r.largeTimeout

	default:
		return model.UpstreamTarget{}, model.Policy{}, invalid(kind, "unsupported route kind")
	}

	target := origin.String() + suffix
	if err := r.verifyTarget(origin, target); err != nil {
		return model.UpstreamTarget{}, model.Policy{}, invalid(kind, "%v", err)
	}
	return model.UpstreamTarget{URL: target}, policy, nil
}

func (r *Resolver) packageTimeout(segments []string) time.Duration {
	if len(segments) == 0 {
		return r.largeTimeout
	}
	last, err := url.PathUnescape(segments[len(segments)-1])
	if err != nil {
		return r.largeTimeout
	}
	if smallPackageExts[strings.ToLower(path.Ext(last))] {
		return r.smallTimeout
	}
	return r.largeTimeout
}

// verifyTarget re-parses the built URL and checks that it still points at
// the origin it was built from.
func (r *Resolver) verifyTarget(origin *url.URL, target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("built URL does not parse: %w", err)
	}
	if u.Scheme != origin.Scheme || u.User != nil || u.Fragment != "" {
		return fmt.Errorf("built URL %q escapes origin", target)
	}
	host, err := canonicalHost(u.Hostname())
	if err != nil {
		return err
	}
	want, _ := canonicalHost(origin.Hostname())
	if host != want || u.Port() != origin.Port() {
		return fmt.Errorf("built URL host %q differs from origin %q", host, want)
	}
	if !config.HostAllowed(r.allowedHosts, host) {
		return fmt.Errorf("host %q is not in the allowlist", host)
	}
	return nil
}

// canonicalHost lower-cases a hostname and converts it to its ASCII form.
func canonicalHost(host string) (string, error) {
	host = strings.ToLower(host)
	if net.ParseIP(host) != nil {
		return host, nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", host, err)
	}
	return ascii, nil
}
