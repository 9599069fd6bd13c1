// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/ryanuber/go-glob"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/cdn-proxy/config.toml",
	"configs/config.toml",
}

// proxyRoutePrefixes are the inbound prefixes owned by the proxy handlers.
var proxyRoutePrefixes = []string{"/jsdelivr", "/package", "/fonts", "/healthz", "/proxy/status"}

const (
	defaultPackageOrigin   = "https://cdn.jsdelivr.net"
	defaultFontAPIOrigin   = "https://fonts.googleapis.com"
	defaultFontAssetOrigin = "https://fonts.gstatic.com"
	defaultUserAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config    string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host      string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port      int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	LogLevel  string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
	UserAgent string `kong:"help='Default upstream User-Agent (overrides config).',env='USER_AGENT'"`

	Version kong.VersionFlag `kong:"help='Print version and exit.'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Upstream UpstreamConfig `toml:"upstream"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"` // 0 means "use default" (3000)
	BodyMaxBytes int64  `toml:"body_max_bytes"`
}

// UpstreamConfig holds the fixed upstream origins and fetch settings.
type UpstreamConfig struct {
	PackageOrigin       string   `toml:"package_origin"`
	FontAPIOrigin       string   `toml:"font_api_origin"`
	FontAssetOrigin     string   `toml:"font_asset_origin"`
	AllowedHosts        []string `toml:"allowed_hosts"`
	UserAgent           string   `toml:"user_agent"`
	SmallTimeoutSeconds int      `toml:"small_timeout_seconds"`
	LargeTimeoutSeconds int      `toml:"large_timeout_seconds"`
	IdleConnections     int      `toml:"idle_connections"`
	RewriteMaxBytes     int64    `toml:"rewrite_max_bytes"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load reads the TOML config file, if any, and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/cdn-proxy/config.toml then configs/config.toml. Without a file the
// built-in defaults are used.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// Default returns a Config with every field set to its default.
func Default() *Config {
	var cfg Config
	cfg.setDefaults()
	return &cfg
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
	if cli.UserAgent != "" {
		c.Upstream.UserAgent = cli.UserAgent
	}
}

func (c *Config) validate() error {
	origins := map[string]string{
		"upstream.package_origin":    c.Upstream.PackageOrigin,
		"upstream.font_api_origin":   c.Upstream.FontAPIOrigin,
		"upstream.font_asset_origin": c.Upstream.FontAssetOrigin,
	}
	for name, raw := range origins {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("%s is not a valid URL: %w", name, err)
		}
		if u.Scheme != "https" {
			return fmt.Errorf("%s must use HTTPS; got %q", name, raw)
		}
		if u.Host == "" || (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.User != nil {
			return fmt.Errorf("%s must be a bare origin (scheme and host only); got %q", name, raw)
		}
		if !HostAllowed(c.Upstream.AllowedHosts, u.Hostname()) {
			return fmt.Errorf("%s host %q is not in upstream.allowed_hosts", name, u.Hostname())
		}
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Upstream.SmallTimeoutSeconds < 0 || c.Upstream.LargeTimeoutSeconds < 0 {
		return fmt.Errorf("upstream timeouts must be non-negative")
	}
	if c.Upstream.LargeTimeoutSeconds < c.Upstream.SmallTimeoutSeconds {
		return fmt.Errorf("upstream.large_timeout_seconds (%d) must be >= small_timeout_seconds (%d)",
			c.Upstream.LargeTimeoutSeconds, c.Upstream.SmallTimeoutSeconds)
	}
	if c.Upstream.IdleConnections < 0 {
		return fmt.Errorf("upstream.idle_connections must be non-negative; got %d", c.Upstream.IdleConnections)
	}
	if c.Upstream.RewriteMaxBytes < 0 {
		return fmt.Errorf("upstream.rewrite_max_bytes must be non-negative; got %d", c.Upstream.RewriteMaxBytes)
	}

	// Log fields.
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "":
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	if c.Metrics.Enabled {
		p := c.Metrics.Path
		if p == "" || p[0] != '/' || p == "/" {
			return fmt.Errorf("metrics.path must start with '/' and not be the root; got %q", p)
		}
		for _, reserved := range proxyRoutePrefixes {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields, zero means "unset" because TOML cannot distinguish an
// explicit 0 from an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 1 << 20
	}
	if c.Upstream.PackageOrigin == "" {
		c.Upstream.PackageOrigin = defaultPackageOrigin
	}
	if c.Upstream.FontAPIOrigin == "" {
		c.Upstream.FontAPIOrigin = defaultFontAPIOrigin
	}
	if c.Upstream.FontAssetOrigin == "" {
		c.Upstream.FontAssetOrigin = defaultFontAssetOrigin
	}
	c.Upstream.PackageOrigin = strings.TrimSuffix(c.Upstream.PackageOrigin, "/")
	c.Upstream.FontAPIOrigin = strings.TrimSuffix(c.Upstream.FontAPIOrigin, "/")
	c.Upstream.FontAssetOrigin = strings.TrimSuffix(c.Upstream.FontAssetOrigin, "/")
	if len(c.Upstream.AllowedHosts) == 0 {
		c.Upstream.AllowedHosts = originHosts(
			c.Upstream.PackageOrigin,
			c.Upstream.FontAPIOrigin,
			c.Upstream.FontAssetOrigin,
		)
	}
	if c.Upstream.UserAgent == "" {
		c.Upstream.UserAgent = defaultUserAgent
	}
	if c.Upstream.SmallTimeoutSeconds == 0 {
		c.Upstream.SmallTimeoutSeconds = 10
	}
	if c.Upstream.LargeTimeoutSeconds == 0 {
		c.Upstream.LargeTimeoutSeconds = 30
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	if c.Upstream.RewriteMaxBytes == 0 {
		c.Upstream.RewriteMaxBytes = 2 << 20
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

func originHosts(origins ...string) []string {
	var hosts []string
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Hostname() != "" {
			hosts = append(hosts, strings.ToLower(u.Hostname()))
		}
	}
	return hosts
}

// HostAllowed reports whether host matches one of the glob patterns.
func HostAllowed(patterns []string, host string) bool {
	host = strings.ToLower(host)
	for _, p := range patterns {
		if glob.Glob(strings.ToLower(p), host) {
			return true
		}
	}
	return false
}

// SmallTimeout is the fetch budget for small payloads (CSS, package metadata).
func (c *UpstreamConfig) SmallTimeout() time.Duration {
	return time.Duration(c.SmallTimeoutSeconds) * time.Second
}

// LargeTimeout is the fetch budget for large binary payloads.
func (c *UpstreamConfig) LargeTimeout() time.Duration {
	return time.Duration(c.LargeTimeoutSeconds) * time.Second
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WarnPermissions logs a warning if the config file is writable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o022 != 0 {
		logger.Warn("config file is writable by group/others; upstream origins could be redirected",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
