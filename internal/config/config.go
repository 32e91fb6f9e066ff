// SPDX-License-Identifier: MIT

// Package config loads and validates daemon configuration with the
// precedence ENV > file > defaults. The file format is strict YAML;
// unknown keys fail the load so typos never silently fall back.
package config

import "time"

// Config is the complete runtime configuration of the daemon.
type Config struct {
	// ContentDir is the root of the markdown source tree.
	ContentDir string `yaml:"content_dir" json:"contentDir"`
	// OutputDir receives generated artifacts (manifest, page JSON,
	// sitemap, lint report).
	OutputDir string `yaml:"output_dir" json:"outputDir"`
	// BaseURL is the absolute site URL used in the sitemap.
	BaseURL string `yaml:"base_url" json:"baseURL"`
	// Listen is the HTTP bind address, e.g. ":8080".
	Listen string `yaml:"listen" json:"listen"`
	// APIToken protects mutating endpoints. Empty disables auth.
	APIToken string `yaml:"api_token" json:"-"`
	// TrustedProxies lists CIDRs whose X-Forwarded-For is honored.
	TrustedProxies []string `yaml:"trusted_proxies" json:"trustedProxies"`

	// Layouts enumerates the layout names pages may declare.
	Layouts []string `yaml:"layouts" json:"layouts"`
	// SkipDirs are directory names excluded from content scans.
	SkipDirs []string `yaml:"skip_dirs" json:"skipDirs"`
	// KnownFiles are non-markdown site paths links may point at.
	KnownFiles []string `yaml:"known_files" json:"knownFiles"`

	// WatchContent rebuilds automatically when source files change.
	WatchContent bool `yaml:"watch_content" json:"watchContent"`
	// RebuildInterval triggers periodic rebuilds; 0 disables them.
	RebuildInterval time.Duration `yaml:"rebuild_interval" json:"rebuildInterval"`

	Lint      LintConfig      `yaml:"lint" json:"lint"`
	Cache     CacheConfig     `yaml:"cache" json:"cache"`
	Index     IndexConfig     `yaml:"index" json:"index"`
	Log       LogConfig       `yaml:"log" json:"log"`
	Tracing   TracingConfig   `yaml:"tracing" json:"tracing"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rateLimit"`

	// Version is stamped from the binary, never from file or ENV.
	Version string `yaml:"-" json:"version"`
}

// LintConfig controls the documentation checks.
type LintConfig struct {
	// CheckExternal enables live probing of external links.
	CheckExternal bool `yaml:"check_external" json:"checkExternal"`
	// ExternalTimeout bounds each external link probe.
	ExternalTimeout time.Duration `yaml:"external_timeout" json:"externalTimeout"`
	// ExternalInterval is the minimum delay between probes per host.
	ExternalInterval time.Duration `yaml:"external_interval" json:"externalInterval"`
	// FailOnWarnings makes warnings fail a build like errors do.
	FailOnWarnings bool `yaml:"fail_on_warnings" json:"failOnWarnings"`
}

// CacheConfig selects the render cache backend.
type CacheConfig struct {
	// Backend is one of "memory", "badger", "redis" or "none".
	Backend string `yaml:"backend" json:"backend"`
	// TTL expires cached renders; 0 keeps them until eviction.
	TTL time.Duration `yaml:"ttl" json:"ttl"`
	// BadgerPath is the on-disk location for the badger backend.
	BadgerPath string `yaml:"badger_path" json:"badgerPath"`

	Redis RedisConfig `yaml:"redis" json:"redis"`
}

// RedisConfig configures the redis cache backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"-"`
	DB       int    `yaml:"db" json:"db"`
}

// IndexConfig configures the search index.
type IndexConfig struct {
	// Path is the SQLite database file. Empty disables search.
	Path string `yaml:"path" json:"path"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `yaml:"level" json:"level"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Exporter is "grpc", "http" or "none".
	Exporter string `yaml:"exporter" json:"exporter"`
	// Endpoint is the OTLP collector address.
	Endpoint string `yaml:"endpoint" json:"endpoint"`
}

// RateLimitConfig bounds request rates on the HTTP API.
type RateLimitConfig struct {
	// RequestsPerMinute per client IP; 0 disables limiting.
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requestsPerMinute"`
}

// Default returns the built-in configuration. ENV and file settings
// are layered on top of this by the Loader.
func Default() Config {
	return Config{
		ContentDir: "./content",
		OutputDir:  "./public",
		Listen:     ":8080",
		Layouts:    []string{"page", "marketing", "home"},
		SkipDirs:   []string{"node_modules"},
		Lint: LintConfig{
			ExternalTimeout:  10 * time.Second,
			ExternalInterval: 500 * time.Millisecond,
		},
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     24 * time.Hour,
		},
		Log: LogConfig{
			Level: "info",
		},
		Tracing: TracingConfig{
			Exporter: "none",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 120,
		},
	}
}
