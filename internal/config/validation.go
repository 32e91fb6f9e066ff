// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

var validCacheBackends = map[string]bool{
	"memory": true,
	"badger": true,
	"redis":  true,
	"none":   true,
}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validExporters = map[string]bool{
	"grpc": true,
	"http": true,
	"none": true,
}

// Validate checks a complete configuration. It returns the first
// problem found; a config that passes is safe to install.
func Validate(cfg Config) error {
	if cfg.ContentDir == "" {
		return fmt.Errorf("content_dir must be set")
	}
	if cfg.OutputDir == "" {
		return fmt.Errorf("output_dir must be set")
	}
	if cfg.ContentDir == cfg.OutputDir {
		return fmt.Errorf("content_dir and output_dir must differ")
	}

	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("base_url must be an absolute http(s) URL: %q", cfg.BaseURL)
		}
	}

	if cfg.Listen != "" {
		if _, _, err := net.SplitHostPort(cfg.Listen); err != nil {
			return fmt.Errorf("listen address %q: %w", cfg.Listen, err)
		}
	}

	for _, cidr := range cfg.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("trusted proxy %q is not a valid CIDR: %w", cidr, err)
		}
	}

	if len(cfg.Layouts) == 0 {
		return fmt.Errorf("at least one layout must be configured")
	}
	for _, l := range cfg.Layouts {
		if strings.TrimSpace(l) == "" {
			return fmt.Errorf("layout names must be non-empty")
		}
	}

	if !validCacheBackends[cfg.Cache.Backend] {
		return fmt.Errorf("cache backend %q is not supported (memory, badger, redis, none)", cfg.Cache.Backend)
	}
	if cfg.Cache.Backend == "badger" && cfg.Cache.BadgerPath == "" {
		return fmt.Errorf("cache backend badger requires badger_path")
	}
	if cfg.Cache.Backend == "redis" && cfg.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache backend redis requires redis.addr")
	}
	if cfg.Cache.TTL < 0 {
		return fmt.Errorf("cache ttl must not be negative")
	}

	if !validLogLevels[cfg.Log.Level] {
		return fmt.Errorf("log level %q is not valid (trace, debug, info, warn, error)", cfg.Log.Level)
	}

	if cfg.Tracing.Enabled {
		if !validExporters[cfg.Tracing.Exporter] || cfg.Tracing.Exporter == "none" {
			return fmt.Errorf("tracing enabled but exporter %q is not grpc or http", cfg.Tracing.Exporter)
		}
		if cfg.Tracing.Endpoint == "" {
			return fmt.Errorf("tracing enabled but endpoint is empty")
		}
	}

	if cfg.RateLimit.RequestsPerMinute < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}

	if cfg.Lint.ExternalTimeout < 0 || cfg.Lint.ExternalInterval < 0 {
		return fmt.Errorf("lint timeouts must not be negative")
	}
	if cfg.RebuildInterval < 0 {
		return fmt.Errorf("rebuild_interval must not be negative")
	}

	return nil
}
