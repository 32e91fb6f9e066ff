// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader loads configuration with the precedence ENV > file > defaults.
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a loader. configPath may be empty for ENV-only
// operation.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Load builds the effective configuration: defaults first, then the
// YAML file (strict), then environment overrides, then validation.
func (l *Loader) Load() (Config, error) {
	cfg := Default()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		cfg = *fileCfg
	}

	l.mergeEnv(&cfg)

	// Relative dirs confuse confinement checks later, resolve early.
	for _, dir := range []*string{&cfg.ContentDir, &cfg.OutputDir} {
		if abs, err := filepath.Abs(*dir); err == nil {
			*dir = abs
		}
	}

	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile parses a YAML config file in strict mode on top of the
// defaults. Unknown fields and multi-document files are rejected.
func (l *Loader) loadFile(path string) (*Config, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- config file paths are provided by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		if err == io.EOF {
			return &cfg, nil
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}

	return &cfg, nil
}

// mergeEnv applies environment overrides, the highest precedence
// layer. Every key is prefixed MD2SITE_.
func (l *Loader) mergeEnv(cfg *Config) {
	cfg.ContentDir = ParseString("MD2SITE_CONTENT_DIR", cfg.ContentDir)
	cfg.OutputDir = ParseString("MD2SITE_OUTPUT_DIR", cfg.OutputDir)
	cfg.BaseURL = ParseString("MD2SITE_BASE_URL", cfg.BaseURL)
	cfg.Listen = ParseString("MD2SITE_LISTEN", cfg.Listen)
	cfg.APIToken = ParseString("MD2SITE_API_TOKEN", cfg.APIToken)
	cfg.TrustedProxies = ParseStringSlice("MD2SITE_TRUSTED_PROXIES", cfg.TrustedProxies)

	cfg.Layouts = ParseStringSlice("MD2SITE_LAYOUTS", cfg.Layouts)
	cfg.SkipDirs = ParseStringSlice("MD2SITE_SKIP_DIRS", cfg.SkipDirs)
	cfg.KnownFiles = ParseStringSlice("MD2SITE_KNOWN_FILES", cfg.KnownFiles)

	cfg.WatchContent = ParseBool("MD2SITE_WATCH_CONTENT", cfg.WatchContent)
	cfg.RebuildInterval = ParseDuration("MD2SITE_REBUILD_INTERVAL", cfg.RebuildInterval)

	cfg.Lint.CheckExternal = ParseBool("MD2SITE_LINT_CHECK_EXTERNAL", cfg.Lint.CheckExternal)
	cfg.Lint.ExternalTimeout = ParseDuration("MD2SITE_LINT_EXTERNAL_TIMEOUT", cfg.Lint.ExternalTimeout)
	cfg.Lint.ExternalInterval = ParseDuration("MD2SITE_LINT_EXTERNAL_INTERVAL", cfg.Lint.ExternalInterval)
	cfg.Lint.FailOnWarnings = ParseBool("MD2SITE_LINT_FAIL_ON_WARNINGS", cfg.Lint.FailOnWarnings)

	cfg.Cache.Backend = ParseString("MD2SITE_CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.TTL = ParseDuration("MD2SITE_CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.BadgerPath = ParseString("MD2SITE_CACHE_BADGER_PATH", cfg.Cache.BadgerPath)
	cfg.Cache.Redis.Addr = ParseString("MD2SITE_REDIS_ADDR", cfg.Cache.Redis.Addr)
	cfg.Cache.Redis.Password = ParseString("MD2SITE_REDIS_PASSWORD", cfg.Cache.Redis.Password)
	cfg.Cache.Redis.DB = ParseInt("MD2SITE_REDIS_DB", cfg.Cache.Redis.DB)

	cfg.Index.Path = ParseString("MD2SITE_INDEX_PATH", cfg.Index.Path)

	cfg.Log.Level = ParseString("MD2SITE_LOG_LEVEL", cfg.Log.Level)

	cfg.Tracing.Enabled = ParseBool("MD2SITE_TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = ParseString("MD2SITE_TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = ParseString("MD2SITE_TRACING_ENDPOINT", cfg.Tracing.Endpoint)

	cfg.RateLimit.RequestsPerMinute = ParseInt("MD2SITE_RATE_LIMIT_RPM", cfg.RateLimit.RequestsPerMinute)
}
