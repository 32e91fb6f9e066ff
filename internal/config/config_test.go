// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader("", "v1.2.3").Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Listen != ":8080" {
		t.Errorf("Listen = %q, want :8080", cfg.Listen)
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("Cache.Backend = %q, want memory", cfg.Cache.Backend)
	}
	if cfg.Version != "v1.2.3" {
		t.Errorf("Version = %q, want v1.2.3", cfg.Version)
	}
	if !filepath.IsAbs(cfg.ContentDir) {
		t.Errorf("ContentDir = %q, want absolute", cfg.ContentDir)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "md2site.yaml")
	yaml := `
content_dir: /srv/docs/content
output_dir: /srv/docs/public
base_url: https://docs.example.com
layouts: [page, marketing]
lint:
  check_external: true
  external_timeout: 5s
cache:
  backend: none
`
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewLoader(path, "dev").Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ContentDir != "/srv/docs/content" {
		t.Errorf("ContentDir = %q", cfg.ContentDir)
	}
	if !cfg.Lint.CheckExternal {
		t.Error("Lint.CheckExternal = false, want true")
	}
	if cfg.Lint.ExternalTimeout != 5*time.Second {
		t.Errorf("Lint.ExternalTimeout = %v", cfg.Lint.ExternalTimeout)
	}
	if cfg.Cache.Backend != "none" {
		t.Errorf("Cache.Backend = %q", cfg.Cache.Backend)
	}
	// File did not touch the log level, defaults stay.
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "md2site.yaml")
	if err := os.WriteFile(path, []byte("contnet_dir: /tmp/x\n"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := NewLoader(path, "dev").Load()
	if err == nil {
		t.Fatal("Load() = nil error for unknown key, want strict parse error")
	}
	if !strings.Contains(err.Error(), "strict config parse error") {
		t.Errorf("error = %v, want strict parse error", err)
	}
}

func TestLoadFileRejectsNonYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "md2site.toml")
	if err := os.WriteFile(path, []byte("x = 1\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewLoader(path, "dev").Load(); err == nil {
		t.Error("Load(toml) = nil error, want unsupported format")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "md2site.yaml")
	if err := os.WriteFile(path, []byte("listen: \":9000\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("MD2SITE_LISTEN", ":7000")
	t.Setenv("MD2SITE_LAYOUTS", "page, home")

	cfg, err := NewLoader(path, "dev").Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Listen != ":7000" {
		t.Errorf("Listen = %q, want ENV to win over file", cfg.Listen)
	}
	if len(cfg.Layouts) != 2 || cfg.Layouts[1] != "home" {
		t.Errorf("Layouts = %v", cfg.Layouts)
	}
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.ContentDir = "/srv/content"
	valid.OutputDir = "/srv/public"

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing content dir", func(c *Config) { c.ContentDir = "" }, "content_dir"},
		{"same dirs", func(c *Config) { c.OutputDir = c.ContentDir }, "must differ"},
		{"bad base url", func(c *Config) { c.BaseURL = "ftp://x" }, "base_url"},
		{"bad listen", func(c *Config) { c.Listen = "8080" }, "listen"},
		{"bad proxy cidr", func(c *Config) { c.TrustedProxies = []string{"10.0.0.1"} }, "CIDR"},
		{"no layouts", func(c *Config) { c.Layouts = nil }, "layout"},
		{"bad cache backend", func(c *Config) { c.Cache.Backend = "memcached" }, "cache backend"},
		{"badger without path", func(c *Config) { c.Cache.Backend = "badger" }, "badger_path"},
		{"redis without addr", func(c *Config) { c.Cache.Backend = "redis" }, "redis.addr"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "log level"},
		{"tracing without endpoint", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "grpc"
		}, "endpoint"},
		{"negative rate limit", func(c *Config) { c.RateLimit.RequestsPerMinute = -1 }, "rate limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseStringSlice(t *testing.T) {
	t.Setenv("MD2SITE_TEST_SLICE", " a, b ,, c ")

	got := ParseStringSlice("MD2SITE_TEST_SLICE", nil)
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Errorf("ParseStringSlice() = %v", got)
	}

	def := []string{"x"}
	if got := ParseStringSlice("MD2SITE_TEST_ABSENT", def); len(got) != 1 || got[0] != "x" {
		t.Errorf("default not returned: %v", got)
	}
}

func TestHolderReloadKeepsOldOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "md2site.yaml")
	good := "content_dir: /srv/content\noutput_dir: /srv/public\n"
	if err := os.WriteFile(path, []byte(good), 0600); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader(path, "dev")
	initial, err := loader.Load()
	if err != nil {
		t.Fatal(err)
	}
	holder := NewHolder(initial, loader, path)

	// Break the file, reload must fail and keep the old config.
	if err := os.WriteFile(path, []byte("cache:\n  backend: bogus\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := holder.Reload(t.Context()); err == nil {
		t.Fatal("Reload() = nil error for invalid config")
	}
	if got := holder.Get().ContentDir; got != "/srv/content" {
		t.Errorf("ContentDir after failed reload = %q, want old value", got)
	}

	// Fix it, reload must succeed and notify listeners.
	ch := make(chan Config, 1)
	holder.RegisterListener(ch)
	fixed := "content_dir: /srv/content2\noutput_dir: /srv/public\n"
	if err := os.WriteFile(path, []byte(fixed), 0600); err != nil {
		t.Fatal(err)
	}
	if err := holder.Reload(t.Context()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	select {
	case cfg := <-ch:
		if cfg.ContentDir != "/srv/content2" {
			t.Errorf("listener got ContentDir = %q", cfg.ContentDir)
		}
	default:
		t.Error("listener was not notified")
	}
}
