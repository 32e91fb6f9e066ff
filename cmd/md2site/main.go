// SPDX-License-Identifier: MIT

// Command md2site is the documentation content daemon: it scans a
// markdown tree, lints it, renders HTML artifacts and serves them
// alongside a search and build-control API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/md2site/md2site/internal/api"
	"github.com/md2site/md2site/internal/cache"
	"github.com/md2site/md2site/internal/config"
	"github.com/md2site/md2site/internal/daemon"
	"github.com/md2site/md2site/internal/health"
	"github.com/md2site/md2site/internal/index"
	"github.com/md2site/md2site/internal/jobs"
	xglog "github.com/md2site/md2site/internal/log"
	"github.com/md2site/md2site/internal/telemetry"
	"github.com/md2site/md2site/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	checkOnly := flag.Bool("check", false, "run one build and exit non-zero on lint errors")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	// Safe defaults until the config is loaded.
	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: "md2site",
		Version: version.Version,
	})
	logger := xglog.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *checkOnly); err != nil {
		logger.Error().Err(err).Str("event", "daemon.fatal").Msg("daemon exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, logger zerolog.Logger, configPath string, checkOnly bool) error {
	loader := config.NewLoader(configPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.Log.Level,
		Service: "md2site",
		Version: version.Version,
	})

	logger.Info().
		Str("event", "daemon.starting").
		Str("version", version.Version).
		Str("content_dir", cfg.ContentDir).
		Str("output_dir", cfg.OutputDir).
		Msg("starting md2site")

	tracer, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    "md2site",
		ServiceVersion: version.Version,
		ExporterType:   cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   1.0,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}()

	renderCache, err := newCache(cfg)
	if err != nil {
		// A dead remote cache should not keep the daemon from building.
		logger.Warn().
			Err(err).
			Str("event", "cache.backend_unavailable").
			Str("backend", cfg.Cache.Backend).
			Msg("cache backend unavailable, falling back to in-memory cache")
		renderCache = cache.NewMemoryCache(10 * time.Minute)
	}
	defer func() { _ = renderCache.Close() }()

	var searchIndex *index.Store
	if cfg.Index.Path != "" {
		searchIndex, err = index.NewStore(cfg.Index.Path, xglog.WithComponent("index"))
		if err != nil {
			return fmt.Errorf("open search index: %w", err)
		}
		defer func() { _ = searchIndex.Close() }()
	}

	builder := jobs.NewBuilder(renderCache, searchIndex)

	if checkOnly {
		status, err := builder.Build(ctx, cfg)
		if err != nil {
			logger.Error().
				Err(err).
				Int("errors", status.Errors).
				Int("warnings", status.Warnings).
				Msg("check failed")
			return err
		}
		logger.Info().
			Int("pages", status.Pages).
			Int("warnings", status.Warnings).
			Msg("check passed")
		return nil
	}

	holder := config.NewHolder(cfg, loader, configPath)
	defer holder.Stop()

	healthM := health.NewManager(version.Version)
	server := api.NewServer(holder, builder, healthM, searchIndex)

	healthM.RegisterChecker(health.NewDirChecker("content_dir", cfg.ContentDir))
	healthM.RegisterChecker(health.NewDirChecker("output_dir", cfg.OutputDir))
	healthM.RegisterChecker(health.NewLastBuildChecker(staleAfter(cfg), server.LastBuild))
	if searchIndex != nil {
		healthM.RegisterChecker(health.NewPingChecker("search_index", searchIndex.Ping))
	}

	manager, err := daemon.NewManager(cfg.Listen, server.Handler(), 15*time.Second)
	if err != nil {
		return fmt.Errorf("create server manager: %w", err)
	}

	// First build before serving; a lint failure is not fatal, the
	// daemon comes up unready and rebuilds on the next change.
	if _, err := server.RunBuild(ctx); err != nil {
		logger.Warn().Err(err).Str("event", "build.initial_failed").Msg("initial build failed")
	}

	app := daemon.NewApp(logger, manager, holder, server)
	return app.Run(ctx)
}

// staleAfter derives the health staleness window from the rebuild
// cadence. Watch-only daemons have none.
func staleAfter(cfg config.Config) time.Duration {
	if cfg.RebuildInterval > 0 {
		return 3 * cfg.RebuildInterval
	}
	return 0
}

func newCache(cfg config.Config) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case "badger":
		return cache.NewBadgerCache(cfg.Cache.BadgerPath, xglog.WithComponent("cache"))
	case "redis":
		return cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		}, xglog.WithComponent("cache"))
	case "none":
		return cache.NewNoOpCache(), nil
	default:
		return cache.NewMemoryCache(10 * time.Minute), nil
	}
}
