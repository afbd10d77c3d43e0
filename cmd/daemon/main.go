// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ManuGH/streamgate/internal/config"
	"github.com/ManuGH/streamgate/internal/daemon"
	"github.com/ManuGH/streamgate/internal/health"
	xglog "github.com/ManuGH/streamgate/internal/log"
	"github.com/ManuGH/streamgate/internal/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:], os.Stdout, os.Stderr))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:], os.Stdout, os.Stderr))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	// Safe defaults until config is loaded
	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: "streamgate",
		Version: version.Version,
	})
	logger := xglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	explicitConfigPath := strings.TrimSpace(*configPath)
	effectiveConfigPath := resolveConfigPath(explicitConfigPath)

	cfg, err := config.NewLoader(effectiveConfigPath, version.Version).Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", effectiveConfigPath).
			Msg("failed to load configuration")
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: cfg.Version,
	})
	logger = xglog.WithComponent("daemon")

	switch {
	case explicitConfigPath != "":
		logger.Info().Str("event", "config.loaded").Str("source", "file").Str("path", explicitConfigPath).Msg("loaded configuration from file")
	case effectiveConfigPath != "":
		logger.Info().Str("event", "config.loaded").Str("source", "file(auto)").Str("path", effectiveConfigPath).Msg("loaded configuration from file")
	default:
		logger.Info().Str("event", "config.loaded").Str("source", "env+defaults").Msg("loaded configuration from environment and defaults")
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("listen", cfg.Server.ListenAddr).
		Str("upstream", config.MaskURL(cfg.Upstream.BaseURL)).
		Int("max_devices", cfg.Gateway.MaxDevices).
		Str("cache_backend", cfg.Cache.Backend).
		Str("session_backend", cfg.Sessions.Backend).
		Msg("starting streamgate")

	// Pre-flight checks (fail fast)
	if err := health.PerformStartupChecks(cfg); err != nil {
		logger.Fatal().Err(err).Str("event", "startup.check_failed").Msg("startup checks failed")
	}

	rt, err := daemon.Bootstrap(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "bootstrap.failed").Msg("failed to initialize runtime")
	}

	mgr, err := daemon.NewManager(cfg.Server, daemon.Deps{
		Logger:         logger,
		APIHandler:     rt.API.Handler(),
		MetricsHandler: promhttp.Handler(),
		MetricsAddr:    cfg.MetricsListen,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("event", "manager.init_failed").Msg("failed to create daemon manager")
	}
	rt.RegisterShutdownHooks(mgr)

	if err := daemon.NewApp(logger, mgr, rt.Jobs()...).Run(ctx); err != nil {
		logger.Fatal().Err(err).Str("event", "daemon.failed").Msg("daemon exited with error")
	}
	logger.Info().Str("event", "shutdown.complete").Msg("server exiting")
}

// resolveConfigPath prefers an explicit path and otherwise auto-loads
// ${STREAMGATE_DATA}/config.yaml when it exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	dataDir := strings.TrimSpace(config.ParseString(config.EnvPrefix+"DATA", "data"))
	if dataDir == "" {
		return ""
	}
	autoPath := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(autoPath); err == nil {
		return autoPath
	}
	return ""
}
