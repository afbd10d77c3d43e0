// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ManuGH/streamgate/internal/config"
	"github.com/ManuGH/streamgate/internal/log"
	"github.com/rs/zerolog"
)

// PerformStartupChecks validates the environment before starting the server.
func PerformStartupChecks(cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	// 1. Listen addresses
	if err := checkListenAddr(logger, "server.listenAddr", cfg.Server.ListenAddr); err != nil {
		return err
	}
	if cfg.MetricsListen != "" {
		if err := checkListenAddr(logger, "metricsListen", cfg.MetricsListen); err != nil {
			return err
		}
	}

	// 2. Cache directory for on-disk backends
	switch cfg.Cache.Backend {
	case "file", "badger":
		if err := ensureWritableDir(logger, cfg.Cache.Dir); err != nil {
			return fmt.Errorf("cache directory check failed: %w", err)
		}
	}

	// 3. Channel directory (optional: lookups fall back when it is missing)
	if cfg.Channels.Path != "" {
		if err := checkFileReadable(cfg.Channels.Path); err != nil {
			logger.Warn().Err(err).Str("path", cfg.Channels.Path).Msg("channel directory not readable; playlist lookups will use the miss policy")
		} else {
			logger.Info().Str("path", cfg.Channels.Path).Msg("channel directory is readable")
		}
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkListenAddr(logger zerolog.Logger, field, addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", field, addr, err)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 65535 {
		return fmt.Errorf("invalid %s port %q in %q", field, port, addr)
	}
	logger.Info().Str("field", field).Str("addr", addr).Msg("listen address is valid")
	return nil
}

func ensureWritableDir(logger zerolog.Logger, path string) error {
	if path == "" {
		return fmt.Errorf("directory not configured")
	}
	if err := os.MkdirAll(path, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	// Check write permissions by creating a temp file
	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str("path", path).Msg("cache directory is writable")
	return nil
}

func checkFileReadable(path string) error {
	f, err := os.Open(path) // #nosec G304 -- path comes from operator config; verifying readability is expected
	if err != nil {
		return err
	}
	return f.Close()
}
