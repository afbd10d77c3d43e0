// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable consumed by the Loader.
const EnvPrefix = "STREAMGATE_"

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // Mechanical tracking of consumed keys
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseString(EnvPrefix+key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseBool(EnvPrefix+key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseInt(EnvPrefix+key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseDuration(EnvPrefix+key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseFloat(EnvPrefix+key, defaultVal)
}

func (l *Loader) envMap(key string, defaultVal map[string]string) map[string]string {
	l.ConsumedEnvKeys[EnvPrefix+key] = struct{}{}
	return ParseStringMap(EnvPrefix+key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults, then validates.
func (l *Loader) Load() (AppConfig, error) {
	// 1. Defaults
	cfg := Defaults()

	// 2. File (strict)
	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	// 3. Environment (highest priority)
	l.mergeEnvConfig(&cfg)

	// 4. Derived values
	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = filepath.Join(cfg.DataDir, "cache")
	}
	if cfg.Channels.Path == "" {
		cfg.Channels.Path = filepath.Join(cfg.DataDir, "channels.json")
	}
	cfg.Upstream.ProbeMethod = strings.ToUpper(cfg.Upstream.ProbeMethod)
	cfg.Version = l.version

	// 5. Validate
	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile decodes a YAML file over dst with STRICT parsing.
// Unknown fields cause an error to prevent silent misconfiguration.
func (l *Loader) loadFile(path string, dst *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	// A paths table in the file replaces the default table instead of merging into it.
	defaultPaths := dst.Upstream.Paths
	dst.Upstream.Paths = nil
	defer func() {
		if dst.Upstream.Paths == nil {
			dst.Upstream.Paths = defaultPaths
		}
	}()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	// Strict: Ensure no multiple documents or trailing content
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}

	return nil
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.LogLevel = l.envString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = l.envString("LOG_SERVICE", cfg.LogService)
	cfg.DataDir = l.envString("DATA", cfg.DataDir)
	cfg.MetricsListen = l.envString("METRICS_LISTEN", cfg.MetricsListen)

	cfg.Server.ListenAddr = l.envString("LISTEN", cfg.Server.ListenAddr)
	cfg.Server.ReadTimeout = l.envDuration("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = l.envDuration("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = l.envDuration("SERVER_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = l.envDuration("SERVER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.Upstream.BaseURL = l.envString("UPSTREAM_BASE_URL", cfg.Upstream.BaseURL)
	cfg.Upstream.Paths = l.envMap("UPSTREAM_PATHS", cfg.Upstream.Paths)
	cfg.Upstream.Username = l.envString("UPSTREAM_USERNAME", cfg.Upstream.Username)
	cfg.Upstream.Password = l.envString("UPSTREAM_PASSWORD", cfg.Upstream.Password)
	cfg.Upstream.UserAgent = l.envString("UPSTREAM_USER_AGENT", cfg.Upstream.UserAgent)
	cfg.Upstream.ProbeMethod = l.envString("UPSTREAM_PROBE_METHOD", cfg.Upstream.ProbeMethod)
	cfg.Upstream.Timeout = l.envDuration("UPSTREAM_TIMEOUT", cfg.Upstream.Timeout)
	cfg.Upstream.ProbeRate = l.envFloat("UPSTREAM_PROBE_RATE", cfg.Upstream.ProbeRate)
	cfg.Upstream.ProbeBurst = l.envInt("UPSTREAM_PROBE_BURST", cfg.Upstream.ProbeBurst)
	cfg.Upstream.BreakerFailures = l.envInt("UPSTREAM_BREAKER_FAILURES", cfg.Upstream.BreakerFailures)

	cfg.Gateway.MaxDevices = l.envInt("MAX_DEVICES", cfg.Gateway.MaxDevices)
	cfg.Gateway.CacheTTL = l.envDuration("CACHE_TTL", cfg.Gateway.CacheTTL)

	cfg.Cache.Backend = l.envString("CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.Dir = l.envString("CACHE_DIR", cfg.Cache.Dir)
	cfg.Cache.Redis.Addr = l.envString("CACHE_REDIS_ADDR", cfg.Cache.Redis.Addr)
	cfg.Cache.Redis.Password = l.envString("CACHE_REDIS_PASSWORD", cfg.Cache.Redis.Password)

	cfg.Sessions.Backend = l.envString("SESSION_BACKEND", cfg.Sessions.Backend)
	cfg.Sessions.TTL = l.envDuration("SESSION_TTL", cfg.Sessions.TTL)
	cfg.Sessions.SweepInterval = l.envDuration("SESSION_SWEEP_INTERVAL", cfg.Sessions.SweepInterval)
	cfg.Sessions.Transport = l.envString("SESSION_TRANSPORT", cfg.Sessions.Transport)
	cfg.Sessions.CookieSecure = l.envBool("SESSION_COOKIE_SECURE", cfg.Sessions.CookieSecure)
	cfg.Sessions.Redis.Addr = l.envString("SESSION_REDIS_ADDR", cfg.Sessions.Redis.Addr)
	cfg.Sessions.Redis.Password = l.envString("SESSION_REDIS_PASSWORD", cfg.Sessions.Redis.Password)

	cfg.Channels.Path = l.envString("CHANNELS_PATH", cfg.Channels.Path)
	cfg.Channels.TTL = l.envDuration("CHANNELS_TTL", cfg.Channels.TTL)
	cfg.Channels.Watch = l.envBool("CHANNELS_WATCH", cfg.Channels.Watch)
	cfg.Channels.MissPolicy = l.envString("CHANNELS_MISS_POLICY", cfg.Channels.MissPolicy)
	cfg.Channels.FallbackURL = l.envString("CHANNELS_FALLBACK_URL", cfg.Channels.FallbackURL)

	cfg.RateLimit.Enabled = l.envBool("RATELIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.RequestsPerMinute = l.envInt("RATELIMIT_RPM", cfg.RateLimit.RequestsPerMinute)

	cfg.Telemetry.Enabled = l.envBool("OTEL_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString("OTEL_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString("OTEL_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat("OTEL_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
}
