// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STREAMGATE_DATA", t.TempDir())

	cfg, err := NewLoader("", "v1.2.3").Load()
	require.NoError(t, err)

	assert.Equal(t, "v1.2.3", cfg.Version)
	assert.Equal(t, DefaultMaxDevices, cfg.Gateway.MaxDevices)
	assert.Equal(t, 60*time.Second, cfg.Gateway.CacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.Sessions.TTL)
	assert.Equal(t, time.Hour, cfg.Sessions.SweepInterval)
	assert.Equal(t, "HEAD", cfg.Upstream.ProbeMethod)
	assert.Equal(t, 302, cfg.Upstream.RedirectStatus)
	assert.Equal(t, filepath.Join(cfg.DataDir, "cache"), cfg.Cache.Dir)
	assert.Equal(t, filepath.Join(cfg.DataDir, "channels.json"), cfg.Channels.Path)

	want := map[string]string{
		"live":   "/live/42166/42166",
		"movies": "/movies",
		"series": "/series",
	}
	if diff := cmp.Diff(want, cfg.Upstream.Paths); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
dataDir: `+t.TempDir()+`
upstream:
  baseUrl: http://origin.example:8080
  paths:
    live: /live/user/pass
  probeMethod: get
  username: user
  password: secret
gateway:
  maxDevices: 2
  cacheTTL: 30s
sessions:
  transport: header
`)

	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)

	assert.Equal(t, "http://origin.example:8080", cfg.Upstream.BaseURL)
	assert.Equal(t, map[string]string{"live": "/live/user/pass"}, cfg.Upstream.Paths, "file paths replace the default table")
	assert.Equal(t, "GET", cfg.Upstream.ProbeMethod)
	assert.Equal(t, 2, cfg.Gateway.MaxDevices)
	assert.Equal(t, 30*time.Second, cfg.Gateway.CacheTTL)
	assert.Equal(t, "header", cfg.Sessions.Transport)
	// untouched values keep their defaults
	assert.Equal(t, 24*time.Hour, cfg.Sessions.TTL)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
dataDir: `+t.TempDir()+`
gateway:
  maxDevices: 2
`)
	t.Setenv("STREAMGATE_MAX_DEVICES", "7")
	t.Setenv("STREAMGATE_CACHE_TTL", "2m")
	t.Setenv("STREAMGATE_UPSTREAM_PATHS", "live=/l/a/b, movies=/m")

	l := NewLoader(path, "")
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Gateway.MaxDevices)
	assert.Equal(t, 2*time.Minute, cfg.Gateway.CacheTTL)
	assert.Equal(t, map[string]string{"live": "/l/a/b", "movies": "/m"}, cfg.Upstream.Paths)
	assert.Contains(t, l.ConsumedEnvKeys, "STREAMGATE_MAX_DEVICES")
}

func TestLoad_InvalidEnvKeepsPreviousValue(t *testing.T) {
	t.Setenv("STREAMGATE_DATA", t.TempDir())
	t.Setenv("STREAMGATE_MAX_DEVICES", "many")

	cfg, err := NewLoader("", "").Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxDevices, cfg.Gateway.MaxDevices)
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	path := writeConfig(t, `
gateway:
  maxDevice: 3
`)
	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownConfigField), "got %v", err)
}

func TestLoad_RejectsNonYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))

	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config format")
}

func TestLoad_MultipleDocumentsRejected(t *testing.T) {
	path := writeConfig(t, "logLevel: info\n---\nlogLevel: debug\n")
	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*AppConfig) {}},
		{name: "zero max devices", mutate: func(c *AppConfig) { c.Gateway.MaxDevices = 0 }, wantErr: "gateway.maxDevices"},
		{name: "zero cache ttl", mutate: func(c *AppConfig) { c.Gateway.CacheTTL = 0 }, wantErr: "gateway.cacheTTL"},
		{name: "bad base url", mutate: func(c *AppConfig) { c.Upstream.BaseURL = "not a url" }, wantErr: "upstream.baseUrl"},
		{name: "empty path table", mutate: func(c *AppConfig) { c.Upstream.Paths = map[string]string{} }, wantErr: "upstream.paths"},
		{name: "path without slash", mutate: func(c *AppConfig) { c.Upstream.Paths = map[string]string{"live": "live"} }, wantErr: "upstream.paths"},
		{name: "content type with underscore", mutate: func(c *AppConfig) { c.Upstream.Paths = map[string]string{"tv_shows": "/tv"} }, wantErr: "upstream.paths"},
		{name: "unknown probe method", mutate: func(c *AppConfig) { c.Upstream.ProbeMethod = "POST" }, wantErr: "upstream.probeMethod"},
		{name: "non redirect status", mutate: func(c *AppConfig) { c.Upstream.RedirectStatus = 200 }, wantErr: "upstream.redirectStatus"},
		{name: "unknown cache backend", mutate: func(c *AppConfig) { c.Cache.Backend = "memcached" }, wantErr: "cache.backend"},
		{name: "redis cache without addr", mutate: func(c *AppConfig) { c.Cache.Backend = "redis" }, wantErr: "cache.redis.addr"},
		{name: "redis sessions without addr", mutate: func(c *AppConfig) { c.Sessions.Backend = "redis" }, wantErr: "sessions.redis.addr"},
		{name: "unknown transport", mutate: func(c *AppConfig) { c.Sessions.Transport = "jwt" }, wantErr: "sessions.transport"},
		{name: "fallback without url", mutate: func(c *AppConfig) { c.Channels.FallbackURL = "" }, wantErr: "channels.fallbackUrl"},
		{name: "not_found without url", mutate: func(c *AppConfig) { c.Channels.MissPolicy = "not_found"; c.Channels.FallbackURL = "" }},
		{name: "password without user", mutate: func(c *AppConfig) { c.Upstream.Password = "x" }, wantErr: "upstream.username"},
		{name: "orphan extension", mutate: func(c *AppConfig) { c.Upstream.Extensions = map[string]string{"radio": "mp3"} }, wantErr: "upstream.extensions.radio"},
		{name: "sampling rate above one", mutate: func(c *AppConfig) { c.Telemetry.SamplingRate = 1.5 }, wantErr: "telemetry.samplingRate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Cache.Dir = "/tmp/cache"
			tt.mutate(&cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := Defaults()
	cfg.Upstream.BaseURL = "http://user:pw@origin.example"
	cfg.Upstream.Password = "secret"
	cfg.Upstream.Headers = map[string]string{"Authorization": "Basic abc", "X-Client": "1"}
	cfg.Sessions.Redis.Password = "redis-secret"

	out := cfg.Redacted()
	assert.Equal(t, "***", out.Upstream.Password)
	assert.Equal(t, "***", out.Sessions.Redis.Password)
	assert.Equal(t, "http://origin.example", out.Upstream.BaseURL)
	assert.Equal(t, "***", out.Upstream.Headers["Authorization"])
	assert.Equal(t, "1", out.Upstream.Headers["X-Client"])
	// the original is untouched
	assert.Equal(t, "Basic abc", cfg.Upstream.Headers["Authorization"])
}

func TestParseStringMap(t *testing.T) {
	got, err := parseStringMap("a=1, b = 2,,")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, got)

	_, err = parseStringMap("a=1,broken")
	assert.Error(t, err)
}
