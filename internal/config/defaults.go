// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

const (
	DefaultBaseURL    = "http://starshare.org:80"
	DefaultUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	DefaultMaxDevices = 20
	DefaultCacheTTL   = 60 * time.Second
	DefaultSessionTTL = 24 * time.Hour
	DefaultChannelTTL = 5 * time.Minute

	defaultReadTimeout     = 60 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 120 * time.Second
	defaultMaxHeaderBytes  = 1 << 20 // 1 MB
	defaultShutdownTimeout = 15 * time.Second
)

// Defaults returns the configuration used when neither a file nor the
// environment overrides a value.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:      "info",
		LogService:    "streamgate",
		DataDir:       "data",
		MetricsListen: ":9090",
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			IdleTimeout:     defaultIdleTimeout,
			MaxHeaderBytes:  defaultMaxHeaderBytes,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Upstream: UpstreamConfig{
			BaseURL: DefaultBaseURL,
			Paths: map[string]string{
				"live":   "/live/42166/42166",
				"movies": "/movies",
				"series": "/series",
			},
			UserAgent:          DefaultUserAgent,
			ProbeMethod:        "HEAD",
			RedirectStatus:     302,
			Timeout:            10 * time.Second,
			ProbeRate:          50,
			ProbeBurst:         100,
			BreakerFailures:    5,
			BreakerOpenTimeout: 30 * time.Second,
		},
		Gateway: GatewayConfig{
			MaxDevices: DefaultMaxDevices,
			CacheTTL:   DefaultCacheTTL,
		},
		Cache: CacheConfig{
			Backend:         "memory",
			JanitorInterval: 5 * time.Minute,
		},
		Sessions: SessionsConfig{
			Backend:       "memory",
			TTL:           DefaultSessionTTL,
			SweepInterval: time.Hour,
			Transport:     "cookie",
			CookieName:    "sessionId",
			HeaderName:    "X-Session-Id",
		},
		Channels: ChannelsConfig{
			TTL:              DefaultChannelTTL,
			MissPolicy:       "fallback",
			FallbackURL:      "https://tvtelugu.github.io/er/720p.m3u8",
			FetchTimeout:     10 * time.Second,
			MaxPlaylistBytes: 4 << 20,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 600,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			Environment:  "production",
			SamplingRate: 1.0,
		},
	}
}
