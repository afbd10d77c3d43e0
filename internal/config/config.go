// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// AppConfig is the process-wide configuration. It is loaded once at startup and
// treated as immutable afterwards.
type AppConfig struct {
	Version string `yaml:"-"`

	LogLevel      string `yaml:"logLevel" validate:"omitempty,oneof=trace debug info warn error"`
	LogService    string `yaml:"logService"`
	DataDir       string `yaml:"dataDir" validate:"required"`
	MetricsListen string `yaml:"metricsListen"`

	Server    ServerConfig    `yaml:"server"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Cache     CacheConfig     `yaml:"cache"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Channels  ChannelsConfig  `yaml:"channels"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string `yaml:"listenAddr" validate:"required"`

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration `yaml:"readTimeout" validate:"gt=0"`

	// WriteTimeout is the maximum duration before timing out writes of the response
	WriteTimeout time.Duration `yaml:"writeTimeout" validate:"gte=0"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration `yaml:"idleTimeout" validate:"gt=0"`

	// MaxHeaderBytes controls the maximum number of bytes the server will read parsing the request header's keys and values
	MaxHeaderBytes int `yaml:"maxHeaderBytes" validate:"gt=0"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" validate:"gte=1s"`
}

// UpstreamConfig describes the IPTV origin that resolves content IDs.
type UpstreamConfig struct {
	BaseURL string `yaml:"baseUrl" validate:"required,url"`
	// Paths maps a content type (the {contentType} URL segment) to its upstream path prefix.
	Paths map[string]string `yaml:"paths" validate:"required,min=1,dive,keys,required,alphanum,lowercase,endkeys,required,startswith=/"`
	// Extensions optionally overrides the file extension per content type.
	Extensions map[string]string `yaml:"extensions" validate:"omitempty,dive,keys,required,endkeys,required,alphanum"`

	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	UserAgent string            `yaml:"userAgent" validate:"required"`
	Headers   map[string]string `yaml:"headers"`

	ProbeMethod    string        `yaml:"probeMethod" validate:"oneof=HEAD GET"`
	RedirectStatus int           `yaml:"redirectStatus" validate:"min=300,max=399"`
	Timeout        time.Duration `yaml:"timeout" validate:"gt=0"`

	// ProbeRate limits upstream probes per second (0 disables the limiter).
	ProbeRate  float64 `yaml:"probeRate" validate:"gte=0"`
	ProbeBurst int     `yaml:"probeBurst" validate:"gte=0"`

	// BreakerFailures is the number of consecutive failed probes that opens the breaker (0 disables it).
	BreakerFailures    int           `yaml:"breakerFailures" validate:"gte=0"`
	BreakerOpenTimeout time.Duration `yaml:"breakerOpenTimeout" validate:"gte=0"`
}

// GatewayConfig holds the admission and caching knobs of the stream endpoints.
type GatewayConfig struct {
	MaxDevices int           `yaml:"maxDevices" validate:"min=1"`
	CacheTTL   time.Duration `yaml:"cacheTTL" validate:"gt=0"`
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
}

// CacheConfig selects the resolution cache storage.
type CacheConfig struct {
	Backend         string        `yaml:"backend" validate:"oneof=memory file redis badger"`
	Dir             string        `yaml:"dir"`
	JanitorInterval time.Duration `yaml:"janitorInterval" validate:"gte=0"`
	Redis           RedisConfig   `yaml:"redis"`
}

// SessionsConfig selects the session store and the transport carrying the session reference.
type SessionsConfig struct {
	Backend       string        `yaml:"backend" validate:"oneof=memory redis"`
	TTL           time.Duration `yaml:"ttl" validate:"gt=0"`
	SweepInterval time.Duration `yaml:"sweepInterval" validate:"gt=0"`
	Transport     string        `yaml:"transport" validate:"oneof=cookie header"`
	CookieName    string        `yaml:"cookieName" validate:"required"`
	CookieSecure  bool          `yaml:"cookieSecure"`
	HeaderName    string        `yaml:"headerName" validate:"required"`
	Redis         RedisConfig   `yaml:"redis"`
}

// ChannelsConfig configures the named channel directory behind /api/live.m3u8.
type ChannelsConfig struct {
	Path             string        `yaml:"path"`
	TTL              time.Duration `yaml:"ttl" validate:"gt=0"`
	Watch            bool          `yaml:"watch"`
	MissPolicy       string        `yaml:"missPolicy" validate:"oneof=fallback not_found"`
	FallbackURL      string        `yaml:"fallbackUrl" validate:"omitempty,url"`
	FetchTimeout     time.Duration `yaml:"fetchTimeout" validate:"gt=0"`
	MaxPlaylistBytes int64         `yaml:"maxPlaylistBytes" validate:"gt=0"`
}

// RateLimitConfig configures the per-client request limiter on /api.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute" validate:"gte=0"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter" validate:"oneof=grpc http"`
	Endpoint     string  `yaml:"endpoint"`
	Environment  string  `yaml:"environment"`
	SamplingRate float64 `yaml:"samplingRate" validate:"gte=0,lte=1"`
}
