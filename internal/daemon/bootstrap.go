// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon wires the gateway components together and runs them.
package daemon

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/ManuGH/streamgate/internal/admission"
	"github.com/ManuGH/streamgate/internal/api"
	"github.com/ManuGH/streamgate/internal/cache"
	"github.com/ManuGH/streamgate/internal/channels"
	"github.com/ManuGH/streamgate/internal/config"
	"github.com/ManuGH/streamgate/internal/gateway"
	"github.com/ManuGH/streamgate/internal/health"
	"github.com/ManuGH/streamgate/internal/log"
	"github.com/ManuGH/streamgate/internal/platform/httpx"
	"github.com/ManuGH/streamgate/internal/resolver"
	"github.com/ManuGH/streamgate/internal/session"
	"github.com/ManuGH/streamgate/internal/telemetry"
)

// Runtime is the assembled service: stores, handlers and the API server.
type Runtime struct {
	Config    config.AppConfig
	API       *api.Server
	Cache     *cache.ResolutionCache
	Sessions  *session.Manager
	Channels  *channels.Directory
	Telemetry *telemetry.Provider
}

// Bootstrap opens the configured stores and builds every component.
// On error, whatever was already opened is closed again.
func Bootstrap(ctx context.Context, cfg config.AppConfig) (rt *Runtime, err error) {
	logger := log.WithComponent("bootstrap")
	rt = &Runtime{Config: cfg}
	defer func() {
		if err != nil {
			rt.closeAll(context.Background())
			rt = nil
		}
	}()

	if rt.Telemetry, err = telemetry.NewProvider(ctx, telemetry.ConfigFrom(cfg)); err != nil {
		logger.Warn().Err(err).Msg("telemetry initialization failed, continuing without tracing")
		rt.Telemetry, err = nil, nil
	}

	cacheStore, err := cache.Open(ctx, cfg.Cache)
	if err != nil {
		return rt, fmt.Errorf("open cache store: %w", err)
	}
	rt.Cache = cache.NewResolutionCache(cacheStore, cfg.Gateway.CacheTTL,
		cache.WithJanitorInterval(cfg.Cache.JanitorInterval))

	sessionStore, err := session.OpenStore(ctx, cfg.Sessions)
	if err != nil {
		return rt, fmt.Errorf("open session store: %w", err)
	}
	rt.Sessions = session.NewManager(sessionStore, cfg.Sessions.TTL,
		session.WithSweepInterval(cfg.Sessions.SweepInterval))

	rt.Channels = channels.NewDirectory(cfg.Channels.Path, cfg.Channels.TTL)
	if cfg.Channels.Path != "" {
		// A missing directory is not fatal; lookups retry and fall back.
		_ = rt.Channels.Load()
	}

	gw := gateway.New(gateway.Deps{
		ContentTypes: slices.Sorted(maps.Keys(cfg.Upstream.Paths)),
		Resolver:     resolver.NewHTTPResolver(cfg.Upstream),
		Cache:        rt.Cache,
		Sessions:     rt.Sessions,
		Transport: session.NewTransport(cfg.Sessions.Transport, cfg.Sessions.CookieName,
			cfg.Sessions.HeaderName, cfg.Sessions.CookieSecure, cfg.Sessions.TTL),
		Admission: admission.NewController(cfg.Gateway.MaxDevices),
	})

	playlists := channels.NewHandler(rt.Channels,
		httpx.NewClient(cfg.Channels.FetchTimeout, httpx.WithTracing("channels.playlist")),
		channels.HandlerConfig{
			MissPolicy:       cfg.Channels.MissPolicy,
			FallbackURL:      cfg.Channels.FallbackURL,
			MaxPlaylistBytes: cfg.Channels.MaxPlaylistBytes,
		})

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewPingChecker("cache_"+cacheStore.Backend(), rt.Cache.Ping))
	hm.RegisterChecker(health.NewPingChecker("sessions", rt.Sessions.Ping))
	hm.RegisterChecker(health.NewDirectoryChecker(rt.Channels))

	rt.API = api.New(cfg, api.Deps{
		Gateway:  gw,
		Channels: playlists,
		Health:   hm,
	})

	logger.Info().
		Strs("content_types", gw.ContentTypes()).
		Str("upstream", config.MaskURL(cfg.Upstream.BaseURL)).
		Str("cache_backend", cfg.Cache.Backend).
		Str("session_backend", cfg.Sessions.Backend).
		Str("session_transport", cfg.Sessions.Transport).
		Int("max_devices", cfg.Gateway.MaxDevices).
		Dur("cache_ttl", cfg.Gateway.CacheTTL).
		Msg("gateway assembled")
	return rt, nil
}

// Jobs returns the background jobs that keep the runtime tidy.
func (rt *Runtime) Jobs() []Job {
	jobs := []Job{
		{Name: "session-sweeper", Run: rt.Sessions.Run},
		{Name: "cache-janitor", Run: rt.Cache.Run},
	}
	if rt.Config.Channels.Watch && rt.Config.Channels.Path != "" {
		jobs = append(jobs, Job{Name: "channel-watcher", Run: rt.Channels.Run})
	}
	return jobs
}

// RegisterShutdownHooks hands the runtime's resources to m. Hooks run LIFO,
// so telemetry is flushed last.
func (rt *Runtime) RegisterShutdownHooks(m Manager) {
	if rt.Telemetry != nil {
		m.RegisterShutdownHook("telemetry", rt.Telemetry.Shutdown)
	}
	m.RegisterShutdownHook("cache", func(context.Context) error { return rt.Cache.Close() })
	m.RegisterShutdownHook("sessions", func(context.Context) error { return rt.Sessions.Close() })
}

func (rt *Runtime) closeAll(ctx context.Context) {
	if rt.Sessions != nil {
		_ = rt.Sessions.Close()
	}
	if rt.Cache != nil {
		_ = rt.Cache.Close()
	}
	if rt.Telemetry != nil {
		_ = rt.Telemetry.Shutdown(ctx)
	}
}
