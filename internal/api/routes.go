// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/streamgate/internal/control/http/problem"
	"github.com/ManuGH/streamgate/internal/control/middleware"
	"github.com/ManuGH/streamgate/internal/gateway"
)

func (s *Server) routes() http.Handler {
	r := s.newRouter()
	s.registerPublicRoutes(r)
	s.registerStreamRoutes(r)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		problem.Write(w, r, http.StatusNotFound, "system/not_found", "Not Found", "NOT_FOUND",
			"No such endpoint.", nil)
	})
	return r
}

func (s *Server) newRouter() chi.Router {
	return middleware.NewRouter(middleware.StackConfig{
		EnableSecurityHeaders: true,

		EnableMetrics:  true,
		TracingService: s.tracingService(),
		EnableLogging:  true,
	})
}

func (s *Server) tracingService() string {
	if !s.cfg.Telemetry.Enabled {
		return ""
	}
	if s.cfg.LogService != "" {
		return s.cfg.LogService
	}
	return "streamgate"
}

func (s *Server) registerPublicRoutes(r chi.Router) {
	r.Get("/healthz", s.deps.Health.ServeHealth)
	r.Get("/readyz", s.deps.Health.ServeReady)
}

// registerStreamRoutes mounts the stream endpoints under the per-client limiter.
// The static playlist route takes precedence over the {contentType} pattern.
func (s *Server) registerStreamRoutes(r chi.Router) {
	r.Route("/api", func(api chi.Router) {
		if s.cfg.RateLimit.Enabled && s.cfg.RateLimit.RequestsPerMinute > 0 {
			api.Use(middleware.APIRateLimit(s.cfg.RateLimit.RequestsPerMinute))
		}

		if s.deps.Channels != nil {
			api.With(middleware.PublicCORS()).Handle("/live.m3u8", s.deps.Channels)
		}
		if s.deps.Gateway != nil {
			api.Handle("/{"+gateway.ContentTypeParam+"}", s.deps.Gateway)
		}
	})
}
