// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api assembles the public HTTP surface of streamgate.
package api

import (
	"net/http"

	"github.com/ManuGH/streamgate/internal/config"
	"github.com/ManuGH/streamgate/internal/health"
)

// Deps are the handlers the Server routes to.
type Deps struct {
	// Gateway serves /api/{contentType}; it reads the chi "contentType" URL param.
	Gateway http.Handler
	// Channels serves /api/live.m3u8.
	Channels http.Handler
	Health   *health.Manager
}

// Server represents the HTTP API server for streamgate.
type Server struct {
	cfg     config.AppConfig
	deps    Deps
	handler http.Handler
}

// New builds the Server and its routes.
func New(cfg config.AppConfig, deps Deps) *Server {
	if deps.Health == nil {
		deps.Health = health.NewManager(cfg.Version)
	}
	s := &Server{cfg: cfg, deps: deps}
	s.handler = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}
