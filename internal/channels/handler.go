// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package channels

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	controlhttp "github.com/ManuGH/streamgate/internal/control/http"
	"github.com/ManuGH/streamgate/internal/control/http/problem"
	"github.com/ManuGH/streamgate/internal/log"
	"github.com/ManuGH/streamgate/internal/metrics"
	"github.com/ManuGH/streamgate/internal/telemetry"
)

// Miss policies.
const (
	PolicyFallback = "fallback"
	PolicyNotFound = "not_found"
)

// ContentTypePlaylist is the media type of re-served HLS playlists.
const ContentTypePlaylist = "application/vnd.apple.mpegurl"

const (
	maxChannelIDLen      = 256
	defaultMaxPlaylist   = 4 << 20
	playlistCacheControl = "public, max-age=60"
)

// Lookup results, used for metrics and spans.
const (
	resultHit         = "hit"
	resultMiss        = "miss"
	resultFallback    = "fallback"
	resultUnavailable = "unavailable"
)

var errPlaylistTooLarge = errors.New("playlist exceeds size limit")

// HandlerConfig holds the miss policy and playlist limits.
type HandlerConfig struct {
	MissPolicy       string
	FallbackURL      string
	MaxPlaylistBytes int64
}

// Handler serves GET /api/live.m3u8?id=.
type Handler struct {
	dir    *Directory
	client *http.Client
	cfg    HandlerConfig
	tracer trace.Tracer
}

// NewHandler returns a Handler resolving ids against dir. client fetches playlists.
func NewHandler(dir *Directory, client *http.Client, cfg HandlerConfig) *Handler {
	if cfg.MaxPlaylistBytes <= 0 {
		cfg.MaxPlaylistBytes = defaultMaxPlaylist
	}
	if cfg.MissPolicy == "" {
		cfg.MissPolicy = PolicyFallback
	}
	return &Handler{
		dir:    dir,
		client: client,
		cfg:    cfg,
		tracer: telemetry.Tracer("streamgate/channels"),
	}
}

func (h *Handler) fallbackEnabled() bool {
	return h.cfg.MissPolicy == PolicyFallback && h.cfg.FallbackURL != ""
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "channels.serve")
	defer span.End()
	r = r.WithContext(ctx)

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		problem.Write(w, r, http.StatusMethodNotAllowed, "channels/method_not_allowed", "Method Not Allowed", "METHOD_NOT_ALLOWED",
			"Only GET and HEAD are supported.", nil)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" || len(id) > maxChannelIDLen {
		problem.Write(w, r, http.StatusBadRequest, "channels/invalid_id", "Bad Request", "INVALID_ID",
			"A channel id query parameter is required.", nil)
		return
	}

	logger := log.WithComponentFromContext(ctx, "channels")
	ch, found, err := h.dir.Lookup(id)
	switch {
	case err != nil:
		metrics.RecordChannelLookup(resultUnavailable)
		span.SetAttributes(telemetry.ChannelAttributes(resultUnavailable, false)...)
		if h.fallbackEnabled() {
			logger.Warn().Err(err).Str("event", "channels.unavailable").Msg("channel directory unavailable, serving fallback")
			h.serveFallback(w, r)
			return
		}
		span.SetStatus(codes.Error, "directory unavailable")
		problem.Write(w, r, http.StatusServiceUnavailable, "channels/unavailable", "Service Unavailable", "CHANNELS_UNAVAILABLE",
			"The channel directory is not available.", nil)
		return

	case !found:
		if h.fallbackEnabled() {
			metrics.RecordChannelLookup(resultFallback)
			span.SetAttributes(telemetry.ChannelAttributes(resultFallback, false)...)
			logger.Info().Str("event", "channels.miss").Str("channel", id).Msg("channel not found, serving fallback")
			h.serveFallback(w, r)
			return
		}
		metrics.RecordChannelLookup(resultMiss)
		span.SetAttributes(telemetry.ChannelAttributes(resultMiss, false)...)
		problem.Write(w, r, http.StatusNotFound, "channels/not_found", "Not Found", "CHANNEL_NOT_FOUND",
			"No channel with this id.", nil)
		return
	}

	metrics.RecordChannelLookup(resultHit)
	span.SetAttributes(telemetry.ChannelAttributes(resultHit, isPlaylist(ch.URL))...)
	if err := h.serve(w, r, ch.URL); err != nil {
		logger.Warn().Err(err).Str("event", "channels.fetch_failed").Str("channel", ch.Name).Msg("channel playlist fetch failed")
		if h.fallbackEnabled() {
			h.serveFallback(w, r)
			return
		}
		span.SetStatus(codes.Error, "playlist fetch failed")
		problem.Write(w, r, http.StatusBadGateway, "channels/upstream_unavailable", "Bad Gateway", "UPSTREAM_UNAVAILABLE",
			"The channel stream is not available.", nil)
	}
}

// serve proxies playlists and redirects everything else. It writes nothing
// when it returns an error.
func (h *Handler) serve(w http.ResponseWriter, r *http.Request, target string) error {
	if !isPlaylist(target) {
		w.Header().Set(controlhttp.HeaderCacheControl, playlistCacheControl)
		w.Header().Set("Location", target)
		w.WriteHeader(http.StatusTemporaryRedirect)
		return nil
	}

	body, err := h.fetch(r.Context(), target)
	metrics.RecordPlaylistFetch(err == nil)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", ContentTypePlaylist)
	w.Header().Set(controlhttp.HeaderCacheControl, playlistCacheControl)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(body)
	}
	return nil
}

// serveFallback serves the fallback stream, redirecting to it when it cannot be proxied.
func (h *Handler) serveFallback(w http.ResponseWriter, r *http.Request) {
	if err := h.serve(w, r, h.cfg.FallbackURL); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "channels")
		logger.Warn().Err(err).Str("event", "channels.fallback_failed").Msg("fallback playlist fetch failed, redirecting")
		w.Header().Set(controlhttp.HeaderCacheControl, playlistCacheControl)
		w.Header().Set("Location", h.cfg.FallbackURL)
		w.WriteHeader(http.StatusTemporaryRedirect)
	}
}

func (h *Handler) fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build playlist request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch playlist: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch playlist: upstream status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, h.cfg.MaxPlaylistBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read playlist: %w", err)
	}
	if int64(len(body)) > h.cfg.MaxPlaylistBytes {
		return nil, errPlaylistTooLarge
	}
	return body, nil
}

// isPlaylist reports whether target names an HLS playlist. The query string is ignored.
func isPlaylist(target string) bool {
	p := target
	if u, err := url.Parse(target); err == nil {
		p = u.Path
	}
	return strings.HasSuffix(strings.ToLower(p), ".m3u8")
}
