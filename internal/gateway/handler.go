// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package gateway serves the stream endpoints: it validates the request,
// admits the session, resolves the content (cache first) and redirects.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/ManuGH/streamgate/internal/admission"
	"github.com/ManuGH/streamgate/internal/cache"
	controlhttp "github.com/ManuGH/streamgate/internal/control/http"
	"github.com/ManuGH/streamgate/internal/control/http/problem"
	"github.com/ManuGH/streamgate/internal/log"
	"github.com/ManuGH/streamgate/internal/metrics"
	"github.com/ManuGH/streamgate/internal/resolver"
	"github.com/ManuGH/streamgate/internal/session"
	"github.com/ManuGH/streamgate/internal/telemetry"
)

// ContentTypeParam is the chi URL parameter carrying the content type.
const ContentTypeParam = "contentType"

// Outcome labels for the gateway request counter.
const (
	outcomeRedirect         = "redirect"
	outcomeMethodNotAllowed = "method_not_allowed"
	outcomeUnknownType      = "unknown_type"
	outcomeInvalidID        = "invalid_id"
	outcomeDeviceLimit      = "device_limit"
	outcomeUpstream         = "upstream_unavailable"
	outcomeInternal         = "internal_error"
	outcomeCanceled         = "canceled"
)

// Deps are the collaborators of a Handler. All are required.
type Deps struct {
	// ContentTypes are the accepted {contentType} values.
	ContentTypes []string
	Resolver     resolver.Resolver
	Cache        *cache.ResolutionCache
	Sessions     *session.Manager
	Transport    session.Transport
	Admission    *admission.Controller
}

// Handler answers GET /api/{contentType}?id= with a 307 to the resolved URL.
type Handler struct {
	types     []string
	typeSet   map[string]struct{}
	resolver  resolver.Resolver
	cache     *cache.ResolutionCache
	sessions  *session.Manager
	transport session.Transport
	admission *admission.Controller

	flight singleflight.Group
	now    func() time.Time
	tracer trace.Tracer
}

// Option configures a Handler.
type Option func(*Handler)

// WithClock overrides the time source used to stamp fresh resolutions.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// New returns a Handler wired to deps.
func New(deps Deps, opts ...Option) *Handler {
	types := append([]string(nil), deps.ContentTypes...)
	sort.Strings(types)
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}

	h := &Handler{
		types:     types,
		typeSet:   set,
		resolver:  deps.Resolver,
		cache:     deps.Cache,
		sessions:  deps.Sessions,
		transport: deps.Transport,
		admission: deps.Admission,
		now:       time.Now,
		tracer:    telemetry.Tracer("streamgate/gateway"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ContentTypes returns the accepted content types, sorted.
func (h *Handler) ContentTypes() []string {
	return append([]string(nil), h.types...)
}

// ServeHTTP runs one request through validation, session lookup, admission,
// cache lookup, resolution and commit. Nothing is mutated before the commit,
// so a rejected or failed request never consumes a device slot.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	contentType := chi.URLParam(r, ContentTypeParam)

	ctx, span := h.tracer.Start(r.Context(), "gateway.serve")
	defer span.End()
	r = r.WithContext(ctx)

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		h.fail(w, r, span, contentType, outcomeMethodNotAllowed, http.StatusMethodNotAllowed,
			"gateway/method_not_allowed", "Method Not Allowed", "METHOD_NOT_ALLOWED",
			"Only GET is supported.", nil)
		return
	}

	if _, ok := h.typeSet[contentType]; !ok {
		h.fail(w, r, span, "unknown", outcomeUnknownType, http.StatusNotFound,
			"gateway/unknown_content_type", "Not Found", "UNKNOWN_CONTENT_TYPE",
			"The requested content type is not served by this gateway.",
			map[string]any{"contentTypes": h.types})
		return
	}

	ref := resolver.Reference{Type: contentType, ID: r.URL.Query().Get("id")}
	if !resolver.ValidID(ref.ID) {
		h.fail(w, r, span, contentType, outcomeInvalidID, http.StatusBadRequest,
			"gateway/invalid_id", "Bad Request", "INVALID_ID",
			"The id query parameter is missing or contains unsupported characters.", nil)
		return
	}

	sess, err := h.sessions.GetOrCreate(ctx, h.transport.Ref(r))
	if err != nil {
		h.internal(w, r, span, contentType, "load session", err)
		return
	}
	ctx = log.ContextWithSessionID(ctx, sess.ID)
	r = r.WithContext(ctx)

	if d := h.admission.Admit(sess); !d.Allowed {
		h.deny(w, r, span, contentType, d)
		return
	}

	key := cache.Key(ref.Type, ref.ID)
	entry, hit, err := h.cache.Get(ctx, key)
	if err != nil {
		h.internal(w, r, span, contentType, "cache lookup", err)
		return
	}

	location := entry.URL
	if !hit {
		res, err := h.resolve(ctx, key, ref)
		if err != nil {
			if ctx.Err() != nil {
				// Client went away; the shared probe keeps running for the others.
				span.SetStatus(codes.Error, "client canceled")
				metrics.RecordGatewayRequest(contentType, outcomeCanceled)
				return
			}
			h.fail(w, r, span, contentType, outcomeUpstream, http.StatusBadGateway,
				"gateway/upstream_unavailable", "Bad Gateway", "UPSTREAM_UNAVAILABLE",
				"The upstream origin did not provide a playable location.", nil)
			return
		}
		location = res.URL
	}

	committed, err := h.sessions.Commit(ctx, sess, h.admission.Check)
	if err != nil {
		if errors.Is(err, admission.ErrDeviceLimitReached) {
			// Another request on the same session took the last slot.
			h.deny(w, r, span, contentType, h.admission.Admit(session.Session{ActiveDevices: h.admission.MaxDevices()}))
			return
		}
		h.internal(w, r, span, contentType, "commit session", err)
		return
	}
	if committed.Created() {
		h.transport.Emit(w, committed)
	}

	span.SetAttributes(telemetry.GatewayAttributes(contentType, hit, committed.Created(), committed.ActiveDevices)...)
	span.SetStatus(codes.Ok, "")
	metrics.RecordGatewayRequest(contentType, outcomeRedirect)

	logger := log.WithComponentFromContext(ctx, "gateway")
	logger.Debug().
		Str("event", "gateway.redirect").
		Str("content_type", contentType).
		Bool("cache_hit", hit).
		Bool("session_created", committed.Created()).
		Int("active_devices", committed.ActiveDevices).
		Msg("redirecting to resolved location")

	w.Header().Set("Location", location)
	w.Header().Set(controlhttp.HeaderCacheControl, "no-store")
	w.WriteHeader(http.StatusTemporaryRedirect)
}

// resolve runs one probe per key no matter how many requests miss at once.
// The probe and the cache write run detached from the caller so a client
// disconnect cannot abort them halfway; the resolver bounds them with its timeout.
func (h *Handler) resolve(ctx context.Context, key string, ref resolver.Reference) (resolver.Resolved, error) {
	detached := context.WithoutCancel(ctx)
	ch := h.flight.DoChan(key, func() (any, error) {
		res, err := h.resolver.Resolve(detached, ref)
		if err != nil {
			return resolver.Resolved{}, err
		}
		if res.ResolvedAt.IsZero() {
			res.ResolvedAt = h.now()
		}
		if err := h.cache.Put(detached, key, cache.Entry{URL: res.URL, ResolvedAt: res.ResolvedAt}); err != nil {
			logger := log.WithComponentFromContext(detached, "gateway")
			logger.Warn().
				Err(err).
				Str("event", "cache.write_failed").
				Str("content_type", ref.Type).
				Msg("resolved location not cached")
		}
		return res, nil
	})

	_, span := h.tracer.Start(ctx, "gateway.resolve")
	defer span.End()

	select {
	case <-ctx.Done():
		span.SetStatus(codes.Error, "canceled")
		return resolver.Resolved{}, ctx.Err()
	case out := <-ch:
		if out.Shared {
			metrics.RecordResolveShared()
		}
		span.SetAttributes(telemetry.ResolveAttributes(string(resolver.ReasonOf(out.Err)), out.Shared)...)
		if out.Err != nil {
			span.SetStatus(codes.Error, "resolve failed")
			return resolver.Resolved{}, out.Err
		}
		return out.Val.(resolver.Resolved), nil
	}
}

func (h *Handler) deny(w http.ResponseWriter, r *http.Request, span trace.Span, contentType string, d admission.Decision) {
	metrics.RecordAdmissionReject(string(d.Reason))

	logger := log.WithComponentFromContext(r.Context(), "gateway")
	logger.Info().
		Str("event", "gateway.denied").
		Str("content_type", contentType).
		Str("reason", string(d.Reason)).
		Int("limit", d.Limit).
		Int("active_devices", d.Active).
		Msg("device limit reached")

	h.fail(w, r, span, contentType, outcomeDeviceLimit, http.StatusTooManyRequests,
		"gateway/device_limit_reached", "Too Many Requests", string(admission.ReasonDeviceLimitReached),
		"This session has reached its device limit.",
		map[string]any{"limit": d.Limit})
}

func (h *Handler) internal(w http.ResponseWriter, r *http.Request, span trace.Span, contentType, op string, err error) {
	logger := log.WithComponentFromContext(r.Context(), "gateway")
	logger.Error().
		Err(err).
		Str("event", "gateway.internal_error").
		Str("op", op).
		Str("content_type", contentType).
		Msg("request failed")

	span.RecordError(err)
	h.fail(w, r, span, contentType, outcomeInternal, http.StatusInternalServerError,
		"system/internal_error", "Internal Server Error", "INTERNAL_ERROR",
		"An unexpected error occurred. Please try again later.", nil)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, span trace.Span, contentType, outcome string, status int, problemType, title, code, detail string, extra map[string]any) {
	metrics.RecordGatewayRequest(contentType, outcome)
	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, code)
	}
	problem.Write(w, r, status, problemType, title, code, detail, extra)
}
