// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/streamgate/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upstreamConfig(baseURL string) config.UpstreamConfig {
	cfg := config.Defaults().Upstream
	cfg.BaseURL = baseURL
	cfg.ProbeRate = 0
	cfg.Timeout = 2 * time.Second
	return cfg
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID("12345"))
	assert.True(t, ValidID("a.b-c_D"))
	assert.False(t, ValidID(""))
	assert.False(t, ValidID("../etc/passwd"))
	assert.False(t, ValidID("a b"))
	assert.False(t, ValidID(string(make([]byte, 129))))
}

func TestTarget(t *testing.T) {
	cfg := upstreamConfig("http://origin.example:80/")
	cfg.Extensions = map[string]string{"series": "mkv"}
	r := NewHTTPResolver(cfg)

	tests := []struct {
		ref  Reference
		want string
	}{
		{Reference{"live", "12345"}, "http://origin.example:80/live/42166/42166/12345.ts"},
		{Reference{"movies", "777"}, "http://origin.example:80/movies/777.mp4"},
		{Reference{"series", "9"}, "http://origin.example:80/series/9.mkv"},
	}
	for _, tt := range tests {
		got, err := r.Target(tt.ref)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := r.Target(Reference{"documentaries", "1"})
	assert.ErrorIs(t, err, ErrUnknownContentType)
}

func TestResolve_CapturesLocationWithoutFollowing(t *testing.T) {
	var followed atomic.Bool
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/cdn/stream.ts" {
			followed.Store(true)
			return
		}
		got = r.Clone(context.Background())
		w.Header().Set("Location", "/cdn/stream.ts?token=abc")
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := upstreamConfig(srv.URL)
	cfg.Username = "user"
	cfg.Password = "pass"
	cfg.Headers = map[string]string{"X-Client": "gateway"}
	r := NewHTTPResolver(cfg, WithClock(func() time.Time { return fixed }))

	res, err := r.Resolve(context.Background(), Reference{Type: "live", ID: "12345"})
	require.NoError(t, err)

	assert.Equal(t, "/cdn/stream.ts?token=abc", res.URL, "location is returned verbatim")
	assert.Equal(t, fixed, res.ResolvedAt)
	assert.False(t, followed.Load(), "redirect must not be followed")

	require.NotNil(t, got)
	assert.Equal(t, http.MethodHead, got.Method)
	assert.Equal(t, "/live/42166/42166/12345.ts", got.URL.Path)
	assert.Equal(t, "1", got.Header.Get("Icy-MetaData"))
	assert.Equal(t, "identity", got.Header.Get("Accept-Encoding"))
	assert.Equal(t, config.DefaultUserAgent, got.Header.Get("User-Agent"))
	assert.Equal(t, "gateway", got.Header.Get("X-Client"))
	user, pass, ok := got.BasicAuth()
	assert.True(t, ok)
	assert.Equal(t, "user", user)
	assert.Equal(t, "pass", pass)
}

func TestResolve_GETProbe(t *testing.T) {
	var method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.Header().Set("Location", "http://cdn.example/x")
		w.WriteHeader(http.StatusFound)
		_, _ = w.Write([]byte("stream bytes that are never read"))
	}))
	defer srv.Close()

	cfg := upstreamConfig(srv.URL)
	cfg.ProbeMethod = "get"
	res, err := NewHTTPResolver(cfg).Resolve(context.Background(), Reference{Type: "movies", ID: "1"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, method)
	assert.Equal(t, "http://cdn.example/x", res.URL)
}

func TestResolve_Failures(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantReason Reason
		wantStatus int
	}{
		{
			name:       "200 is not a redirect",
			handler:    func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) },
			wantReason: ReasonNoRedirect,
			wantStatus: http.StatusOK,
		},
		{
			name: "301 is not the configured redirect",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Location", "http://cdn.example/x")
				w.WriteHeader(http.StatusMovedPermanently)
			},
			wantReason: ReasonNoRedirect,
			wantStatus: http.StatusMovedPermanently,
		},
		{
			name:       "302 without location",
			handler:    func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusFound) },
			wantReason: ReasonMissingLocation,
			wantStatus: http.StatusFound,
		},
		{
			name:       "upstream 404",
			handler:    func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) },
			wantReason: ReasonNoRedirect,
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewHTTPResolver(upstreamConfig(srv.URL)).Resolve(context.Background(), Reference{Type: "movies", ID: "1"})
			require.Error(t, err)

			var rerr *Error
			require.True(t, errors.As(err, &rerr))
			assert.Equal(t, tt.wantReason, rerr.Reason)
			assert.Equal(t, tt.wantStatus, rerr.Status)
		})
	}
}

func TestResolve_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := NewHTTPResolver(upstreamConfig(addr)).Resolve(context.Background(), Reference{Type: "movies", ID: "1"})
	assert.Equal(t, ReasonUnreachable, ReasonOf(err))
}

func TestResolve_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := upstreamConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	_, err := NewHTTPResolver(cfg).Resolve(context.Background(), Reference{Type: "movies", ID: "1"})
	assert.Equal(t, ReasonTimeout, ReasonOf(err))
}

func TestResolve_UserInfoMaskedInError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := upstreamConfig("http://secret:hunter2@" + srv.Listener.Addr().String())
	_, err := NewHTTPResolver(cfg).Resolve(context.Background(), Reference{Type: "movies", ID: "1"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "hunter2")
}

func TestResolve_BreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := upstreamConfig(srv.URL)
	cfg.BreakerFailures = 2
	cfg.BreakerOpenTimeout = time.Minute
	r := NewHTTPResolver(cfg)

	ref := Reference{Type: "movies", ID: "1"}
	for range 2 {
		_, err := r.Resolve(context.Background(), ref)
		assert.Equal(t, ReasonNoRedirect, ReasonOf(err))
	}
	_, err := r.Resolve(context.Background(), ref)
	assert.Equal(t, ReasonCircuitOpen, ReasonOf(err))
	assert.Equal(t, int32(2), hits.Load(), "open breaker must not reach upstream")
}

func TestResolve_NotFoundDoesNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := upstreamConfig(srv.URL)
	cfg.BreakerFailures = 1
	r := NewHTTPResolver(cfg)

	for range 5 {
		_, err := r.Resolve(context.Background(), Reference{Type: "movies", ID: "1"})
		assert.Equal(t, ReasonNoRedirect, ReasonOf(err))
	}
	assert.Equal(t, int32(5), hits.Load())
}

func TestResolve_Throttled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Location", "http://cdn.example/x")
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	cfg := upstreamConfig(srv.URL)
	cfg.ProbeRate = 0.001
	cfg.ProbeBurst = 1
	cfg.Timeout = 100 * time.Millisecond
	r := NewHTTPResolver(cfg)

	ref := Reference{Type: "movies", ID: "1"}
	_, err := r.Resolve(context.Background(), ref)
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), ref)
	assert.Equal(t, ReasonThrottled, ReasonOf(err))
}

func TestHealthyOutcome(t *testing.T) {
	assert.True(t, healthyOutcome(nil))
	assert.True(t, healthyOutcome(&Error{Reason: ReasonNoRedirect, Status: 404}))
	assert.False(t, healthyOutcome(&Error{Reason: ReasonNoRedirect, Status: 503}))
	assert.False(t, healthyOutcome(&Error{Reason: ReasonUnreachable}))
	assert.False(t, healthyOutcome(errors.New("boom")))
}
