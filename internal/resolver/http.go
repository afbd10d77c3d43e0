// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ManuGH/streamgate/internal/config"
	"github.com/ManuGH/streamgate/internal/log"
	"github.com/ManuGH/streamgate/internal/metrics"
	"github.com/ManuGH/streamgate/internal/platform/httpx"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const defaultProbeTimeout = 10 * time.Second

// HTTPResolver probes the upstream origin with a single non-following request.
type HTTPResolver struct {
	baseURL        string
	paths          map[string]string
	extensions     map[string]string
	method         string
	redirectStatus int
	timeout        time.Duration
	username       string
	password       string
	headers        http.Header

	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[Resolved]
	now     func() time.Time
}

// Option customizes an HTTPResolver.
type Option func(*HTTPResolver)

// WithHTTPClient replaces the probe client. The client must not follow redirects.
func WithHTTPClient(c *http.Client) Option {
	return func(r *HTTPResolver) { r.client = c }
}

// WithClock sets the time source used for ResolvedAt.
func WithClock(now func() time.Time) Option {
	return func(r *HTTPResolver) { r.now = now }
}

// NewHTTPResolver builds a resolver from the upstream configuration.
func NewHTTPResolver(cfg config.UpstreamConfig, opts ...Option) *HTTPResolver {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	method := strings.ToUpper(cfg.ProbeMethod)
	if method == "" {
		method = http.MethodHead
	}
	redirectStatus := cfg.RedirectStatus
	if redirectStatus == 0 {
		redirectStatus = http.StatusFound
	}

	headers := make(http.Header)
	headers.Set("Icy-MetaData", "1")
	headers.Set("Accept-Encoding", "identity")
	headers.Set("Connection", "Keep-Alive")
	headers.Set("User-Agent", cfg.UserAgent)
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}

	r := &HTTPResolver{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		paths:          cfg.Paths,
		extensions:     cfg.Extensions,
		method:         method,
		redirectStatus: redirectStatus,
		timeout:        timeout,
		username:       cfg.Username,
		password:       cfg.Password,
		headers:        headers,
		breaker:        newBreaker(cfg.BreakerFailures, cfg.BreakerOpenTimeout),
		now:            time.Now,
	}
	if cfg.ProbeRate > 0 {
		burst := max(cfg.ProbeBurst, 1)
		r.limiter = rate.NewLimiter(rate.Limit(cfg.ProbeRate), burst)
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		r.client = httpx.NewClient(timeout, httpx.WithoutRedirects(), httpx.WithTracing("upstream.probe"))
	}
	return r
}

// Target returns the upstream URL probed for ref.
func (r *HTTPResolver) Target(ref Reference) (string, error) {
	prefix, ok := r.paths[ref.Type]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownContentType, ref.Type)
	}
	ext := r.extensions[ref.Type]
	if ext == "" {
		ext = "mp4"
		if ref.Type == "live" {
			ext = "ts"
		}
	}
	return r.baseURL + prefix + "/" + ref.ID + "." + ext, nil
}

// Resolve issues one probe for ref. It never retries and never follows the redirect.
func (r *HTTPResolver) Resolve(ctx context.Context, ref Reference) (Resolved, error) {
	target, err := r.Target(ref)
	if err != nil {
		return Resolved{}, err
	}
	masked := config.MaskURL(target)
	logger := log.WithComponentFromContext(ctx, "resolver")

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	res, err := r.breaker.Execute(func() (Resolved, error) {
		return r.probe(ctx, target, masked)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = &Error{Target: masked, Reason: ReasonCircuitOpen, Err: err}
	}
	metrics.ObserveResolve(ref.Type, string(ReasonOf(err)), time.Since(start))

	if err != nil {
		logger.Warn().
			Err(err).
			Str("event", "resolve.failed").
			Str("content_type", ref.Type).
			Str("target", masked).
			Str("reason", string(ReasonOf(err))).
			Dur("duration", time.Since(start)).
			Msg("upstream did not resolve content")
		return Resolved{}, err
	}

	logger.Debug().
		Str("event", "resolve.succeeded").
		Str("content_type", ref.Type).
		Str("target", masked).
		Dur("duration", time.Since(start)).
		Msg("upstream redirect captured")
	return res, nil
}

func (r *HTTPResolver) probe(ctx context.Context, target, masked string) (Resolved, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return Resolved{}, &Error{Target: masked, Reason: ReasonThrottled, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, nil)
	if err != nil {
		return Resolved{}, &Error{Target: masked, Reason: ReasonUnreachable, Err: err}
	}
	req.Header = r.headers.Clone()
	if r.username != "" {
		req.SetBasicAuth(r.username, r.password)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		reason := ReasonUnreachable
		if isTimeout(err) {
			reason = ReasonTimeout
		}
		return Resolved{}, &Error{Target: masked, Reason: reason, Err: err}
	}
	// With GET the body is the stream itself; it is never read.
	_ = resp.Body.Close()

	if resp.StatusCode != r.redirectStatus {
		return Resolved{}, &Error{Target: masked, Status: resp.StatusCode, Reason: ReasonNoRedirect}
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return Resolved{}, &Error{Target: masked, Status: resp.StatusCode, Reason: ReasonMissingLocation}
	}
	return Resolved{URL: location, ResolvedAt: r.now()}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
