// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/streamgate/internal/log"
	"github.com/ManuGH/streamgate/internal/metrics"
)

// ResolutionCache applies the freshness window on top of a Store.
type ResolutionCache struct {
	store           Store
	ttl             time.Duration
	janitorInterval time.Duration
	now             func() time.Time
}

// Option customizes a ResolutionCache.
type Option func(*ResolutionCache)

// WithClock sets the time source used for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(c *ResolutionCache) { c.now = now }
}

// WithJanitorInterval sets how often Run evicts expired entries.
func WithJanitorInterval(d time.Duration) Option {
	return func(c *ResolutionCache) { c.janitorInterval = d }
}

// NewResolutionCache wraps store with a freshness window of ttl.
func NewResolutionCache(store Store, ttl time.Duration, opts ...Option) *ResolutionCache {
	c := &ResolutionCache{
		store:           store,
		ttl:             ttl,
		janitorInterval: 5 * time.Minute,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the freshness window.
func (c *ResolutionCache) TTL() time.Duration { return c.ttl }

// Get returns the entry for key if it is present and fresh. Corrupt entries
// are reported as misses; other storage failures are returned.
func (c *ResolutionCache) Get(ctx context.Context, key string) (Entry, bool, error) {
	backend := c.store.Backend()
	e, ok, err := c.store.Get(ctx, key)
	switch {
	case errors.Is(err, ErrCorrupt):
		metrics.RecordCacheLookup(backend, "corrupt")
		logger := log.WithComponentFromContext(ctx, "cache")
		logger.Warn().
			Err(err).
			Str("event", "cache.corrupt_entry").
			Str("backend", backend).
			Str("key", key).
			Msg("ignoring unreadable cache entry")
		return Entry{}, false, nil
	case err != nil:
		metrics.RecordCacheLookup(backend, "error")
		return Entry{}, false, fmt.Errorf("cache get %s: %w", key, err)
	case !ok:
		metrics.RecordCacheLookup(backend, "miss")
		return Entry{}, false, nil
	case !e.Fresh(c.now(), c.ttl):
		metrics.RecordCacheLookup(backend, "expired")
		return Entry{}, false, nil
	}
	metrics.RecordCacheLookup(backend, "hit")
	return e, true, nil
}

// Put overwrites the entry for key.
func (c *ResolutionCache) Put(ctx context.Context, key string, e Entry) error {
	if err := c.store.Put(ctx, key, e, c.ttl); err != nil {
		metrics.RecordCacheWriteError(c.store.Backend())
		return fmt.Errorf("cache put %s: %w", key, err)
	}
	return nil
}

// Ping checks the backing store.
func (c *ResolutionCache) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

// Close releases the backing store.
func (c *ResolutionCache) Close() error {
	return c.store.Close()
}

// Run evicts expired entries until ctx is done. It returns immediately for
// stores with native expiry.
func (c *ResolutionCache) Run(ctx context.Context) error {
	ev, ok := c.store.(Evicter)
	if !ok || c.janitorInterval <= 0 {
		return nil
	}
	logger := log.WithComponent("cache")

	ticker := time.NewTicker(c.janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := ev.Evict(ctx, c.now())
			metrics.RecordCacheEvictions(c.store.Backend(), n)
			if err != nil {
				logger.Warn().Err(err).Str("event", "cache.evict_failed").Str("backend", c.store.Backend()).Msg("cache eviction failed")
				continue
			}
			if n > 0 {
				logger.Debug().Str("event", "cache.evicted").Int("count", n).Msg("evicted expired cache entries")
			}
		}
	}
}
