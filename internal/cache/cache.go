// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package cache stores resolved upstream URLs for a short time so repeated
// requests for the same content skip the upstream probe.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCorrupt marks an entry that exists but cannot be decoded. ResolutionCache
// treats it as a miss.
var ErrCorrupt = errors.New("corrupt cache entry")

// Entry is one cached resolution.
type Entry struct {
	URL        string    `json:"url"`
	ResolvedAt time.Time `json:"resolvedAt"`
}

// Fresh reports whether e is still usable at now for the given ttl.
func (e Entry) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.ResolvedAt) < ttl
}

// Store persists entries by key. Get returns found=false for missing keys and
// an error wrapping ErrCorrupt for undecodable ones. Put overwrites; ttl is a
// hint for backends with native expiry.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, key string, e Entry, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
	// Backend names the implementation for metrics and logs.
	Backend() string
}

// Evicter is implemented by stores that need periodic removal of expired
// entries because the backend has no native expiry.
type Evicter interface {
	Evict(ctx context.Context, now time.Time) (int, error)
}
