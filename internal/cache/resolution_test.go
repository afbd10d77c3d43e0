// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type failingStore struct {
	*MemoryStore
	getErr error
	putErr error
}

func (s failingStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	if s.getErr != nil {
		return Entry{}, false, s.getErr
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s failingStore) Put(ctx context.Context, key string, e Entry, ttl time.Duration) error {
	if s.putErr != nil {
		return s.putErr
	}
	return s.MemoryStore.Put(ctx, key, e, ttl)
}

func TestResolutionCache_FreshWithinTTL(t *testing.T) {
	clock := newFakeClock()
	c := NewResolutionCache(NewMemoryStore(), 60*time.Second, WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "live_1", Entry{URL: "http://cdn/1", ResolvedAt: clock.Now()}))

	clock.Advance(59 * time.Second)
	e, ok, err := c.Get(ctx, "live_1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "http://cdn/1", e.URL)

	clock.Advance(time.Second)
	_, ok, err = c.Get(ctx, "live_1")
	require.NoError(t, err)
	assert.False(t, ok, "entry exactly ttl old is stale")
}

func TestResolutionCache_PutOverwrites(t *testing.T) {
	clock := newFakeClock()
	c := NewResolutionCache(NewMemoryStore(), time.Minute, WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "k", Entry{URL: "a", ResolvedAt: clock.Now()}))
	require.NoError(t, c.Put(ctx, "k", Entry{URL: "b", ResolvedAt: clock.Now()}))

	e, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", e.URL)
}

func TestResolutionCache_CorruptIsMiss(t *testing.T) {
	store := failingStore{MemoryStore: NewMemoryStore(), getErr: ErrCorrupt}
	c := NewResolutionCache(store, time.Minute)

	_, ok, err := c.Get(context.Background(), "k")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestResolutionCache_StorageErrorsPropagate(t *testing.T) {
	boom := errors.New("disk on fire")
	store := failingStore{MemoryStore: NewMemoryStore(), getErr: boom, putErr: boom}
	c := NewResolutionCache(store, time.Minute)

	_, _, err := c.Get(context.Background(), "k")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, c.Put(context.Background(), "k", Entry{URL: "x"}), boom)
}

func TestResolutionCache_RunEvictsAndStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	clock := newFakeClock()
	store := NewMemoryStore()
	c := NewResolutionCache(store, time.Minute, WithClock(clock.Now), WithJanitorInterval(5*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, c.Put(ctx, "old", Entry{URL: "x", ResolvedAt: clock.Now()}))
	clock.Advance(2 * time.Minute)
	require.NoError(t, c.Put(ctx, "new", Entry{URL: "y", ResolvedAt: clock.Now()}))

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	assert.Eventually(t, func() bool { return store.Len() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	_, ok, _ := store.Get(context.Background(), "new")
	assert.True(t, ok)
}

func TestResolutionCache_RunReturnsForNativeExpiry(t *testing.T) {
	c := NewResolutionCache(NewRedisStore(nil), time.Minute)
	assert.NoError(t, c.Run(context.Background()))
}
