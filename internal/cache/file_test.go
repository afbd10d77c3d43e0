// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.Put(ctx, "live_1", Entry{URL: "http://cdn/1", ResolvedAt: now}, time.Minute))

	_, err = os.Stat(filepath.Join(dir, "live_1.cache"))
	require.NoError(t, err, "one file per key")

	e, ok, err := s.Get(ctx, "live_1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "http://cdn/1", e.URL)
	assert.True(t, now.Equal(e.ResolvedAt))

	_, ok, err = s.Get(ctx, "live_2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStore_LongKeysFitFileNameLimit(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	underscores := Key("series", strings.Repeat("_", 128))
	dots := Key("series", strings.Repeat(".", 128))
	require.Greater(t, len(underscores), 255, "sanitized ids expand")

	require.NoError(t, s.Put(ctx, underscores, Entry{URL: "http://cdn/u", ResolvedAt: now}, time.Minute))
	require.NoError(t, s.Put(ctx, dots, Entry{URL: "http://cdn/d", ResolvedAt: now}, time.Minute))

	e, ok, err := s.Get(ctx, underscores)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "http://cdn/u", e.URL)

	e, ok, err = s.Get(ctx, dots)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "http://cdn/d", e.URL)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, de := range entries {
		assert.LessOrEqual(t, len(de.Name()), 100)
		assert.True(t, strings.HasPrefix(de.Name(), "series_sha256-"), de.Name())
	}

	n, err := s.Evict(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFileStore_CorruptEntryIsMissThroughCache(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "movies_9.cache"), []byte("{not json"), 0o600))

	_, _, err = s.Get(context.Background(), "movies_9")
	assert.ErrorIs(t, err, ErrCorrupt)

	c := NewResolutionCache(s, time.Minute)
	_, ok, err := c.Get(context.Background(), "movies_9")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStore_Evict(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, s.Put(ctx, "old", Entry{URL: "a", ResolvedAt: now.Add(-2 * time.Minute)}, time.Minute))
	require.NoError(t, s.Put(ctx, "new", Entry{URL: "b", ResolvedAt: now}, time.Minute))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.cache"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o600))

	n, err := s.Evict(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, ok, _ := s.Get(ctx, "new")
	assert.True(t, ok)
	_, err = os.Stat(filepath.Join(dir, "unrelated.txt"))
	assert.NoError(t, err)
}
