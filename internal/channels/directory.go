// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package channels serves named channels from a JSON directory file.
package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/text/cases"

	"github.com/ManuGH/streamgate/internal/log"
	"github.com/ManuGH/streamgate/internal/metrics"
)

// DefaultTTL is how long a loaded directory is served before it is re-read.
const DefaultTTL = 5 * time.Minute

// ErrUnavailable is returned by Lookup when no directory has ever loaded.
var ErrUnavailable = errors.New("channel directory unavailable")

// Channel is one directory entry as stored on disk.
type Channel struct {
	Name string `json:"Name"`
	URL  string `json:"Url"`
}

// Directory is a case-insensitive name -> channel index backed by a file.
// A failed reload keeps serving the last good index.
type Directory struct {
	path string
	ttl  time.Duration
	now  func() time.Time

	mu       sync.RWMutex
	entries  map[string]Channel
	loadedAt time.Time

	reloadMu sync.Mutex
}

// DirectoryOption configures a Directory.
type DirectoryOption func(*Directory)

// WithClock overrides the time source used for TTL checks.
func WithClock(now func() time.Time) DirectoryOption {
	return func(d *Directory) { d.now = now }
}

// NewDirectory returns a Directory reading path. An empty path yields a
// directory that is always unavailable.
func NewDirectory(path string, ttl time.Duration, opts ...DirectoryOption) *Directory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if path != "" {
		path = filepath.Clean(path)
	}
	d := &Directory{path: path, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Path returns the directory file, or "" when none is configured.
func (d *Directory) Path() string { return d.path }

func foldName(name string) string {
	// cases.Caser is stateful; a fresh one per call keeps this safe for concurrent use.
	return cases.Fold().String(name)
}

// Load reads and parses the directory file and swaps it in on success.
func (d *Directory) Load() error {
	if d.path == "" {
		return ErrUnavailable
	}
	logger := log.WithComponent("channels")

	entries, err := readDirectory(d.path)
	if err != nil {
		metrics.RecordChannelReload(false, 0)
		logger.Warn().Err(err).Str("event", "channels.reload_failed").Str("path", d.path).Msg("channel directory not reloaded")
		return err
	}

	d.mu.Lock()
	d.entries = entries
	d.loadedAt = d.now()
	d.mu.Unlock()

	metrics.RecordChannelReload(true, len(entries))
	logger.Info().Str("event", "channels.reloaded").Int("channels", len(entries)).Str("path", d.path).Msg("channel directory loaded")
	return nil
}

func readDirectory(path string) (map[string]Channel, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("read channel directory: %w", err)
	}
	var list []Channel
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse channel directory: %w", err)
	}

	entries := make(map[string]Channel, len(list))
	for _, ch := range list {
		if ch.Name == "" || ch.URL == "" {
			continue
		}
		// Later entries win.
		entries[foldName(ch.Name)] = ch
	}
	return entries, nil
}

// Lookup finds name, reloading first when the loaded index is older than the TTL.
// It returns ErrUnavailable only when nothing has ever loaded.
func (d *Directory) Lookup(name string) (Channel, bool, error) {
	if d.stale() {
		d.refresh()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.entries == nil {
		return Channel{}, false, ErrUnavailable
	}
	ch, ok := d.entries[foldName(name)]
	return ch, ok, nil
}

func (d *Directory) stale() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.entries == nil || d.now().Sub(d.loadedAt) >= d.ttl
}

func (d *Directory) refresh() {
	if d.path == "" {
		return
	}
	d.reloadMu.Lock()
	defer d.reloadMu.Unlock()
	if !d.stale() {
		return
	}
	if err := d.Load(); err != nil && d.Loaded() {
		// Retry after another TTL instead of on every request.
		d.mu.Lock()
		d.loadedAt = d.now()
		d.mu.Unlock()
	}
}

// Loaded reports whether a directory is being served.
func (d *Directory) Loaded() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.entries != nil
}

// Len returns the number of channels served.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// Run watches the directory file and reloads it on change until ctx is done.
// The parent directory is watched so editors that replace the file are seen.
func (d *Directory) Run(ctx context.Context) error {
	if d.path == "" {
		return nil
	}
	logger := log.WithComponent("channels")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create channel watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(d.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(d.path), err)
	}
	logger.Info().Str("path", d.path).Msg("watching channel directory")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != d.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			d.reloadMu.Lock()
			_ = d.Load()
			d.reloadMu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Str("event", "channels.watch_error").Msg("channel watcher error")
		}
	}
}
