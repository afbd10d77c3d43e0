// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/streamgate/internal/log"
	"github.com/google/renameio/v2"
)

const fileSuffix = ".cache"

// maxFileKeyLen bounds the key part of a file name. renameio adds a dot and a
// random suffix for the pending file, and most filesystems cap names at 255 bytes.
const maxFileKeyLen = 160

type fileRecord struct {
	Entry
	ExpiresAt time.Time `json:"expiresAt"`
}

// FileStore keeps one JSON file per key in a directory. Writes are atomic,
// so readers never observe a partially written entry.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, fileName(key))
}

// fileName keeps short keys readable and hashes long ones, keeping the content
// type prefix. Sanitized ids only use "_" before two hex digits, so the
// "_sha256-" marker cannot collide with an unhashed key.
func fileName(key string) string {
	if len(key) <= maxFileKeyLen {
		return key + fileSuffix
	}
	prefix, _, _ := strings.Cut(key, "_")
	sum := sha256.Sum256([]byte(key))
	return prefix + "_sha256-" + hex.EncodeToString(sum[:]) + fileSuffix
}

func (s *FileStore) Get(_ context.Context, key string) (Entry, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("read cache file: %w", err)
	}
	rec, err := decodeRecord(data)
	if err != nil {
		return Entry{}, false, err
	}
	return rec.Entry, true, nil
}

func (s *FileStore) Put(ctx context.Context, key string, e Entry, ttl time.Duration) error {
	data, err := json.Marshal(fileRecord{Entry: e, ExpiresAt: e.ResolvedAt.Add(ttl)})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	pendingFile, err := renameio.NewPendingFile(s.path(key), renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("create pending cache file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			log.FromContext(ctx).Debug().Err(err).Msg("cleanup pending cache file")
		}
	}()

	if _, err := pendingFile.Write(data); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace cache file: %w", err)
	}
	return nil
}

// Evict removes expired and undecodable entries.
func (s *FileStore) Evict(_ context.Context, now time.Time) (int, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("list cache dir: %w", err)
	}

	count := 0
	var errs []error
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), fileSuffix) {
			continue
		}
		p := filepath.Join(s.dir, de.Name())
		data, err := os.ReadFile(p)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		rec, err := decodeRecord(data)
		if err == nil && now.Before(rec.ExpiresAt) {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		count++
	}
	return count, errors.Join(errs...)
}

func (s *FileStore) Ping(context.Context) error {
	_, err := os.Stat(s.dir)
	return err
}

func (s *FileStore) Close() error    { return nil }
func (s *FileStore) Backend() string { return "file" }

func decodeRecord(data []byte) (fileRecord, error) {
	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return fileRecord{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if rec.URL == "" {
		return fileRecord{}, fmt.Errorf("%w: empty url", ErrCorrupt)
	}
	return rec, nil
}
