// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

func (s *MemoryStore) Update(_ context.Context, seed Session, fn UpdateFunc) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.sessions[seed.ID]
	if !ok {
		cur = seed
	}
	cur.created = false
	if err := fn(&cur); err != nil {
		return Session{}, err
	}
	s.sessions[cur.ID] = cur
	return cur, nil
}

// Sweep collects candidates under the read lock so request handling is only
// blocked for the deletions, which re-check expiry under the write lock.
func (s *MemoryStore) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.RLock()
	var candidates []string
	for id, sess := range s.sessions {
		if sess.LastActiveAt.Before(cutoff) {
			candidates = append(candidates, id)
		}
	}
	s.mu.RUnlock()

	if len(candidates) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for _, id := range candidates {
		sess, ok := s.sessions[id]
		if ok && sess.LastActiveAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Len(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
func (s *MemoryStore) Close() error               { return nil }
