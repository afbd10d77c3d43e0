// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/streamgate/internal/log"
	"github.com/ManuGH/streamgate/internal/metrics"
	"github.com/google/uuid"
)

const (
	DefaultTTL           = 24 * time.Hour
	DefaultSweepInterval = time.Hour
)

// Manager implements the session lifecycle on top of a Store.
type Manager struct {
	store         Store
	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	newID         func() string
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithClock sets the time source.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithIDGenerator replaces the session id generator.
func WithIDGenerator(gen func() string) ManagerOption {
	return func(m *Manager) { m.newID = gen }
}

// WithSweepInterval sets how often Run sweeps expired sessions.
func WithSweepInterval(d time.Duration) ManagerOption {
	return func(m *Manager) { m.sweepInterval = d }
}

// NewManager returns a Manager expiring sessions idle for longer than ttl.
func NewManager(store Store, ttl time.Duration, opts ...ManagerOption) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Manager{
		store:         store,
		ttl:           ttl,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL returns the idle expiry.
func (m *Manager) TTL() time.Duration { return m.ttl }

// GetOrCreate returns the session named by ref. An absent, malformed, unknown
// or expired ref yields a fresh session with no devices that is not stored
// until its first Commit.
func (m *Manager) GetOrCreate(ctx context.Context, ref string) (Session, error) {
	if ref != "" {
		if _, err := uuid.Parse(ref); err == nil {
			s, err := m.store.Get(ctx, ref)
			switch {
			case err == nil && !m.expired(s):
				return s, nil
			case err != nil && !errors.Is(err, ErrNotFound):
				return Session{}, fmt.Errorf("load session: %w", err)
			}
		}
	}

	now := m.now()
	return Session{
		ID:           m.newID(),
		CreatedAt:    now,
		LastActiveAt: now,
		created:      true,
	}, nil
}

func (m *Manager) expired(s Session) bool {
	return m.now().Sub(s.LastActiveAt) > m.ttl
}

// Touch marks s as active now. Sessions that were never committed are not stored.
func (m *Manager) Touch(ctx context.Context, s Session) (Session, error) {
	now := m.now()
	if s.created {
		s.LastActiveAt = now
		return s, nil
	}
	out, err := m.store.Update(ctx, s, func(cur *Session) error {
		cur.LastActiveAt = now
		return nil
	})
	if err != nil {
		return Session{}, fmt.Errorf("touch session: %w", err)
	}
	return out, nil
}

// Commit admits one more device on s. check runs against the stored state
// inside the same atomic update, so two requests racing for the last slot
// cannot both succeed; its error is returned unchanged.
func (m *Manager) Commit(ctx context.Context, s Session, check func(Session) error) (Session, error) {
	out, err := m.store.Update(ctx, s, func(cur *Session) error {
		if check != nil {
			if err := check(*cur); err != nil {
				return err
			}
		}
		cur.ActiveDevices++
		cur.LastActiveAt = m.now()
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	if s.created {
		out.created = true
		metrics.RecordSessionCreated()
		metrics.ActiveSessions.Inc()
	}
	return out, nil
}

// Sweep removes sessions idle for longer than the TTL.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	removed, err := m.store.Sweep(ctx, m.now().Add(-m.ttl))
	if err != nil {
		return removed, fmt.Errorf("sweep sessions: %w", err)
	}
	metrics.RecordSessionsSwept(removed)
	if n, err := m.store.Len(ctx); err == nil {
		metrics.SetActiveSessions(n)
	}
	return removed, nil
}

// Run sweeps on a fixed interval until ctx is done, independent of traffic.
func (m *Manager) Run(ctx context.Context) error {
	if m.sweepInterval <= 0 {
		return nil
	}
	logger := log.WithComponent("session")

	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	logger.Info().Dur("interval", m.sweepInterval).Dur("ttl", m.ttl).Msg("session sweeper started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs one sweep and logs the outcome.
func (m *Manager) SweepOnce(ctx context.Context) {
	logger := log.WithComponent("session")
	start := time.Now()
	removed, err := m.Sweep(ctx)
	if err != nil {
		metrics.RecordSessionSweepError()
		logger.Warn().Err(err).Str("event", "session.sweep_failed").Int("removed", removed).Msg("session sweep failed")
		return
	}
	logger.Info().
		Str("event", "session.sweep").
		Int("removed", removed).
		Dur("duration", time.Since(start)).
		Msg("session sweep finished")
}

// Ping checks the backing store.
func (m *Manager) Ping(ctx context.Context) error { return m.store.Ping(ctx) }

// Close releases the backing store.
func (m *Manager) Close() error { return m.store.Close() }
