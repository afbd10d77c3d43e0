// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
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

var errFull = errors.New("full")

func limit(n int) func(Session) error {
	return func(s Session) error {
		if s.ActiveDevices >= n {
			return errFull
		}
		return nil
	}
}

func TestGetOrCreate_AbsentRefCreatesUnsavedSession(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store, time.Hour)
	ctx := context.Background()

	s, err := m.GetOrCreate(ctx, "")
	require.NoError(t, err)
	assert.True(t, s.Created())
	assert.Equal(t, 0, s.ActiveDevices)
	_, err = uuid.Parse(s.ID)
	assert.NoError(t, err, "session ids are uuids")

	n, _ := store.Len(ctx)
	assert.Equal(t, 0, n, "nothing is stored before commit")
}

func TestGetOrCreate_IDsAreUnique(t *testing.T) {
	m := NewManager(NewMemoryStore(), time.Hour)
	seen := make(map[string]bool)
	for range 1000 {
		s, err := m.GetOrCreate(context.Background(), "")
		require.NoError(t, err)
		require.False(t, seen[s.ID])
		seen[s.ID] = true
	}
}

func TestGetOrCreate_MalformedOrUnknownRef(t *testing.T) {
	m := NewManager(NewMemoryStore(), time.Hour)
	for _, ref := range []string{"not-a-uuid", uuid.NewString(), "../../x"} {
		s, err := m.GetOrCreate(context.Background(), ref)
		require.NoError(t, err)
		assert.True(t, s.Created())
		assert.NotEqual(t, ref, s.ID)
	}
}

func TestCommit_PersistsAndReturnsExisting(t *testing.T) {
	clock := newFakeClock()
	m := NewManager(NewMemoryStore(), time.Hour, WithClock(clock.Now))
	ctx := context.Background()

	s, err := m.GetOrCreate(ctx, "")
	require.NoError(t, err)
	committed, err := m.Commit(ctx, s, limit(20))
	require.NoError(t, err)
	assert.True(t, committed.Created(), "first commit still reports the session as new")
	assert.Equal(t, 1, committed.ActiveDevices)

	clock.Advance(time.Minute)
	again, err := m.GetOrCreate(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, again.Created())

	want := Session{ID: s.ID, ActiveDevices: 1, CreatedAt: s.CreatedAt, LastActiveAt: s.CreatedAt}
	if diff := cmp.Diff(want, again, cmpopts.IgnoreUnexported(Session{})); diff != "" {
		t.Errorf("session mismatch (-want +got):\n%s", diff)
	}

	again, err = m.Commit(ctx, again, limit(20))
	require.NoError(t, err)
	assert.False(t, again.Created())
	assert.Equal(t, 2, again.ActiveDevices)
	assert.Equal(t, clock.Now(), again.LastActiveAt)
}

func TestCommit_CheckFailureLeavesStoreUntouched(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store, time.Hour)
	ctx := context.Background()

	s, _ := m.GetOrCreate(ctx, "")
	_, err := m.Commit(ctx, s, limit(0))
	assert.ErrorIs(t, err, errFull)

	n, _ := store.Len(ctx)
	assert.Equal(t, 0, n)
}

func TestCommit_ConcurrentRequestsNeverExceedLimit(t *testing.T) {
	m := NewManager(NewMemoryStore(), time.Hour)
	ctx := context.Background()

	s, _ := m.GetOrCreate(ctx, "")
	s, err := m.Commit(ctx, s, limit(5))
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Commit(ctx, s, limit(5)); err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, admitted)
	got, err := m.GetOrCreate(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.ActiveDevices)
}

func TestTouch(t *testing.T) {
	clock := newFakeClock()
	m := NewManager(NewMemoryStore(), time.Hour, WithClock(clock.Now))
	ctx := context.Background()

	s, _ := m.GetOrCreate(ctx, "")
	s, err := m.Commit(ctx, s, nil)
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	touched, err := m.Touch(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), touched.LastActiveAt)
	assert.Equal(t, 1, touched.ActiveDevices, "touch does not change the device count")
}

func TestSweep_RemovesOnlyIdleSessions(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore()
	m := NewManager(store, 24*time.Hour, WithClock(clock.Now))
	ctx := context.Background()

	old, _ := m.GetOrCreate(ctx, "")
	old, err := m.Commit(ctx, old, nil)
	require.NoError(t, err)

	clock.Advance(23 * time.Hour)
	young, _ := m.GetOrCreate(ctx, "")
	young, err = m.Commit(ctx, young, nil)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	removed, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.Get(ctx, old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(ctx, young.ID)
	assert.NoError(t, err)
}

func TestGetOrCreate_ExpiredSessionIsReplaced(t *testing.T) {
	clock := newFakeClock()
	m := NewManager(NewMemoryStore(), time.Hour, WithClock(clock.Now))
	ctx := context.Background()

	s, _ := m.GetOrCreate(ctx, "")
	s, err := m.Commit(ctx, s, nil)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	fresh, err := m.GetOrCreate(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, fresh.Created())
	assert.NotEqual(t, s.ID, fresh.ID)
}

func TestRun_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	clock := newFakeClock()
	store := NewMemoryStore()
	m := NewManager(store, time.Hour, WithClock(clock.Now), WithSweepInterval(5*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())

	s, _ := m.GetOrCreate(ctx, "")
	_, err := m.Commit(ctx, s, nil)
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	assert.Eventually(t, func() bool {
		n, _ := store.Len(ctx)
		return n == 0
	}, time.Second, 5*time.Millisecond, "sweeper runs without traffic")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
