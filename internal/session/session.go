// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package session tracks per-client sessions and the number of devices each
// one has admitted. Device counts only grow; sessions disappear when they
// stay idle longer than the session TTL.
package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Store.Get for unknown ids.
	ErrNotFound = errors.New("session not found")
	// ErrConflict is returned when an update keeps losing to concurrent writers.
	ErrConflict = errors.New("session update conflict")
)

// Session is the state kept per client.
type Session struct {
	ID            string    `json:"id"`
	ActiveDevices int       `json:"activeDevices"`
	CreatedAt     time.Time `json:"createdAt"`
	LastActiveAt  time.Time `json:"lastActiveAt"`

	created bool
}

// Created reports whether the session was minted by the current request and
// its reference still has to be handed to the client.
func (s Session) Created() bool { return s.created }

// UpdateFunc mutates a session inside Store.Update. Returning an error aborts
// the update and leaves the stored session untouched.
type UpdateFunc func(s *Session) error

// Store persists sessions. Implementations must make Update atomic with
// respect to concurrent updates of the same id.
type Store interface {
	Get(ctx context.Context, id string) (Session, error)
	// Update applies fn to the stored session with seed.ID, or to seed when
	// no such session exists, and persists the result.
	Update(ctx context.Context, seed Session, fn UpdateFunc) (Session, error)
	// Sweep deletes sessions last active before cutoff and returns how many were removed.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
	Len(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
	Close() error
}
