// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package admission decides whether a session may start another stream.
package admission

import (
	"errors"
	"fmt"

	"github.com/ManuGH/streamgate/internal/session"
)

// DefaultMaxDevices is the per-session device ceiling used when none is configured.
const DefaultMaxDevices = 20

// Reason is the stable, machine-readable denial cause.
type Reason string

const (
	ReasonAdmitted           Reason = "ADMITTED"
	ReasonDeviceLimitReached Reason = "DEVICE_LIMIT_REACHED"
)

// ErrDeviceLimitReached is wrapped by Decision.Err for denied decisions.
var ErrDeviceLimitReached = errors.New("device limit reached")

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed bool
	Reason  Reason
	Limit   int
	Active  int
}

// Err returns nil for allowed decisions and an error wrapping
// ErrDeviceLimitReached otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %d of %d devices in use", ErrDeviceLimitReached, d.Active, d.Limit)
}

// Controller enforces the device ceiling. It never mutates sessions.
type Controller struct {
	maxDevices int
}

// NewController returns a Controller admitting at most maxDevices devices per session.
func NewController(maxDevices int) *Controller {
	if maxDevices <= 0 {
		maxDevices = DefaultMaxDevices
	}
	return &Controller{maxDevices: maxDevices}
}

// MaxDevices returns the configured ceiling.
func (c *Controller) MaxDevices() int { return c.maxDevices }

// Admit allows s iff it has fewer active devices than the ceiling.
func (c *Controller) Admit(s session.Session) Decision {
	d := Decision{
		Allowed: s.ActiveDevices < c.maxDevices,
		Reason:  ReasonAdmitted,
		Limit:   c.maxDevices,
		Active:  s.ActiveDevices,
	}
	if !d.Allowed {
		d.Reason = ReasonDeviceLimitReached
	}
	return d
}

// Check adapts Admit to session.Manager.Commit.
func (c *Controller) Check(s session.Session) error {
	return c.Admit(s).Err()
}
