// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package admission

import (
	"testing"

	"github.com/ManuGH/streamgate/internal/session"
	"github.com/stretchr/testify/assert"
)

func TestAdmit(t *testing.T) {
	c := NewController(20)

	tests := []struct {
		active  int
		allowed bool
	}{
		{0, true},
		{19, true},
		{20, false},
		{25, false},
	}
	for _, tt := range tests {
		d := c.Admit(session.Session{ActiveDevices: tt.active})
		assert.Equal(t, tt.allowed, d.Allowed, "active=%d", tt.active)
		assert.Equal(t, 20, d.Limit)
		assert.Equal(t, tt.active, d.Active)
		if tt.allowed {
			assert.NoError(t, d.Err())
			assert.Equal(t, ReasonAdmitted, d.Reason)
		} else {
			assert.ErrorIs(t, d.Err(), ErrDeviceLimitReached)
			assert.Equal(t, ReasonDeviceLimitReached, d.Reason)
		}
	}
}

func TestAdmit_IsPure(t *testing.T) {
	c := NewController(2)
	s := session.Session{ID: "s", ActiveDevices: 1}

	first := c.Admit(s)
	second := c.Admit(s)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, s.ActiveDevices)
}

func TestNewController_Default(t *testing.T) {
	assert.Equal(t, DefaultMaxDevices, NewController(0).MaxDevices())
	assert.ErrorIs(t, NewController(1).Check(session.Session{ActiveDevices: 1}), ErrDeviceLimitReached)
}
