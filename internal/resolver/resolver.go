// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package resolver turns a content reference into a playable URL by probing
// the upstream origin and capturing the redirect it answers with.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Reason classifies why a probe did not yield a playable URL.
type Reason string

const (
	ReasonNoRedirect      Reason = "no_redirect"
	ReasonMissingLocation Reason = "missing_location"
	ReasonUnreachable     Reason = "unreachable"
	ReasonTimeout         Reason = "timeout"
	ReasonCircuitOpen     Reason = "circuit_open"
	ReasonThrottled       Reason = "throttled"
)

// ErrUnknownContentType is returned for a Reference whose Type has no upstream path.
var ErrUnknownContentType = errors.New("unknown content type")

var idPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// ValidID reports whether id is an acceptable content identifier.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Reference names one piece of upstream content.
type Reference struct {
	Type string
	ID   string
}

// Resolved is a successful resolution. URL is the upstream Location header verbatim.
type Resolved struct {
	URL        string
	ResolvedAt time.Time
}

// Resolver resolves references to playable URLs. Implementations must be safe
// for concurrent use and must not follow redirects.
type Resolver interface {
	Resolve(ctx context.Context, ref Reference) (Resolved, error)
}

// Error is returned by Resolve when the upstream did not produce a usable redirect.
type Error struct {
	// Target is the probed URL with user info removed.
	Target string
	// Status is the upstream status code, 0 when no response was received.
	Status int
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("resolve %s: %s", e.Target, e.Reason)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// ReasonOf extracts the failure reason from err, or "" when err is not a resolver Error.
func ReasonOf(err error) Reason {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Reason
	}
	return ""
}
