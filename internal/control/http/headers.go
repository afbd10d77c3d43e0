// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package http holds the header and JSON names shared by the HTTP layer.
package http

// Canonical Header Names
const (
	// HeaderRequestID is the canonical header for request correlation.
	HeaderRequestID = "X-Request-ID"
	// HeaderCacheControl is set on every redirect and playlist response.
	HeaderCacheControl = "Cache-Control"
)

// Canonical JSON Field Names
const (
	// JSONKeyRequestID is the canonical JSON key for request correlation in error bodies.
	JSONKeyRequestID = "requestId"
)

// ContentTypeProblem is the media type of RFC 7807 error bodies.
const ContentTypeProblem = "application/problem+json"
