// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"

	controlhttp "github.com/ManuGH/streamgate/internal/control/http"
	"github.com/go-chi/cors"
)

// PublicCORS allows any origin to read the wrapped responses without
// credentials. Players embedded in third-party pages fetch playlists this way.
func PublicCORS() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", controlhttp.HeaderRequestID},
		ExposedHeaders:   []string{controlhttp.HeaderRequestID, "Content-Length", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           600,
	})
}
