// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package resolver

import (
	"errors"
	"time"

	"github.com/ManuGH/streamgate/internal/log"
	"github.com/ManuGH/streamgate/internal/metrics"
	gobreaker "github.com/sony/gobreaker/v2"
)

const breakerName = "resolver"

func newBreaker(failures int, openTimeout time.Duration) *gobreaker.CircuitBreaker[Resolved] {
	if failures <= 0 {
		failures = 5
	}
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}
	metrics.SetCircuitBreakerState(breakerName, "closed")

	return gobreaker.NewCircuitBreaker[Resolved](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failures) // #nosec G115 -- validated positive
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger := log.WithComponent("resolver")
			logger.Warn().
				Str("event", "breaker.state_changed").
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("upstream circuit breaker changed state")
			metrics.SetCircuitBreakerState(name, to.String())
			if to == gobreaker.StateOpen {
				metrics.RecordCircuitBreakerTrip(name)
			}
		},
		IsSuccessful: healthyOutcome,
	})
}

// healthyOutcome decides what counts against the breaker. An upstream that
// answers with a non-redirect below 500 is alive, it just does not know the id.
func healthyOutcome(err error) bool {
	if err == nil {
		return true
	}
	var rerr *Error
	if !errors.As(err, &rerr) {
		return false
	}
	switch rerr.Reason {
	case ReasonNoRedirect, ReasonMissingLocation:
		return rerr.Status < 500
	case ReasonThrottled:
		return true
	}
	return false
}
