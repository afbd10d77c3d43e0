// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveSessions is the number of stored sessions after the last sweep or commit.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamgate_sessions_active",
		Help: "Number of sessions currently held by the session store.",
	})

	sessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamgate_sessions_created_total",
		Help: "Sessions persisted for the first time.",
	})

	sessionsSweptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamgate_sessions_swept_total",
		Help: "Sessions removed by the sweeper after going idle.",
	})

	sessionSweepErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamgate_session_sweep_errors_total",
		Help: "Failed sweeper runs.",
	})
)

// SetActiveSessions sets the active session gauge.
func SetActiveSessions(n int) {
	ActiveSessions.Set(float64(n))
}

// RecordSessionCreated increments the created counter.
func RecordSessionCreated() {
	sessionsCreatedTotal.Inc()
}

// RecordSessionsSwept adds n swept sessions.
func RecordSessionsSwept(n int) {
	sessionsSweptTotal.Add(float64(n))
}

// RecordSessionSweepError increments the sweep error counter.
func RecordSessionSweepError() {
	sessionSweepErrorsTotal.Inc()
}
