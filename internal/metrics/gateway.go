// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics holds the Prometheus collectors of the gateway.
// Labels are bounded: content types come from configuration, never from
// request input, and ids never appear in labels.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GatewayRequestsTotal counts finished gateway requests by content type and outcome.
	GatewayRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgate_gateway_requests_total",
		Help: "Gateway requests by content type and outcome (redirect, invalid, denied, upstream_error, internal_error).",
	}, []string{"content_type", "outcome"})

	// ResolveDuration observes upstream probe latency.
	ResolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "streamgate_resolve_duration_seconds",
		Help:    "Upstream redirect probe latency in seconds, by content type and result.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"content_type", "result"})

	// ResolveFailuresTotal counts failed probes by reason.
	ResolveFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgate_resolve_failures_total",
		Help: "Failed upstream probes by content type and reason.",
	}, []string{"content_type", "reason"})

	// ResolveSharedTotal counts requests that joined an in-flight probe for the same key.
	ResolveSharedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamgate_resolve_shared_total",
		Help: "Cache misses served by an already in-flight probe for the same key.",
	})

	// AdmissionRejectTotal counts requests denied by the device ceiling.
	AdmissionRejectTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgate_admission_reject_total",
		Help: "Requests rejected by admission control, by reason.",
	}, []string{"reason"})
)

// RecordGatewayRequest increments the gateway outcome counter.
func RecordGatewayRequest(contentType, outcome string) {
	GatewayRequestsTotal.WithLabelValues(contentType, outcome).Inc()
}

// ObserveResolve records the latency of one probe. An empty reason means success.
func ObserveResolve(contentType, reason string, d time.Duration) {
	result := "success"
	if reason != "" {
		result = "failure"
		ResolveFailuresTotal.WithLabelValues(contentType, reason).Inc()
	}
	ResolveDuration.WithLabelValues(contentType, result).Observe(d.Seconds())
}

// RecordResolveShared increments the shared-probe counter.
func RecordResolveShared() {
	ResolveSharedTotal.Inc()
}

// RecordAdmissionReject increments the admission rejection counter.
func RecordAdmissionReject(reason string) {
	AdmissionRejectTotal.WithLabelValues(reason).Inc()
}
