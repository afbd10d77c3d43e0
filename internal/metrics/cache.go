// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgate_cache_lookups_total",
		Help: "Resolution cache lookups by backend and result (hit, miss, expired, corrupt, error).",
	}, []string{"backend", "result"})

	cacheWriteErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgate_cache_write_errors_total",
		Help: "Failed resolution cache writes by backend.",
	}, []string{"backend"})

	cacheEvictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgate_cache_evictions_total",
		Help: "Expired entries removed by the cache janitor, by backend.",
	}, []string{"backend"})
)

// RecordCacheLookup increments the lookup counter for a backend and result.
func RecordCacheLookup(backend, result string) {
	cacheLookupsTotal.WithLabelValues(backend, result).Inc()
}

// RecordCacheWriteError increments the write error counter.
func RecordCacheWriteError(backend string) {
	cacheWriteErrorsTotal.WithLabelValues(backend).Inc()
}

// RecordCacheEvictions adds n janitor evictions.
func RecordCacheEvictions(backend string, n int) {
	if n > 0 {
		cacheEvictionsTotal.WithLabelValues(backend).Add(float64(n))
	}
}
