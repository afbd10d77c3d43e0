// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	channelLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgate_channel_lookups_total",
		Help: "Channel directory lookups by result (hit, miss, fallback, unavailable).",
	}, []string{"result"})

	channelReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgate_channel_reloads_total",
		Help: "Channel directory reloads by outcome (success, failure).",
	}, []string{"outcome"})

	// ChannelsLoaded is the size of the directory currently served.
	ChannelsLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamgate_channels_loaded",
		Help: "Number of channels in the active directory.",
	})

	playlistFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgate_playlist_fetch_total",
		Help: "Proxied playlist fetches by outcome (success, failure).",
	}, []string{"outcome"})
)

// RecordChannelLookup increments the lookup counter.
func RecordChannelLookup(result string) {
	channelLookupsTotal.WithLabelValues(result).Inc()
}

// RecordChannelReload records a directory reload and, on success, its size.
func RecordChannelReload(ok bool, size int) {
	if !ok {
		channelReloadsTotal.WithLabelValues("failure").Inc()
		return
	}
	channelReloadsTotal.WithLabelValues("success").Inc()
	ChannelsLoaded.Set(float64(size))
}

// RecordPlaylistFetch increments the playlist fetch counter.
func RecordPlaylistFetch(ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	playlistFetchTotal.WithLabelValues(outcome).Inc()
}
