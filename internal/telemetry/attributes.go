// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"
	HTTPRequestIDKey  = "http.request_id"

	// Gateway attributes
	ContentTypeKey    = "gateway.content_type"
	CacheHitKey       = "gateway.cache_hit"
	SessionCreatedKey = "gateway.session_created"
	ActiveDevicesKey  = "gateway.active_devices"
	ResolveReasonKey  = "gateway.resolve_reason"
	ResolveSharedKey  = "gateway.resolve_shared"

	// Channel directory attributes
	ChannelFoundKey  = "channels.found"
	ChannelProxyKey  = "channels.proxied"
	ChannelResultKey = "channels.result"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// GatewayAttributes describes one gateway request. Content ids are left out
// on purpose so spans cannot be joined back to what a client watched.
func GatewayAttributes(contentType string, cacheHit, sessionCreated bool, activeDevices int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ContentTypeKey, contentType),
		attribute.Bool(CacheHitKey, cacheHit),
		attribute.Bool(SessionCreatedKey, sessionCreated),
		attribute.Int(ActiveDevicesKey, activeDevices),
	}
}

// ResolveAttributes describes one resolution attempt. An empty reason means success.
func ResolveAttributes(reason string, shared bool) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.Bool(ResolveSharedKey, shared)}
	if reason != "" {
		attrs = append(attrs, attribute.String(ResolveReasonKey, reason))
	}
	return attrs
}

// ChannelAttributes describes one channel directory lookup.
func ChannelAttributes(result string, proxied bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ChannelResultKey, result),
		attribute.Bool(ChannelFoundKey, result == "hit"),
		attribute.Bool(ChannelProxyKey, proxied),
	}
}
