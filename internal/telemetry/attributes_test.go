// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func find(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestHTTPAttributes(t *testing.T) {
	attrs := HTTPAttributes("GET", "/api/{contentType}", "/api/live?", 307)
	if v, _ := find(attrs, HTTPRouteKey); v.AsString() != "/api/{contentType}" {
		t.Errorf("route = %q", v.AsString())
	}
	if v, _ := find(attrs, HTTPStatusCodeKey); v.AsInt64() != 307 {
		t.Errorf("status = %d", v.AsInt64())
	}
}

func TestGatewayAttributes(t *testing.T) {
	attrs := GatewayAttributes("movies", true, false, 3)
	if v, _ := find(attrs, ContentTypeKey); v.AsString() != "movies" {
		t.Errorf("content type = %q", v.AsString())
	}
	if v, _ := find(attrs, CacheHitKey); !v.AsBool() {
		t.Error("expected cache hit")
	}
	if v, _ := find(attrs, ActiveDevicesKey); v.AsInt64() != 3 {
		t.Errorf("devices = %d", v.AsInt64())
	}
}

func TestResolveAttributes(t *testing.T) {
	if _, ok := find(ResolveAttributes("", false), ResolveReasonKey); ok {
		t.Error("success must not carry a reason")
	}
	v, ok := find(ResolveAttributes("timeout", true), ResolveReasonKey)
	if !ok || v.AsString() != "timeout" {
		t.Errorf("reason = %q", v.AsString())
	}
}

func TestChannelAttributes(t *testing.T) {
	attrs := ChannelAttributes("fallback", true)
	if v, _ := find(attrs, ChannelFoundKey); v.AsBool() {
		t.Error("fallback is not a directory hit")
	}
	if v, _ := find(attrs, ChannelProxyKey); !v.AsBool() {
		t.Error("expected proxied")
	}
}
