// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"maps"
	"net/url"
)

const redacted = "***"

// Redacted returns a copy of cfg that is safe to print or log.
func (cfg AppConfig) Redacted() AppConfig {
	out := cfg
	out.Upstream.Paths = maps.Clone(cfg.Upstream.Paths)
	out.Upstream.Extensions = maps.Clone(cfg.Upstream.Extensions)
	out.Upstream.Headers = maps.Clone(cfg.Upstream.Headers)

	if out.Upstream.Password != "" {
		out.Upstream.Password = redacted
	}
	if out.Cache.Redis.Password != "" {
		out.Cache.Redis.Password = redacted
	}
	if out.Sessions.Redis.Password != "" {
		out.Sessions.Redis.Password = redacted
	}
	out.Upstream.BaseURL = MaskURL(out.Upstream.BaseURL)
	for k := range out.Upstream.Headers {
		if k == "Authorization" || k == "Cookie" {
			out.Upstream.Headers[k] = redacted
		}
	}
	return out
}

// MaskURL removes user info from a URL string for safe logging.
func MaskURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	return parsedURL.String()
}
