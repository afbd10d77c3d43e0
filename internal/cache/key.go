// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import "strings"

const hexDigits = "0123456789abcdef"

// Key derives the cache key for a content type and id.
// Content types are lowercase alphanumeric, so the first "_" always
// separates the type from the sanitized id.
func Key(contentType, id string) string {
	return contentType + "_" + Sanitize(id)
}

// Sanitize maps id to a path-safe string. ASCII letters, digits and "-" are
// kept; every other byte becomes "_" followed by two lowercase hex digits.
// Distinct ids always produce distinct results.
func Sanitize(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
			b.WriteByte(c)
		default:
			b.WriteByte('_')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0f])
		}
	}
	return b.String()
}
