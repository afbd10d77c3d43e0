// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/streamgate/internal/log"
	"github.com/rs/zerolog"
)

// envValue reads key and converts it with parse. Unset or empty variables and
// unparsable values fall back to defaultValue. Every decision is logged at
// debug level with its source; sensitive values are never logged.
func envValue[T any](key string, defaultValue T, parse func(string) (T, error), field func(*zerolog.Event, string, T) *zerolog.Event) T {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		msg := "using default value"
		if ok {
			msg = "using default value (environment variable is empty)"
		}
		field(logger.Debug().Str("key", key).Str("source", "default"), "default", defaultValue).Msg(msg)
		return defaultValue
	}

	parsed, err := parse(v)
	if err != nil {
		ev := logger.Warn().Str("key", key)
		if !isSensitiveKey(key) {
			ev = ev.Str("value", v)
		}
		field(ev, "default", defaultValue).Msg("invalid value in environment variable, using default")
		return defaultValue
	}

	ev := logger.Debug().Str("key", key).Str("source", "environment")
	if isSensitiveKey(key) {
		ev.Bool("sensitive", true).Msg("using environment variable")
	} else {
		field(ev, "value", parsed).Msg("using environment variable")
	}
	return parsed
}

func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	return strings.Contains(lowerKey, "token") || strings.Contains(lowerKey, "password")
}

// ParseString reads a string from environment variable or returns default value.
func ParseString(key, defaultValue string) string {
	return envValue(key, defaultValue,
		func(s string) (string, error) { return s, nil },
		func(e *zerolog.Event, k, v string) *zerolog.Event { return e.Str(k, v) })
}

// ParseInt reads an integer from environment variable or returns default value.
func ParseInt(key string, defaultValue int) int {
	return envValue(key, defaultValue, strconv.Atoi,
		func(e *zerolog.Event, k string, v int) *zerolog.Event { return e.Int(k, v) })
}

// ParseDuration reads a duration from environment variable in Go duration format (e.g. "5s").
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	return envValue(key, defaultValue, time.ParseDuration,
		func(e *zerolog.Event, k string, v time.Duration) *zerolog.Event { return e.Dur(k, v) })
}

// ParseFloat reads a float64 from environment variable or returns default value.
func ParseFloat(key string, defaultValue float64) float64 {
	return envValue(key, defaultValue,
		func(s string) (float64, error) { return strconv.ParseFloat(s, 64) },
		func(e *zerolog.Event, k string, v float64) *zerolog.Event { return e.Float64(k, v) })
}

// ParseBool reads a boolean from environment variable or returns default value.
// It accepts "true", "false", "1", "0", "yes", "no" (case-insensitive).
func ParseBool(key string, defaultValue bool) bool {
	return envValue(key, defaultValue, parseBool,
		func(e *zerolog.Event, k string, v bool) *zerolog.Event { return e.Bool(k, v) })
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	}
	return false, strconv.ErrSyntax
}

// ParseStringMap reads a "k1=v1,k2=v2" list from the environment. Entries
// without "=" make the whole value invalid and the default is kept.
func ParseStringMap(key string, defaultValue map[string]string) map[string]string {
	return envValue(key, defaultValue, parseStringMap,
		func(e *zerolog.Event, k string, v map[string]string) *zerolog.Event { return e.Int(k+"_entries", len(v)) })
}

func parseStringMap(s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, strconv.ErrSyntax
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out, nil
}
