// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report YAML key names so errors match what operators wrote.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Validate checks struct-level constraints and the cross-field rules the tags
// cannot express. All violations are reported together.
func Validate(cfg AppConfig) error {
	var problems []string

	if err := getValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s: failed %q (value %v)", trimNamespace(fe.Namespace()), fe.Tag(), maskValue(fe)))
		}
	}

	if cfg.Cache.Backend == "redis" && strings.TrimSpace(cfg.Cache.Redis.Addr) == "" {
		problems = append(problems, "cache.redis.addr: required when cache.backend=redis")
	}
	if (cfg.Cache.Backend == "file" || cfg.Cache.Backend == "badger") && strings.TrimSpace(cfg.Cache.Dir) == "" {
		problems = append(problems, "cache.dir: required when cache.backend="+cfg.Cache.Backend)
	}
	if cfg.Sessions.Backend == "redis" && strings.TrimSpace(cfg.Sessions.Redis.Addr) == "" {
		problems = append(problems, "sessions.redis.addr: required when sessions.backend=redis")
	}
	if cfg.Channels.MissPolicy == "fallback" && strings.TrimSpace(cfg.Channels.FallbackURL) == "" {
		problems = append(problems, "channels.fallbackUrl: required when channels.missPolicy=fallback")
	}
	if cfg.Telemetry.Enabled && strings.TrimSpace(cfg.Telemetry.Endpoint) == "" {
		problems = append(problems, "telemetry.endpoint: required when telemetry.enabled=true")
	}
	if cfg.Upstream.Password != "" && cfg.Upstream.Username == "" {
		problems = append(problems, "upstream.username: required when upstream.password is set")
	}
	for ct := range cfg.Upstream.Extensions {
		if _, ok := cfg.Upstream.Paths[ct]; !ok {
			problems = append(problems, fmt.Sprintf("upstream.extensions.%s: no matching upstream.paths entry", ct))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func trimNamespace(ns string) string {
	_, rest, ok := strings.Cut(ns, ".")
	if !ok {
		return ns
	}
	return rest
}

func maskValue(fe validator.FieldError) any {
	if isSensitiveKey(fe.Field()) {
		return "***"
	}
	return fe.Value()
}
