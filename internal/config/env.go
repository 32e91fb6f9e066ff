// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/md2site/md2site/internal/log"
)

// ParseString reads a string from an environment variable or returns
// the default. Sensitive keys (token, password) are logged without
// their value.
func ParseString(key, defaultValue string) string {
	return parseStringWithLogger(log.WithComponent("config"), key, defaultValue)
}

func parseStringWithLogger(logger zerolog.Logger, key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		lowerKey := strings.ToLower(key)
		switch {
		case strings.Contains(lowerKey, "token") || strings.Contains(lowerKey, "password"):
			logger.Debug().
				Str("key", key).
				Str("source", "environment").
				Bool("sensitive", true).
				Msg("using environment variable")
		case value == "":
			logger.Debug().
				Str("key", key).
				Str("default", defaultValue).
				Str("source", "default").
				Msg("using default value (environment variable is empty)")
			return defaultValue
		default:
			logger.Debug().
				Str("key", key).
				Str("value", value).
				Str("source", "environment").
				Msg("using environment variable")
		}
		return value
	}
	logger.Debug().
		Str("key", key).
		Str("default", defaultValue).
		Str("source", "default").
		Msg("using default value")
	return defaultValue
}

// ParseInt reads an integer from an environment variable or returns
// the default on absence, emptiness or parse failure.
func ParseInt(key string, defaultValue int) int {
	logger := log.WithComponent("config")
	if v, ok := os.LookupEnv(key); ok {
		if v == "" {
			return defaultValue
		}
		if i, err := strconv.Atoi(v); err == nil {
			logger.Debug().
				Str("key", key).
				Int("value", i).
				Str("source", "environment").
				Msg("using environment variable")
			return i
		}
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Int("default", defaultValue).
			Msg("invalid integer in environment variable, using default")
	}
	return defaultValue
}

// ParseBool reads a boolean from an environment variable. It accepts
// "true", "false", "1", "0", "yes", "no" (case-insensitive).
func ParseBool(key string, defaultValue bool) bool {
	logger := log.WithComponent("config")
	if v, ok := os.LookupEnv(key); ok {
		if v == "" {
			return defaultValue
		}
		switch strings.ToLower(v) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		default:
			logger.Warn().
				Str("key", key).
				Str("value", v).
				Bool("default", defaultValue).
				Msg("invalid boolean in environment variable, using default")
		}
	}
	return defaultValue
}

// ParseDuration reads a Go duration (e.g. "5s") from an environment
// variable or returns the default.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	logger := log.WithComponent("config")
	if v, ok := os.LookupEnv(key); ok {
		if v == "" {
			return defaultValue
		}
		if d, err := time.ParseDuration(v); err == nil {
			logger.Debug().
				Str("key", key).
				Dur("value", d).
				Str("source", "environment").
				Msg("using environment variable")
			return d
		}
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Dur("default", defaultValue).
			Msg("invalid duration in environment variable, using default")
	}
	return defaultValue
}

// ParseStringSlice reads a comma-separated list from an environment
// variable. Empty elements are dropped; an absent or empty variable
// returns the default.
func ParseStringSlice(key string, defaultValue []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
