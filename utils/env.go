// utils/env.go
package utils

import (
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// GetEnv returns the trimmed value of key, or def when unset or blank.
func GetEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// GetEnvDuration parses key with time.ParseDuration; invalid values fall back to def with a warning.
func GetEnvDuration(log *zap.Logger, key string, def time.Duration) time.Duration {
	raw := GetEnv(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Warn("⚠️  invalid duration, using default",
			zap.String("key", key), zap.String("value", raw), zap.Duration("default", def))
		return def
	}
	return d
}

// MustEnv returns key or aborts the process when it is missing.
func MustEnv(log *zap.Logger, key string) string {
	v := GetEnv(key, "")
	if v == "" {
		log.Fatal(key + " environment variable not set")
	}
	return v
}

// SplitList splits a comma-separated value and drops blanks.
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
