package config

import (
	"fmt"
	"strings"
	"time"
)

// DurationOrDefault parses value as a time.Duration, substituting
// defaultValue when value is blank. Config durations are kept as strings
// ("10m", "6h") so they read naturally in YAML and env overrides.
func DurationOrDefault(value string, defaultValue string) (time.Duration, error) {
	candidate := strings.TrimSpace(value)
	if candidate == "" {
		candidate = strings.TrimSpace(defaultValue)
	}
	if candidate == "" {
		return 0, fmt.Errorf("duration value is empty")
	}

	d, err := time.ParseDuration(candidate)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", candidate, err)
	}
	return d, nil
}
