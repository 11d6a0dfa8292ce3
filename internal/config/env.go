package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Loader reads overrides from environment variables sharing a prefix.
type Loader struct {
	Prefix string
}

// NewLoader constructs a loader; the prefix gains a trailing underscore when
// it lacks one.
func NewLoader(prefix string) Loader {
	if prefix != "" && !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	return Loader{Prefix: prefix}
}

// String returns the trimmed variable or def when unset or blank.
func (l Loader) String(key, def string) string {
	if val := strings.TrimSpace(os.Getenv(l.Prefix + key)); val != "" {
		return val
	}
	return def
}

// Int returns an integer variable or def when unset or unparsable.
func (l Loader) Int(key string, def int) int {
	if val := strings.TrimSpace(os.Getenv(l.Prefix + key)); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

// Duration accepts Go duration syntax ("15s") or a bare number of seconds.
func (l Loader) Duration(key string, def time.Duration) (time.Duration, error) {
	val := strings.TrimSpace(os.Getenv(l.Prefix + key))
	if val == "" {
		return def, nil
	}
	if secs, err := strconv.ParseFloat(val, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return def, fmt.Errorf("parse %s%s: %w", l.Prefix, key, err)
	}
	return d, nil
}
