package storage

import (
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config is the flat string map handed to a backend factory. It comes
// straight from the storage.config section of the service configuration.
type Config map[string]string

// String returns the value for key, or def when the key is missing or empty.
func (c Config) String(key, def string) string {
	if v, ok := c[key]; ok && v != "" {
		return v
	}
	return def
}

// Bool parses key as a boolean.
// Accepts "true", "false", "1", "0", "yes", "no" (case-insensitive).
func (c Config) Bool(key string, def bool) (bool, error) {
	v, ok := c[key]
	if !ok || v == "" {
		return def, nil
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	}
	return false, &ConfigError{Field: key, Value: v, Message: "must be a boolean (true/false, 1/0, yes/no)"}
}

// Int parses key as an int.
func (c Config) Int(key string, def int) (int, error) {
	n, err := c.Int64(key, int64(def))
	return int(n), err
}

// Int64 parses key as an int64.
func (c Config) Int64(key string, def int64) (int64, error) {
	v, ok := c[key]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, &ConfigError{Field: key, Value: v, Message: "must be an integer", Cause: err}
	}
	return n, nil
}

// Duration parses key as a Go duration ("5s", "1m30s") or plain integer seconds.
func (c Config) Duration(key string, def time.Duration) (time.Duration, error) {
	v, ok := c[key]
	if !ok || v == "" {
		return def, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return 0, &ConfigError{Field: key, Value: v, Message: "must be a duration (e.g., '5s', '1m30s') or integer seconds"}
}

// Merge returns a new Config holding defaults overlaid with c.
func (c Config) Merge(defaults Config) Config {
	out := make(Config, len(defaults)+len(c))
	maps.Copy(out, defaults)
	maps.Copy(out, c)
	return out
}

// ExpandPath expands a leading ~/ to the user's home directory and cleans the path.
func ExpandPath(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, rest)
	}
	return filepath.Clean(path)
}
