package kvstore

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/gezibash/arc-guardian/internal/storage"
)

// Factory creates a backend from a merged configuration.
type Factory func(ctx context.Context, cfg storage.Config) (Backend, error)

// DefaultsFunc returns the default configuration for a backend.
type DefaultsFunc func() storage.Config

type backendEntry struct {
	factory  Factory
	defaults DefaultsFunc
}

var (
	backends   = make(map[string]backendEntry)
	backendsMu sync.RWMutex
)

// Register makes a backend available to New. Backends call it from init.
// Panics on a duplicate name.
func Register(name string, factory Factory, defaults DefaultsFunc) {
	backendsMu.Lock()
	defer backendsMu.Unlock()

	if _, exists := backends[name]; exists {
		panic(fmt.Sprintf("kvstore backend %q already registered", name))
	}
	backends[name] = backendEntry{factory: factory, defaults: defaults}
}

// GetDefaults returns the default configuration for a backend, or nil.
func GetDefaults(name string) storage.Config {
	backendsMu.RLock()
	entry, ok := backends[name]
	backendsMu.RUnlock()

	if !ok || entry.defaults == nil {
		return nil
	}
	return entry.defaults()
}

// ListBackends returns the sorted names of registered backends.
func ListBackends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered reports whether name has been registered.
func IsRegistered(name string) bool {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// New opens the named backend with cfg laid over its defaults.
func New(ctx context.Context, name string, cfg storage.Config) (Backend, error) {
	backendsMu.RLock()
	entry, ok := backends[name]
	backendsMu.RUnlock()

	if !ok {
		return nil, storage.NewConfigError(name, "", fmt.Sprintf("unknown kvstore backend %q (available: %v)", name, ListBackends()))
	}

	var defaults storage.Config
	if entry.defaults != nil {
		defaults = entry.defaults()
	}

	backend, err := entry.factory(ctx, cfg.Merge(defaults))
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "kvstore backend opened", "backend", name)
	return backend, nil
}
