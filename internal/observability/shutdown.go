package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ShutdownCoordinator runs cleanup hooks in reverse registration order, so
// the storage backend opened first is closed after the servers that use it.
type ShutdownCoordinator struct {
	mu    sync.Mutex
	hooks []shutdownHook
	done  bool
}

type shutdownHook struct {
	name string
	fn   func(context.Context) error
}

// Register adds a named hook.
func (s *ShutdownCoordinator) Register(name string, fn func(context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, shutdownHook{name: name, fn: fn})
}

// Shutdown runs every hook once, newest first. Errors from individual hooks
// are joined; a hook failing does not stop the ones registered before it.
// Calling Shutdown again is a no-op.
func (s *ShutdownCoordinator) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return nil
	}
	s.done = true
	hooks := s.hooks
	s.hooks = nil
	s.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		slog.Info("shutting down", "component", h.name)
		if err := h.fn(ctx); err != nil {
			slog.Error("shutdown error", "component", h.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}
	return errors.Join(errs...)
}
