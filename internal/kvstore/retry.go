package kvstore

import (
	"context"
	"math/rand/v2"
	"time"
)

// DefaultMaxRetries bounds optimistic retries in backends that need them.
const DefaultMaxRetries = 32

// RetryConflicts calls attempt until it returns something other than a
// conflict, sleeping a short jittered backoff between tries. It returns
// ErrConflict once maxAttempts tries have all conflicted.
func RetryConflicts(ctx context.Context, maxAttempts int, isConflict func(error) bool, attempt func() error) error {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxRetries
	}
	backoff := time.Millisecond
	for i := 0; i < maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := attempt()
		if err == nil || !isConflict(err) {
			return err
		}
		jitter := time.Duration(rand.Int64N(int64(backoff)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff + jitter):
		}
		if backoff < 50*time.Millisecond {
			backoff *= 2
		}
	}
	return ErrConflict
}
