// Package memory provides an in-process kvstore backend for tests and
// single-run experiments. Nothing survives Close.
package memory

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/gezibash/arc-guardian/internal/kvstore"
	"github.com/gezibash/arc-guardian/internal/storage"
)

func init() {
	kvstore.Register("memory", NewFactory, Defaults)
}

// Defaults returns the (empty) default configuration.
func Defaults() storage.Config {
	return storage.Config{}
}

// NewFactory creates a memory backend. The configuration is ignored.
func NewFactory(_ context.Context, _ storage.Config) (kvstore.Backend, error) {
	return New(), nil
}

// Backend keeps all values in a map. Update holds the write lock for the
// whole callback, which makes transactions trivially serializable.
type Backend struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// New creates an empty backend.
func New() *Backend {
	return &Backend{data: make(map[string][]byte)}
}

// View runs fn against the current state under a read lock.
func (b *Backend) View(ctx context.Context, fn func(kvstore.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return kvstore.ErrClosed
	}
	return fn(&txn{base: b.data})
}

// Update runs fn with buffered writes and applies them only on success.
func (b *Backend) Update(ctx context.Context, fn func(kvstore.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return kvstore.ErrClosed
	}

	t := &txn{base: b.data, writes: make(map[string][]byte), deletes: make(map[string]struct{})}
	if err := fn(t); err != nil {
		return err
	}
	for k := range t.deletes {
		delete(b.data, k)
	}
	maps.Copy(b.data, t.writes)
	return nil
}

// Len returns the number of stored keys.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

// Close drops all data.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.data = nil
	return nil
}

var errReadOnly = errors.New("memory: write in read-only transaction")

type txn struct {
	base    map[string][]byte
	writes  map[string][]byte
	deletes map[string]struct{}
}

func (t *txn) Get(key kvstore.Key) ([]byte, error) {
	k := string(key.Encode())
	if v, ok := t.writes[k]; ok {
		return clone(v), nil
	}
	if _, ok := t.deletes[k]; ok {
		return nil, kvstore.ErrNotFound
	}
	v, ok := t.base[k]
	if !ok {
		return nil, kvstore.ErrNotFound
	}
	return clone(v), nil
}

func (t *txn) Put(key kvstore.Key, value []byte) error {
	if t.writes == nil {
		return errReadOnly
	}
	k := string(key.Encode())
	delete(t.deletes, k)
	t.writes[k] = clone(value)
	return nil
}

func (t *txn) Delete(key kvstore.Key) error {
	if t.writes == nil {
		return errReadOnly
	}
	k := string(key.Encode())
	delete(t.writes, k)
	t.deletes[k] = struct{}{}
	return nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
