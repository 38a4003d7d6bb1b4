// Package badger provides the BadgerDB kvstore backend, the default
// durable store for the guardian service.
package badger

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/gezibash/arc-guardian/internal/kvstore"
	"github.com/gezibash/arc-guardian/internal/storage"
)

const (
	KeyPath             = "path"
	KeySyncWrites       = "sync_writes"
	KeyValueLogFileSize = "value_log_file_size"
	KeyMemTableSize     = "mem_table_size"
	KeyInMemory         = "in_memory"
	KeyMaxRetries       = "max_retries"
)

func init() {
	kvstore.Register("badger", NewFactory, Defaults)
}

// Defaults returns the default configuration for the BadgerDB backend.
func Defaults() storage.Config {
	return storage.Config{
		KeyPath:             "~/.arc/guardian/store",
		KeySyncWrites:       "true",
		KeyValueLogFileSize: strconv.FormatInt(256<<20, 10),
		KeyMemTableSize:     strconv.FormatInt(64<<20, 10),
		KeyInMemory:         "false",
		KeyMaxRetries:       strconv.Itoa(kvstore.DefaultMaxRetries),
	}
}

// NewFactory opens a BadgerDB backend from cfg.
func NewFactory(_ context.Context, cfg storage.Config) (kvstore.Backend, error) {
	inMemory, err := cfg.Bool(KeyInMemory, false)
	if err != nil {
		return nil, storage.ForBackend("badger", err)
	}
	maxRetries, err := cfg.Int(KeyMaxRetries, kvstore.DefaultMaxRetries)
	if err != nil {
		return nil, storage.ForBackend("badger", err)
	}

	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		path := cfg.String(KeyPath, "")
		if path == "" {
			return nil, storage.NewConfigError("badger", KeyPath, "cannot be empty")
		}
		path = storage.ExpandPath(path)
		if err := os.MkdirAll(path, 0o700); err != nil {
			return nil, storage.NewConfigErrorWithCause("badger", KeyPath, "failed to create directory", err)
		}

		syncWrites, err := cfg.Bool(KeySyncWrites, true)
		if err != nil {
			return nil, storage.ForBackend("badger", err)
		}
		vlogSize, err := cfg.Int64(KeyValueLogFileSize, 256<<20)
		if err != nil {
			return nil, storage.ForBackend("badger", err)
		}
		memTable, err := cfg.Int64(KeyMemTableSize, 64<<20)
		if err != nil {
			return nil, storage.ForBackend("badger", err)
		}

		opts = badger.DefaultOptions(path).WithSyncWrites(syncWrites)
		if vlogSize > 0 {
			opts = opts.WithValueLogFileSize(vlogSize)
		}
		if memTable > 0 {
			opts = opts.WithMemTableSize(memTable)
		}
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, storage.NewConfigErrorWithCause("badger", KeyPath, "failed to open database", err)
	}

	slog.Info("badger kvstore initialized", "path", opts.Dir, "in_memory", inMemory)
	b := NewWithDB(db)
	b.maxRetries = maxRetries
	return b, nil
}

// Backend is a BadgerDB implementation of kvstore.Backend. Transactions
// use badger's serializable snapshot isolation; commits that lose a
// read-write race are retried.
type Backend struct {
	db         *badger.DB
	closed     atomic.Bool
	maxRetries int
}

// NewWithDB wraps an open database. The backend takes ownership of db.
func NewWithDB(db *badger.DB) *Backend {
	return &Backend{db: db, maxRetries: kvstore.DefaultMaxRetries}
}

// View runs fn against a read-only snapshot.
func (b *Backend) View(ctx context.Context, fn func(kvstore.Reader) error) error {
	if b.closed.Load() {
		return kvstore.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.View(func(txn *badger.Txn) error {
		return fn(&tx{txn: txn})
	})
}

// Update runs fn in a read-write transaction, retrying on badger.ErrConflict.
func (b *Backend) Update(ctx context.Context, fn func(kvstore.Txn) error) error {
	if b.closed.Load() {
		return kvstore.ErrClosed
	}
	return kvstore.RetryConflicts(ctx, b.maxRetries, isConflict, func() error {
		return b.db.Update(func(txn *badger.Txn) error {
			return fn(&tx{txn: txn})
		})
	})
}

// Close closes the database.
func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.db.Close()
}

func isConflict(err error) bool {
	return errors.Is(err, badger.ErrConflict)
}

type tx struct {
	txn *badger.Txn
}

func (t *tx) Get(key kvstore.Key) ([]byte, error) {
	item, err := t.txn.Get(key.Encode())
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, kvstore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t *tx) Put(key kvstore.Key, value []byte) error {
	return t.txn.Set(key.Encode(), value)
}

func (t *tx) Delete(key kvstore.Key) error {
	return t.txn.Delete(key.Encode())
}
