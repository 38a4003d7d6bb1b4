// Package redis provides a Redis kvstore backend for deployments that
// already run Redis with persistence enabled.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gezibash/arc-guardian/internal/kvstore"
	"github.com/gezibash/arc-guardian/internal/storage"
)

const (
	KeyAddr         = "addr"
	KeyPassword     = "password"
	KeyDB           = "db"
	KeyMaxRetries   = "max_retries"
	KeyTxnRetries   = "txn_retries"
	KeyDialTimeout  = "dial_timeout"
	KeyReadTimeout  = "read_timeout"
	KeyWriteTimeout = "write_timeout"
	KeyPoolSize     = "pool_size"
	KeyKeyPrefix    = "key_prefix"

	versionSuffix = "__version"
)

func init() {
	kvstore.Register("redis", NewFactory, Defaults)
}

// Defaults returns the default configuration for the Redis backend.
func Defaults() storage.Config {
	return storage.Config{
		KeyAddr:         "localhost:6379",
		KeyPassword:     "",
		KeyDB:           "0",
		KeyMaxRetries:   "3",
		KeyTxnRetries:   strconv.Itoa(kvstore.DefaultMaxRetries),
		KeyDialTimeout:  "5s",
		KeyReadTimeout:  "3s",
		KeyWriteTimeout: "3s",
		KeyPoolSize:     "0",
		KeyKeyPrefix:    "arc:guardian:",
	}
}

// NewFactory connects to Redis using cfg.
func NewFactory(ctx context.Context, cfg storage.Config) (kvstore.Backend, error) {
	addr := cfg.String(KeyAddr, "")
	if addr == "" {
		return nil, storage.NewConfigError("redis", KeyAddr, "cannot be empty")
	}

	db, err := cfg.Int(KeyDB, 0)
	if err != nil {
		return nil, storage.ForBackend("redis", err)
	}
	if db < 0 {
		return nil, &storage.ConfigError{Backend: "redis", Field: KeyDB, Value: cfg[KeyDB], Message: "must be non-negative"}
	}
	maxRetries, err := cfg.Int(KeyMaxRetries, 3)
	if err != nil {
		return nil, storage.ForBackend("redis", err)
	}
	txnRetries, err := cfg.Int(KeyTxnRetries, kvstore.DefaultMaxRetries)
	if err != nil {
		return nil, storage.ForBackend("redis", err)
	}
	dialTimeout, err := cfg.Duration(KeyDialTimeout, 5*time.Second)
	if err != nil {
		return nil, storage.ForBackend("redis", err)
	}
	readTimeout, err := cfg.Duration(KeyReadTimeout, 3*time.Second)
	if err != nil {
		return nil, storage.ForBackend("redis", err)
	}
	writeTimeout, err := cfg.Duration(KeyWriteTimeout, 3*time.Second)
	if err != nil {
		return nil, storage.ForBackend("redis", err)
	}
	poolSize, err := cfg.Int(KeyPoolSize, 0)
	if err != nil {
		return nil, storage.ForBackend("redis", err)
	}

	opts := &redis.Options{
		Addr:         addr,
		Password:     cfg.String(KeyPassword, ""),
		DB:           db,
		MaxRetries:   maxRetries,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	if poolSize > 0 {
		opts.PoolSize = poolSize
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, storage.NewConfigErrorWithCause("redis", KeyAddr, "failed to connect", err)
	}

	prefix := cfg.String(KeyKeyPrefix, "arc:guardian:")
	slog.Info("redis kvstore initialized", "addr", addr, "db", db, "key_prefix", prefix)
	return NewWithClient(client, prefix, txnRetries), nil
}

// Backend is a Redis implementation of kvstore.Backend.
//
// Every committed Update increments a store-wide version key inside its
// MULTI/EXEC block, and every transaction WATCHes that key. Any commit
// that lands between a transaction's first read and its EXEC therefore
// aborts it, which makes Updates serializable at the cost of retrying
// under contention.
type Backend struct {
	client     *redis.Client
	prefix     string
	txnRetries int
	closed     atomic.Bool
}

// NewWithClient wraps an existing client. The backend takes ownership of it.
func NewWithClient(client *redis.Client, prefix string, txnRetries int) *Backend {
	return &Backend{client: client, prefix: prefix, txnRetries: txnRetries}
}

func (b *Backend) versionKey() string { return b.prefix + versionSuffix }

func (b *Backend) redisKey(key kvstore.Key) string {
	return b.prefix + string(key.Encode())
}

// errSnapshotMoved signals that a View observed a concurrent commit.
var errSnapshotMoved = errors.New("redis: snapshot moved")

func isConflict(err error) bool {
	return errors.Is(err, redis.TxFailedErr) || errors.Is(err, errSnapshotMoved)
}

// View reads under an optimistic snapshot: if the version key changes
// while fn runs, fn is run again.
func (b *Backend) View(ctx context.Context, fn func(kvstore.Reader) error) error {
	if b.closed.Load() {
		return kvstore.ErrClosed
	}
	return kvstore.RetryConflicts(ctx, b.txnRetries, isConflict, func() error {
		before, err := b.version(ctx)
		if err != nil {
			return err
		}
		if err := fn(&tx{ctx: ctx, b: b, cmd: b.client}); err != nil {
			return err
		}
		after, err := b.version(ctx)
		if err != nil {
			return err
		}
		if before != after {
			return errSnapshotMoved
		}
		return nil
	})
}

// Update runs fn under WATCH and commits its buffered writes with MULTI/EXEC.
func (b *Backend) Update(ctx context.Context, fn func(kvstore.Txn) error) error {
	if b.closed.Load() {
		return kvstore.ErrClosed
	}
	return kvstore.RetryConflicts(ctx, b.txnRetries, isConflict, func() error {
		return b.client.Watch(ctx, func(rtx *redis.Tx) error {
			t := &tx{
				ctx:     ctx,
				b:       b,
				cmd:     rtx,
				writes:  make(map[string][]byte),
				deletes: make(map[string]struct{}),
			}
			if err := fn(t); err != nil {
				return err
			}
			_, err := rtx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				for k, v := range t.writes {
					p.Set(ctx, k, v, 0)
				}
				for k := range t.deletes {
					p.Del(ctx, k)
				}
				p.Incr(ctx, b.versionKey())
				return nil
			})
			return err
		}, b.versionKey())
	})
}

func (b *Backend) version(ctx context.Context) (int64, error) {
	v, err := b.client.Get(ctx, b.versionKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis version: %w", err)
	}
	return v, nil
}

// Close closes the client.
func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.client.Close()
}

var errReadOnly = errors.New("redis: write in read-only transaction")

// getter is the read side shared by *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

type tx struct {
	ctx     context.Context
	b       *Backend
	cmd     getter
	writes  map[string][]byte
	deletes map[string]struct{}
}

func (t *tx) Get(key kvstore.Key) ([]byte, error) {
	k := t.b.redisKey(key)
	if t.writes != nil {
		if v, ok := t.writes[k]; ok {
			return append([]byte(nil), v...), nil
		}
		if _, ok := t.deletes[k]; ok {
			return nil, kvstore.ErrNotFound
		}
	}
	v, err := t.cmd.Get(t.ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, kvstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

func (t *tx) Put(key kvstore.Key, value []byte) error {
	if t.writes == nil {
		return errReadOnly
	}
	k := t.b.redisKey(key)
	delete(t.deletes, k)
	t.writes[k] = append([]byte(nil), value...)
	return nil
}

func (t *tx) Delete(key kvstore.Key) error {
	if t.writes == nil {
		return errReadOnly
	}
	k := t.b.redisKey(key)
	delete(t.writes, k)
	t.deletes[k] = struct{}{}
	return nil
}
