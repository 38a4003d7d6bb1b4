// Package sqlite provides a SQLite kvstore backend.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"github.com/gezibash/arc-guardian/internal/kvstore"
	"github.com/gezibash/arc-guardian/internal/storage"
)

const (
	KeyPath        = "path"
	KeyJournalMode = "journal_mode"
	KeyBusyTimeout = "busy_timeout"
)

func init() {
	kvstore.Register("sqlite", NewFactory, Defaults)
}

// Defaults returns the default configuration for the SQLite backend.
func Defaults() storage.Config {
	return storage.Config{
		KeyPath:        "~/.arc/guardian/store.db",
		KeyJournalMode: "wal",
		KeyBusyTimeout: "5000",
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS kv (
    k BLOB PRIMARY KEY,
    v BLOB NOT NULL
) WITHOUT ROWID;
`

// NewFactory opens a SQLite backend from cfg.
func NewFactory(ctx context.Context, cfg storage.Config) (kvstore.Backend, error) {
	path := cfg.String(KeyPath, "")
	if path == "" {
		return nil, storage.NewConfigError("sqlite", KeyPath, "cannot be empty")
	}
	path = storage.ExpandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, storage.NewConfigErrorWithCause("sqlite", KeyPath, "failed to create directory", err)
	}

	journalMode := cfg.String(KeyJournalMode, "wal")
	busyTimeout, err := cfg.Int(KeyBusyTimeout, 5000)
	if err != nil {
		return nil, storage.ForBackend("sqlite", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(%s)&_pragma=busy_timeout(%d)&_txlock=immediate",
		path, journalMode, busyTimeout)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storage.NewConfigErrorWithCause("sqlite", KeyPath, "failed to open database", err)
	}
	// One connection serializes every transaction in this process.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, storage.NewConfigErrorWithCause("sqlite", KeyPath, "failed to initialize schema", err)
	}

	slog.Info("sqlite kvstore initialized", "path", path, "journal_mode", journalMode)
	return &Backend{db: db}, nil
}

// Backend is a SQLite implementation of kvstore.Backend.
type Backend struct {
	db     *sql.DB
	closed atomic.Bool
}

// View runs fn inside a transaction that is always rolled back.
func (b *Backend) View(ctx context.Context, fn func(kvstore.Reader) error) error {
	if b.closed.Load() {
		return kvstore.ErrClosed
	}
	sqlTx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite view: begin tx: %w", err)
	}
	defer sqlTx.Rollback() //nolint:errcheck

	return fn(&tx{ctx: ctx, tx: sqlTx, readOnly: true})
}

// Update runs fn in a transaction committed only when fn returns nil.
func (b *Backend) Update(ctx context.Context, fn func(kvstore.Txn) error) error {
	if b.closed.Load() {
		return kvstore.ErrClosed
	}
	sqlTx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite update: begin tx: %w", err)
	}
	defer sqlTx.Rollback() //nolint:errcheck

	if err := fn(&tx{ctx: ctx, tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("sqlite update: commit: %w", err)
	}
	return nil
}

// Close closes the database.
func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.db.Close()
}

var errReadOnly = errors.New("sqlite: write in read-only transaction")

type tx struct {
	ctx      context.Context
	tx       *sql.Tx
	readOnly bool
}

func (t *tx) Get(key kvstore.Key) ([]byte, error) {
	var v []byte
	err := t.tx.QueryRowContext(t.ctx, `SELECT v FROM kv WHERE k = ?`, key.Encode()).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kvstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get %s: %w", key, err)
	}
	return v, nil
}

func (t *tx) Put(key kvstore.Key, value []byte) error {
	if t.readOnly {
		return errReadOnly
	}
	if value == nil {
		value = []byte{}
	}
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO kv (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`,
		key.Encode(), value)
	if err != nil {
		return fmt.Errorf("sqlite put %s: %w", key, err)
	}
	return nil
}

func (t *tx) Delete(key kvstore.Key) error {
	if t.readOnly {
		return errReadOnly
	}
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM kv WHERE k = ?`, key.Encode()); err != nil {
		return fmt.Errorf("sqlite delete %s: %w", key, err)
	}
	return nil
}
