package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/gezibash/arc-guardian/internal/kvstore"
	"github.com/gezibash/arc-guardian/internal/kvstore/kvstoretest"
	"github.com/gezibash/arc-guardian/internal/storage"
)

func newTestBackend(t *testing.T) kvstore.Backend {
	t.Helper()
	be, err := NewFactory(context.Background(), storage.Config{KeyPath: filepath.Join(t.TempDir(), "store.db")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = be.Close() })
	return be
}

func TestBackend(t *testing.T) {
	kvstoretest.Run(t, newTestBackend)
}

func TestViewIsReadOnly(t *testing.T) {
	be := newTestBackend(t)
	err := be.View(context.Background(), func(r kvstore.Reader) error {
		return r.(kvstore.Txn).Put(kvstore.NewKey("x", "", ""), []byte("y"))
	})
	if !errors.Is(err, errReadOnly) {
		t.Fatalf("Put in View = %v, want errReadOnly", err)
	}
}

func TestEmptyValue(t *testing.T) {
	be := newTestBackend(t)
	ctx := context.Background()
	key := kvstore.NewKey("approver", "1", "g")

	if err := be.Update(ctx, func(tx kvstore.Txn) error { return tx.Put(key, nil) }); err != nil {
		t.Fatal(err)
	}
	err := be.View(ctx, func(r kvstore.Reader) error {
		ok, err := kvstore.Exists(r, key)
		if err == nil && !ok {
			t.Error("empty value not stored")
		}
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestFactoryConfigErrors(t *testing.T) {
	_, err := NewFactory(context.Background(), storage.Config{})
	var ce *storage.ConfigError
	if !errors.As(err, &ce) || ce.Field != KeyPath {
		t.Fatalf("empty path err = %v", err)
	}

	_, err = NewFactory(context.Background(), storage.Config{
		KeyPath:        filepath.Join(t.TempDir(), "x.db"),
		KeyBusyTimeout: "soon",
	})
	if !errors.As(err, &ce) || ce.Backend != "sqlite" || ce.Field != KeyBusyTimeout {
		t.Fatalf("bad busy_timeout err = %v", err)
	}
}
