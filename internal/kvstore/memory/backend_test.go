package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/gezibash/arc-guardian/internal/kvstore"
	"github.com/gezibash/arc-guardian/internal/kvstore/kvstoretest"
)

func TestBackend(t *testing.T) {
	kvstoretest.Run(t, func(t *testing.T) kvstore.Backend {
		be := New()
		t.Cleanup(func() { _ = be.Close() })
		return be
	})
}

func TestViewIsReadOnly(t *testing.T) {
	be := New()
	err := be.View(context.Background(), func(r kvstore.Reader) error {
		return r.(kvstore.Txn).Put(kvstore.NewKey("x", "", ""), []byte("y"))
	})
	if !errors.Is(err, errReadOnly) {
		t.Fatalf("Put in View = %v, want errReadOnly", err)
	}
	if be.Len() != 0 {
		t.Fatalf("Len = %d, want 0", be.Len())
	}
}

func TestRegistered(t *testing.T) {
	if !kvstore.IsRegistered("memory") {
		t.Fatal("memory backend not registered")
	}
	be, err := kvstore.New(context.Background(), "memory", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer be.Close()
	if _, ok := be.(*Backend); !ok {
		t.Fatalf("New returned %T", be)
	}
}
