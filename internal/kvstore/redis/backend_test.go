package redis

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gezibash/arc-guardian/internal/kvstore"
	"github.com/gezibash/arc-guardian/internal/kvstore/kvstoretest"
	"github.com/gezibash/arc-guardian/internal/storage"
)

// These tests need a live server; set ARC_GUARDIAN_TEST_REDIS_ADDR to run them.
func testAddr(t *testing.T) string {
	t.Helper()
	addr := os.Getenv("ARC_GUARDIAN_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ARC_GUARDIAN_TEST_REDIS_ADDR not set")
	}
	return addr
}

func newTestBackend(t *testing.T) kvstore.Backend {
	t.Helper()
	addr := testAddr(t)
	prefix := "arc:guardian:test:" + uuid.NewString() + ":"

	be, err := NewFactory(context.Background(), storage.Config{
		KeyAddr:      addr,
		KeyKeyPrefix: prefix,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = be.Close()
		purge(t, addr, prefix)
	})
	return be
}

func purge(t *testing.T, addr, prefix string) {
	ctx := context.Background()
	c := redis.NewClient(&redis.Options{Addr: addr})
	defer c.Close()
	iter := c.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		c.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		t.Logf("purge %s: %v", prefix, err)
	}
}

func TestBackend(t *testing.T) {
	kvstoretest.Run(t, newTestBackend)
}

func TestUpdateBumpsVersion(t *testing.T) {
	be := newTestBackend(t).(*Backend)
	ctx := context.Background()

	v0, err := be.version(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := be.Update(ctx, func(tx kvstore.Txn) error {
		return tx.Put(kvstore.NewKey("a", "", ""), []byte("1"))
	}); err != nil {
		t.Fatal(err)
	}
	v1, err := be.version(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v1 != v0+1 {
		t.Fatalf("version %d -> %d, want +1", v0, v1)
	}
}

func TestFactoryConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		cfg   storage.Config
		field string
	}{
		{"empty addr", storage.Config{}, KeyAddr},
		{"bad db", storage.Config{KeyAddr: "x:1", KeyDB: "zero"}, KeyDB},
		{"negative db", storage.Config{KeyAddr: "x:1", KeyDB: "-1"}, KeyDB},
		{"bad timeout", storage.Config{KeyAddr: "x:1", KeyDialTimeout: "later"}, KeyDialTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFactory(context.Background(), tt.cfg)
			var ce *storage.ConfigError
			if !errors.As(err, &ce) || ce.Backend != "redis" || ce.Field != tt.field {
				t.Fatalf("err = %v, want redis ConfigError on %s", err, tt.field)
			}
		})
	}
}

func TestIsConflict(t *testing.T) {
	if !isConflict(redis.TxFailedErr) || !isConflict(errSnapshotMoved) {
		t.Fatal("conflict errors not recognized")
	}
	if isConflict(errors.New("other")) {
		t.Fatal("unrelated error treated as conflict")
	}
}
