// Package kvstoretest holds the behaviour every kvstore backend must share.
// Backend packages call Run from their own tests.
package kvstoretest

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/gezibash/arc-guardian/internal/kvstore"
)

// NewFunc opens a fresh, empty backend. It should register its own cleanup.
type NewFunc func(t *testing.T) kvstore.Backend

// Run exercises the kvstore.Backend contract against newBackend.
func Run(t *testing.T, newBackend NewFunc) {
	t.Run("PutGetDelete", func(t *testing.T) { testPutGetDelete(t, newBackend(t)) })
	t.Run("RollbackOnError", func(t *testing.T) { testRollback(t, newBackend(t)) })
	t.Run("ReadYourWrites", func(t *testing.T) { testReadYourWrites(t, newBackend(t)) })
	t.Run("KeysDoNotCollide", func(t *testing.T) { testKeysDoNotCollide(t, newBackend(t)) })
	t.Run("ConcurrentIncrements", func(t *testing.T) { testConcurrentIncrements(t, newBackend(t)) })
	t.Run("Closed", func(t *testing.T) { testClosed(t, newBackend(t)) })
}

func get(t *testing.T, be kvstore.Backend, key kvstore.Key) ([]byte, error) {
	t.Helper()
	var out []byte
	err := be.View(context.Background(), func(r kvstore.Reader) error {
		v, err := r.Get(key)
		out = v
		return err
	})
	return out, err
}

func testPutGetDelete(t *testing.T, be kvstore.Backend) {
	ctx := context.Background()
	key := kvstore.NewKey("guardianset", "ed25519:aa", "")

	if _, err := get(t, be, key); !errors.Is(err, kvstore.ErrNotFound) {
		t.Fatalf("Get before Put = %v, want ErrNotFound", err)
	}

	if err := be.Update(ctx, func(tx kvstore.Txn) error {
		return tx.Put(key, []byte("v1"))
	}); err != nil {
		t.Fatalf("Update put: %v", err)
	}
	got, err := get(t, be, key)
	if err != nil || string(got) != "v1" {
		t.Fatalf("Get = %q, %v; want v1", got, err)
	}

	if err := be.Update(ctx, func(tx kvstore.Txn) error {
		return tx.Delete(key)
	}); err != nil {
		t.Fatalf("Update delete: %v", err)
	}
	if _, err := get(t, be, key); !errors.Is(err, kvstore.ErrNotFound) {
		t.Fatalf("Get after Delete = %v, want ErrNotFound", err)
	}

	// Deleting a missing key is not an error.
	if err := be.Update(ctx, func(tx kvstore.Txn) error {
		return tx.Delete(kvstore.NewKey("nope", "", ""))
	}); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
}

func testRollback(t *testing.T, be kvstore.Backend) {
	ctx := context.Background()
	a := kvstore.NewKey("t", "a", "")
	b := kvstore.NewKey("t", "b", "")
	boom := errors.New("boom")

	if err := be.Update(ctx, func(tx kvstore.Txn) error { return tx.Put(a, []byte("keep")) }); err != nil {
		t.Fatal(err)
	}

	err := be.Update(ctx, func(tx kvstore.Txn) error {
		if err := tx.Put(b, []byte("lost")); err != nil {
			return err
		}
		if err := tx.Delete(a); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update = %v, want callback error", err)
	}

	if _, err := get(t, be, b); !errors.Is(err, kvstore.ErrNotFound) {
		t.Fatalf("write from failed txn is visible: %v", err)
	}
	if v, err := get(t, be, a); err != nil || string(v) != "keep" {
		t.Fatalf("delete from failed txn applied: %q, %v", v, err)
	}
}

func testReadYourWrites(t *testing.T, be kvstore.Backend) {
	key := kvstore.NewKey("session", "1", "")
	err := be.Update(context.Background(), func(tx kvstore.Txn) error {
		if err := tx.Put(key, []byte("x")); err != nil {
			return err
		}
		v, err := tx.Get(key)
		if err != nil || string(v) != "x" {
			t.Errorf("Get after Put = %q, %v", v, err)
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		if _, err := tx.Get(key); !errors.Is(err, kvstore.ErrNotFound) {
			t.Errorf("Get after Delete = %v, want ErrNotFound", err)
		}
		return tx.Put(key, []byte("y"))
	})
	if err != nil {
		t.Fatal(err)
	}
	if v, err := get(t, be, key); err != nil || string(v) != "y" {
		t.Fatalf("committed value = %q, %v; want y", v, err)
	}
}

func testKeysDoNotCollide(t *testing.T, be kvstore.Backend) {
	keys := []kvstore.Key{
		{Namespace: "approver", ID: "1", Field: "a/b"},
		{Namespace: "approver", ID: "1/a", Field: "b"},
		{Namespace: "approver/1", ID: "a", Field: "b"},
		{Namespace: "approver", ID: "1a", Field: "b"},
	}
	err := be.Update(context.Background(), func(tx kvstore.Txn) error {
		for i, k := range keys {
			if err := tx.Put(k, []byte(strconv.Itoa(i))); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, k := range keys {
		v, err := get(t, be, k)
		if err != nil || !bytes.Equal(v, []byte(strconv.Itoa(i))) {
			t.Errorf("key %d (%s) = %q, %v", i, k, v, err)
		}
	}
}

func testConcurrentIncrements(t *testing.T, be kvstore.Backend) {
	const workers = 20
	ctx := context.Background()
	counter := kvstore.NewKey("sessioncounter", "", "")

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- be.Update(ctx, func(tx kvstore.Txn) error {
				n := 0
				v, err := tx.Get(counter)
				switch {
				case err == nil:
					n, err = strconv.Atoi(string(v))
					if err != nil {
						return err
					}
				case !errors.Is(err, kvstore.ErrNotFound):
					return err
				}
				return tx.Put(counter, []byte(strconv.Itoa(n+1)))
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	v, err := get(t, be, counter)
	if err != nil {
		t.Fatal(err)
	}
	if string(v) != strconv.Itoa(workers) {
		t.Fatalf("counter = %s, want %d (lost update)", v, workers)
	}
}

func testClosed(t *testing.T, be kvstore.Backend) {
	if err := be.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	err := be.View(context.Background(), func(kvstore.Reader) error { return nil })
	if !errors.Is(err, kvstore.ErrClosed) {
		t.Fatalf("View after Close = %v, want ErrClosed", err)
	}
	err = be.Update(context.Background(), func(kvstore.Txn) error { return nil })
	if !errors.Is(err, kvstore.ErrClosed) {
		t.Fatalf("Update after Close = %v, want ErrClosed", err)
	}
}
