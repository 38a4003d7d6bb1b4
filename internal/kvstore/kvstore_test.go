package kvstore

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/gezibash/arc-guardian/internal/storage"
)

func TestKeyEncodeRoundTrip(t *testing.T) {
	keys := []Key{
		{},
		{Namespace: "sessioncounter"},
		{Namespace: "session", ID: "42"},
		{Namespace: "approver", ID: "7", Field: "ed25519:0a0b"},
		{Namespace: "x", ID: strings.Repeat("z", 300), Field: "\x00\xff"},
	}
	for _, k := range keys {
		got, err := DecodeKey(k.Encode())
		if err != nil {
			t.Fatalf("DecodeKey(%v): %v", k, err)
		}
		if got != k {
			t.Errorf("round trip = %+v, want %+v", got, k)
		}
	}
}

func TestKeyEncodingIsInjective(t *testing.T) {
	a := Key{Namespace: "approver", ID: "1", Field: "a/b"}
	b := Key{Namespace: "approver", ID: "1/a", Field: "b"}
	if string(a.Encode()) == string(b.Encode()) {
		t.Fatal("distinct keys encode identically")
	}
}

func TestDecodeKeyErrors(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{"empty", nil},
		{"truncated", []byte{5, 'a', 'b'}},
		{"missing components", []byte{1, 'a'}},
		{"trailing", append(Key{Namespace: "a"}.Encode(), 'x')},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeKey(tt.in); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestKeyString(t *testing.T) {
	tests := []struct {
		key  Key
		want string
	}{
		{NewKey("sessioncounter", "", ""), "sessioncounter"},
		{NewKey("session", "3", ""), "session/3"},
		{NewKey("approver", "3", "ed25519:aa"), "approver/3/ed25519:aa"},
	}
	for _, tt := range tests {
		if got := tt.key.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

// mapTxn is a minimal Txn for the helpers below.
type mapTxn map[string][]byte

func (m mapTxn) Get(k Key) ([]byte, error) {
	v, ok := m[string(k.Encode())]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}
func (m mapTxn) Put(k Key, v []byte) error { m[string(k.Encode())] = v; return nil }
func (m mapTxn) Delete(k Key) error        { delete(m, string(k.Encode())); return nil }

func TestJSONHelpers(t *testing.T) {
	type rec struct {
		Guardians []string `json:"guardians"`
		Threshold int      `json:"threshold"`
	}
	tx := mapTxn{}
	key := NewKey("guardianset", "acct", "")

	if err := PutJSON(tx, key, rec{Guardians: []string{"g1", "g2"}, Threshold: 2}); err != nil {
		t.Fatal(err)
	}
	var got rec
	if err := GetJSON(tx, key, &got); err != nil {
		t.Fatal(err)
	}
	if got.Threshold != 2 || !slices.Equal(got.Guardians, []string{"g1", "g2"}) {
		t.Fatalf("got %+v", got)
	}

	if err := GetJSON(tx, NewKey("missing", "", ""), &got); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetJSON missing = %v", err)
	}
	tx.Put(NewKey("bad", "", ""), []byte("{"))
	if err := GetJSON(tx, NewKey("bad", "", ""), &got); err == nil {
		t.Fatal("expected decode error")
	}

	ok, err := Exists(tx, key)
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}
	ok, err = Exists(tx, NewKey("missing", "", ""))
	if err != nil || ok {
		t.Fatalf("Exists missing = %v, %v", ok, err)
	}
}

func TestRetryConflicts(t *testing.T) {
	errBusy := errors.New("busy")
	isBusy := func(err error) bool { return errors.Is(err, errBusy) }
	ctx := context.Background()

	calls := 0
	err := RetryConflicts(ctx, 5, isBusy, func() error {
		calls++
		if calls < 3 {
			return errBusy
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("err=%v calls=%d, want nil after 3", err, calls)
	}

	calls = 0
	err = RetryConflicts(ctx, 4, isBusy, func() error { calls++; return errBusy })
	if !errors.Is(err, ErrConflict) || calls != 4 {
		t.Fatalf("err=%v calls=%d, want ErrConflict after 4", err, calls)
	}

	other := errors.New("other")
	calls = 0
	err = RetryConflicts(ctx, 4, isBusy, func() error { calls++; return other })
	if !errors.Is(err, other) || calls != 1 {
		t.Fatalf("err=%v calls=%d, want other after 1", err, calls)
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if err := RetryConflicts(cctx, 4, isBusy, func() error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled ctx = %v", err)
	}
}

type nopBackend struct{ cfg storage.Config }

func (nopBackend) View(context.Context, func(Reader) error) error { return nil }
func (nopBackend) Update(context.Context, func(Txn) error) error  { return nil }
func (nopBackend) Close() error                                  { return nil }

func TestRegistry(t *testing.T) {
	Register("registry-test", func(_ context.Context, cfg storage.Config) (Backend, error) {
		return nopBackend{cfg: cfg}, nil
	}, func() storage.Config {
		return storage.Config{"path": "/default", "mode": "fast"}
	})

	if !IsRegistered("registry-test") {
		t.Fatal("not registered")
	}
	if !slices.Contains(ListBackends(), "registry-test") {
		t.Fatalf("ListBackends = %v", ListBackends())
	}
	if GetDefaults("registry-test")["mode"] != "fast" {
		t.Fatal("defaults not returned")
	}
	if GetDefaults("nope") != nil {
		t.Fatal("defaults for unknown backend")
	}

	be, err := New(context.Background(), "registry-test", storage.Config{"path": "/custom"})
	if err != nil {
		t.Fatal(err)
	}
	cfg := be.(nopBackend).cfg
	if cfg["path"] != "/custom" || cfg["mode"] != "fast" {
		t.Fatalf("merged config = %v", cfg)
	}

	_, err = New(context.Background(), "nope", nil)
	var ce *storage.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("unknown backend err = %v, want ConfigError", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("duplicate Register did not panic")
		}
	}()
	Register("registry-test", nil, nil)
}
