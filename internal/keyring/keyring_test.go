package keyring

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gezibash/arc-guardian/pkg/identity"
)

func newTestKeyring(t *testing.T) *Keyring {
	t.Helper()
	kr := New(t.TempDir())
	kr.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return kr
}

func TestGenerateAndLoad(t *testing.T) {
	ctx := context.Background()
	for _, algo := range []identity.Algorithm{identity.AlgEd25519, identity.AlgSecp256k1} {
		t.Run(string(algo), func(t *testing.T) {
			kr := newTestKeyring(t)
			key, err := kr.Generate(ctx, algo, "alice")
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if key.Metadata.Algorithm != algo {
				t.Errorf("Algorithm = %q, want %q", key.Metadata.Algorithm, algo)
			}
			if key.ID != identity.EncodePublicKey(key.Keypair.PublicKey()) {
				t.Errorf("ID = %q does not match public key", key.ID)
			}

			for _, ref := range []string{"alice", key.ID} {
				loaded, err := kr.Load(ctx, ref)
				if err != nil {
					t.Fatalf("Load(%q): %v", ref, err)
				}
				if !loaded.Keypair.PublicKey().Equal(key.Keypair.PublicKey()) {
					t.Errorf("Load(%q) returned a different key", ref)
				}
				if !loaded.Metadata.CreatedAt.Equal(kr.now()) {
					t.Errorf("CreatedAt = %v", loaded.Metadata.CreatedAt)
				}
			}

			sig, err := key.Keypair.Sign([]byte("payload"))
			if err != nil {
				t.Fatalf("Sign: %v", err)
			}
			if !identity.Verify(key.Keypair.PublicKey(), []byte("payload"), sig) {
				t.Error("signature from stored key does not verify")
			}
		})
	}
}

func TestGenerateUnknownAlgorithm(t *testing.T) {
	_, err := newTestKeyring(t).Generate(context.Background(), "rsa", "")
	if !errors.Is(err, identity.ErrUnknownAlgorithm) {
		t.Errorf("err = %v, want ErrUnknownAlgorithm", err)
	}
}

func TestGenerateEmptyAlgorithmIsEd25519(t *testing.T) {
	key, err := newTestKeyring(t).Generate(context.Background(), "", "")
	if err != nil {
		t.Fatal(err)
	}
	if key.Metadata.Algorithm != identity.AlgEd25519 {
		t.Errorf("Algorithm = %q", key.Metadata.Algorithm)
	}
}

func TestImportIsDeterministic(t *testing.T) {
	ctx := context.Background()
	seed := bytes.Repeat([]byte{7}, 32)

	for _, algo := range []identity.Algorithm{identity.AlgEd25519, identity.AlgSecp256k1} {
		t.Run(string(algo), func(t *testing.T) {
			a, err := newTestKeyring(t).Import(ctx, algo, seed, "a")
			if err != nil {
				t.Fatalf("Import: %v", err)
			}
			b, err := newTestKeyring(t).Import(ctx, algo, seed, "")
			if err != nil {
				t.Fatalf("Import: %v", err)
			}
			if a.ID != b.ID {
				t.Errorf("same seed produced %q and %q", a.ID, b.ID)
			}
			if !bytes.Equal(a.Keypair.Seed(), seed) {
				t.Error("seed not preserved")
			}
		})
	}

	if _, err := newTestKeyring(t).Import(ctx, identity.AlgEd25519, []byte{1, 2, 3}, ""); err == nil {
		t.Error("expected error for short seed")
	}
}

func TestLoadErrors(t *testing.T) {
	ctx := context.Background()
	kr := newTestKeyring(t)
	other := newTestKeyring(t)
	stranger, err := other.Generate(ctx, identity.AlgEd25519, "")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := kr.Load(ctx, "nobody"); !errors.Is(err, ErrAliasNotFound) {
		t.Errorf("unknown alias: err = %v", err)
	}
	if _, err := kr.Load(ctx, stranger.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown key: err = %v", err)
	}
	if _, err := kr.LoadDefault(ctx); !errors.Is(err, ErrNoDefault) {
		t.Errorf("empty keyring default: err = %v", err)
	}
}

func TestLoadRejectsMismatchedKeyFile(t *testing.T) {
	ctx := context.Background()
	kr := newTestKeyring(t)
	key, err := kr.Generate(ctx, identity.AlgEd25519, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(kr.keyPath(key.ID), bytes.Repeat([]byte{9}, 32), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := kr.Load(ctx, key.ID); err == nil {
		t.Error("expected error for key file that does not match its name")
	}
}

func TestDefaultKey(t *testing.T) {
	ctx := context.Background()
	kr := newTestKeyring(t)
	key, err := kr.Generate(ctx, identity.AlgSecp256k1, DefaultAlias)
	if err != nil {
		t.Fatal(err)
	}
	if err := kr.SetDefault(DefaultAlias); err != nil {
		t.Fatal(err)
	}

	got, err := kr.LoadDefault(ctx)
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
	if got.ID != key.ID {
		t.Errorf("default = %q, want %q", got.ID, key.ID)
	}

	got, err = kr.LoadOrDefault(ctx, "")
	if err != nil || got.ID != key.ID {
		t.Errorf("LoadOrDefault(\"\") = %v, %v", got, err)
	}

	if err := kr.SetDefault("missing"); !errors.Is(err, ErrAliasNotFound) {
		t.Errorf("SetDefault(missing) = %v", err)
	}
}

func TestListAndAliases(t *testing.T) {
	ctx := context.Background()
	kr := newTestKeyring(t)

	infos, err := kr.List(ctx)
	if err != nil || len(infos) != 0 {
		t.Fatalf("List on empty keyring = %v, %v", infos, err)
	}

	a, err := kr.Generate(ctx, identity.AlgEd25519, "a")
	if err != nil {
		t.Fatal(err)
	}
	b, err := kr.Generate(ctx, identity.AlgSecp256k1, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := kr.SetAlias("b", b.ID); err != nil {
		t.Fatal(err)
	}
	if err := kr.SetAlias("also-a", "a"); err != nil {
		t.Fatal(err)
	}
	if err := kr.SetDefault("b"); err != nil {
		t.Fatal(err)
	}

	infos, err = kr.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	byID := make(map[string]*KeyInfo)
	for _, info := range infos {
		byID[info.ID] = info
	}
	if len(byID) != 2 {
		t.Fatalf("List returned %d keys, want 2", len(byID))
	}
	if got := byID[a.ID]; got.IsDefault || len(got.Aliases) != 2 || got.Algorithm != identity.AlgEd25519 {
		t.Errorf("key a = %+v", got)
	}
	if got := byID[b.ID]; !got.IsDefault || len(got.Aliases) != 1 || got.Algorithm != identity.AlgSecp256k1 {
		t.Errorf("key b = %+v", got)
	}

	if err := kr.SetAlias("x", "nothing"); !errors.Is(err, ErrAliasNotFound) {
		t.Errorf("SetAlias to unknown = %v", err)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	kr := newTestKeyring(t)
	key, err := kr.Generate(ctx, identity.AlgEd25519, "me")
	if err != nil {
		t.Fatal(err)
	}
	if err := kr.SetDefault("me"); err != nil {
		t.Fatal(err)
	}

	if err := kr.Delete(ctx, "me"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := kr.Load(ctx, key.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after delete = %v", err)
	}
	if _, err := kr.LoadDefault(ctx); !errors.Is(err, ErrNoDefault) {
		t.Errorf("LoadDefault after delete = %v", err)
	}
	if _, err := os.Stat(kr.metaPath(key.ID)); !os.IsNotExist(err) {
		t.Errorf("metadata file still present: %v", err)
	}
	if err := kr.Delete(ctx, key.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete = %v", err)
	}
}

func TestFilePermissions(t *testing.T) {
	kr := newTestKeyring(t)
	key, err := kr.Generate(context.Background(), identity.AlgEd25519, "p")
	if err != nil {
		t.Fatal(err)
	}
	for _, path := range []string{kr.keyPath(key.ID), kr.metaPath(key.ID), filepath.Join(kr.dir, "keyring.json")} {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("%s mode = %o, want 600", filepath.Base(path), perm)
		}
	}
}
