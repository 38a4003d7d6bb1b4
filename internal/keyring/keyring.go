// Package keyring manages the local signing keys used by arc-guardian
// client commands. Keys live as seed files under <data_dir>/keys with a
// keyring.json index of aliases and the default key.
package keyring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gezibash/arc-guardian/pkg/identity"
	"github.com/gezibash/arc-guardian/pkg/identity/ed25519"
	"github.com/gezibash/arc-guardian/pkg/identity/secp256k1"
)

const DefaultAlias = "default"

var (
	ErrNotFound      = errors.New("key not found")
	ErrAliasNotFound = errors.New("alias not found")
	ErrAlreadyExists = errors.New("key already exists")
	ErrNoDefault     = errors.New("no default key set")
)

// Keypair is a signer whose private seed can be persisted.
type Keypair interface {
	identity.Signer
	Seed() []byte
}

type Keyring struct {
	dir string
	now func() time.Time
}

type Key struct {
	Keypair  Keypair
	ID       string // "algo:hex" public key
	Metadata *Metadata
}

type Metadata struct {
	PublicKey string             `json:"public_key"`
	Algorithm identity.Algorithm `json:"algorithm"`
	CreatedAt time.Time          `json:"created_at"`
}

type KeyInfo struct {
	ID        string             `json:"id"`
	Algorithm identity.Algorithm `json:"algorithm"`
	Aliases   []string           `json:"aliases,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	IsDefault bool               `json:"is_default"`
}

func New(dir string) *Keyring {
	return &Keyring{dir: dir, now: time.Now}
}

// newKeypair generates a fresh keypair for algo.
func newKeypair(algo identity.Algorithm) (Keypair, error) {
	switch algo {
	case identity.AlgEd25519, "":
		return ed25519.Generate()
	case identity.AlgSecp256k1:
		return secp256k1.Generate()
	default:
		return nil, fmt.Errorf("%w: %q", identity.ErrUnknownAlgorithm, algo)
	}
}

func keypairFromSeed(algo identity.Algorithm, seed []byte) (Keypair, error) {
	switch algo {
	case identity.AlgEd25519, "":
		return ed25519.FromSeed(seed)
	case identity.AlgSecp256k1:
		return secp256k1.FromSeed(seed)
	default:
		return nil, fmt.Errorf("%w: %q", identity.ErrUnknownAlgorithm, algo)
	}
}

// Generate creates and stores a new key, optionally under alias.
func (kr *Keyring) Generate(_ context.Context, algo identity.Algorithm, alias string) (*Key, error) {
	kp, err := newKeypair(algo)
	if err != nil {
		return nil, err
	}
	id := identity.EncodePublicKey(kp.PublicKey())
	if kr.keyExists(id) {
		return nil, ErrAlreadyExists
	}
	return kr.store(kp, id, alias)
}

// Import stores a key derived from seed. Importing an existing key
// refreshes its alias but keeps the key files.
func (kr *Keyring) Import(_ context.Context, algo identity.Algorithm, seed []byte, alias string) (*Key, error) {
	kp, err := keypairFromSeed(algo, seed)
	if err != nil {
		return nil, err
	}
	return kr.store(kp, identity.EncodePublicKey(kp.PublicKey()), alias)
}

func (kr *Keyring) store(kp Keypair, id, alias string) (*Key, error) {
	meta := &Metadata{
		PublicKey: id,
		Algorithm: kp.Algorithm(),
		CreatedAt: kr.now().UTC(),
	}
	if err := kr.saveKey(kp, id, meta); err != nil {
		return nil, err
	}
	if alias != "" {
		if err := kr.SetAlias(alias, id); err != nil {
			_ = kr.deleteKeyFiles(id)
			return nil, err
		}
	}
	return &Key{Keypair: kp, ID: id, Metadata: meta}, nil
}

// Load resolves nameOrID as an alias or an "algo:hex" public key.
func (kr *Keyring) Load(_ context.Context, nameOrID string) (*Key, error) {
	id, err := kr.resolve(nameOrID)
	if err != nil {
		return nil, err
	}
	kp, meta, err := kr.loadKey(id)
	if err != nil {
		return nil, err
	}
	return &Key{Keypair: kp, ID: id, Metadata: meta}, nil
}

func (kr *Keyring) LoadDefault(ctx context.Context) (*Key, error) {
	kf, err := kr.loadKeyringFile()
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNoDefault
	}
	if err != nil {
		return nil, err
	}
	if kf.Default == "" {
		return nil, ErrNoDefault
	}
	return kr.Load(ctx, kf.Default)
}

// LoadOrDefault loads nameOrID, or the default key when nameOrID is empty.
func (kr *Keyring) LoadOrDefault(ctx context.Context, nameOrID string) (*Key, error) {
	if nameOrID == "" {
		return kr.LoadDefault(ctx)
	}
	return kr.Load(ctx, nameOrID)
}

func (kr *Keyring) List(_ context.Context) ([]*KeyInfo, error) {
	kf, err := kr.loadKeyringFile()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	aliasMap := make(map[string][]string)
	defaultID := ""
	if kf != nil {
		for alias, id := range kf.Aliases {
			aliasMap[id] = append(aliasMap[id], alias)
		}
		if kf.Default != "" {
			defaultID = kf.Aliases[kf.Default]
		}
	}

	ids, err := kr.listKeyFiles()
	if err != nil {
		return nil, err
	}

	infos := make([]*KeyInfo, 0, len(ids))
	for _, id := range ids {
		_, meta, err := kr.loadKey(id)
		if err != nil {
			continue
		}
		infos = append(infos, &KeyInfo{
			ID:        id,
			Algorithm: meta.Algorithm,
			Aliases:   aliasMap[id],
			CreatedAt: meta.CreatedAt,
			IsDefault: id == defaultID,
		})
	}
	return infos, nil
}

func (kr *Keyring) Delete(_ context.Context, nameOrID string) error {
	id, err := kr.resolve(nameOrID)
	if err != nil {
		return err
	}

	kf, err := kr.loadKeyringFile()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if kf != nil {
		changed := false
		if kf.Default != "" && kf.Aliases[kf.Default] == id {
			kf.Default = ""
			changed = true
		}
		for alias, aliased := range kf.Aliases {
			if aliased == id {
				delete(kf.Aliases, alias)
				changed = true
			}
		}
		if changed {
			if err := kr.saveKeyringFile(kf); err != nil {
				return err
			}
		}
	}
	return kr.deleteKeyFiles(id)
}

// SetAlias points alias at the stored key nameOrID.
func (kr *Keyring) SetAlias(alias, nameOrID string) error {
	id, err := kr.resolve(nameOrID)
	if err != nil {
		return err
	}
	kf, err := kr.loadOrInitKeyringFile()
	if err != nil {
		return err
	}
	kf.Aliases[alias] = id
	return kr.saveKeyringFile(kf)
}

func (kr *Keyring) SetDefault(alias string) error {
	kf, err := kr.loadOrInitKeyringFile()
	if err != nil {
		return err
	}
	if _, ok := kf.Aliases[alias]; !ok {
		return ErrAliasNotFound
	}
	kf.Default = alias
	return kr.saveKeyringFile(kf)
}

func (kr *Keyring) resolve(nameOrID string) (string, error) {
	kf, err := kr.loadKeyringFile()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", err
	}
	if kf != nil {
		if id, ok := kf.Aliases[nameOrID]; ok {
			if !kr.keyExists(id) {
				return "", ErrNotFound
			}
			return id, nil
		}
	}

	if pk, ok := identity.TryDecodePublicKey(nameOrID); ok {
		id := identity.EncodePublicKey(pk)
		if kr.keyExists(id) {
			return id, nil
		}
		return "", ErrNotFound
	}
	return "", ErrAliasNotFound
}
