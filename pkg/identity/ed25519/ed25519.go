// Package ed25519 provides an identity.Signer backed by Ed25519.
package ed25519

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"

	"github.com/gezibash/arc-guardian/pkg/identity"
)

// SeedSize is the length of an Ed25519 private key seed.
const SeedSize = ed25519.SeedSize

// Keypair implements identity.Signer for Ed25519.
type Keypair struct {
	private ed25519.PrivateKey
}

// Generate creates a new random keypair.
func Generate() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Keypair{private: priv}, nil
}

// FromSeed creates a keypair from a 32-byte seed.
func FromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != SeedSize {
		return nil, errors.New("invalid seed length")
	}
	return &Keypair{private: ed25519.NewKeyFromSeed(seed)}, nil
}

// Seed returns the 32-byte seed for this keypair.
func (k *Keypair) Seed() []byte {
	return k.private.Seed()
}

// PublicKey returns a copy of the public key.
func (k *Keypair) PublicKey() identity.PublicKey {
	pub, _ := k.private.Public().(ed25519.PublicKey)
	out := make([]byte, len(pub))
	copy(out, pub)
	return identity.PublicKey{Algo: identity.AlgEd25519, Bytes: out}
}

// Sign signs a payload.
func (k *Keypair) Sign(payload []byte) (identity.Signature, error) {
	return identity.Signature{Algo: identity.AlgEd25519, Bytes: ed25519.Sign(k.private, payload)}, nil
}

// Algorithm returns the algorithm identifier.
func (k *Keypair) Algorithm() identity.Algorithm {
	return identity.AlgEd25519
}
