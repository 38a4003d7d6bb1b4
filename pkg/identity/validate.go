package identity

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// ErrInvalidKey is returned by ValidatePublicKey.
var ErrInvalidKey = errors.New("invalid public key")

// ValidatePublicKey checks that pk is a well-formed key for its algorithm:
// an ed25519 key must be the canonical encoding of a curve point, a
// secp256k1 key must be a compressed, uncompressed or hybrid point on the
// curve.
func ValidatePublicKey(pk PublicKey) error {
	_, err := CanonicalPublicKey(pk)
	return err
}

// CanonicalPublicKey validates pk and returns its single canonical
// encoding. secp256k1 points are re-serialized in compressed form, so every
// encoding of one point yields the same bytes. Non-canonical ed25519
// encodings are rejected.
func CanonicalPublicKey(pk PublicKey) (PublicKey, error) {
	if pk.IsZero() {
		return PublicKey{}, fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	algo := normalizeAlgo(pk.Algo)
	switch algo {
	case AlgEd25519:
		if len(pk.Bytes) != ed25519.PublicKeySize {
			return PublicKey{}, fmt.Errorf("%w: ed25519 key is %d bytes, want %d", ErrInvalidKey, len(pk.Bytes), ed25519.PublicKeySize)
		}
		p, err := new(edwards25519.Point).SetBytes(pk.Bytes)
		if err != nil {
			return PublicKey{}, fmt.Errorf("%w: ed25519: %v", ErrInvalidKey, err)
		}
		if !bytes.Equal(p.Bytes(), pk.Bytes) {
			return PublicKey{}, fmt.Errorf("%w: ed25519: non-canonical point encoding", ErrInvalidKey)
		}
		return PublicKey{Algo: algo, Bytes: bytes.Clone(pk.Bytes)}, nil
	case AlgSecp256k1:
		key, err := secp256k1.ParsePubKey(pk.Bytes)
		if err != nil {
			return PublicKey{}, fmt.Errorf("%w: secp256k1: %v", ErrInvalidKey, err)
		}
		return PublicKey{Algo: algo, Bytes: key.SerializeCompressed()}, nil
	default:
		return PublicKey{}, fmt.Errorf("%w: %w %q", ErrInvalidKey, ErrUnknownAlgorithm, pk.Algo)
	}
}
