// Package identity provides algorithm-tagged public keys, signatures and
// the signer abstraction used to authenticate guardian service callers.
package identity

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// Algorithm identifies a signing algorithm.
type Algorithm string

const (
	AlgEd25519   Algorithm = "ed25519"
	AlgSecp256k1 Algorithm = "secp256k1"
)

// PublicKey is an algorithm-tagged public key.
type PublicKey struct {
	Algo  Algorithm
	Bytes []byte
}

// IsZero reports whether pk carries no key material.
func (pk PublicKey) IsZero() bool {
	return len(pk.Bytes) == 0
}

// Equal reports whether two keys are the same algorithm and bytes.
func (pk PublicKey) Equal(other PublicKey) bool {
	return normalizeAlgo(pk.Algo) == normalizeAlgo(other.Algo) && bytes.Equal(pk.Bytes, other.Bytes)
}

// String returns the "algo:hex" encoding.
func (pk PublicKey) String() string {
	return EncodePublicKey(pk)
}

// MarshalText implements encoding.TextMarshaler using the "algo:hex" form.
func (pk PublicKey) MarshalText() ([]byte, error) {
	if pk.IsZero() {
		return nil, nil
	}
	return []byte(EncodePublicKey(pk)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input yields the zero key.
func (pk *PublicKey) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*pk = PublicKey{}
		return nil
	}
	decoded, err := DecodePublicKey(string(b))
	if err != nil {
		return err
	}
	*pk = decoded
	return nil
}

// Signature is an algorithm-tagged signature.
type Signature struct {
	Algo  Algorithm
	Bytes []byte
}

// Signer represents a private key capable of signing.
type Signer interface {
	PublicKey() PublicKey
	Sign(payload []byte) (Signature, error)
	Algorithm() Algorithm
}

var (
	// ErrUnknownAlgorithm indicates an unknown algorithm.
	ErrUnknownAlgorithm = errors.New("unknown algorithm")
	// ErrInvalidEncoding indicates an invalid encoded key/signature.
	ErrInvalidEncoding = errors.New("invalid encoding")
)

func normalizeAlgo(a Algorithm) Algorithm {
	if a == "" {
		return AlgEd25519
	}
	return Algorithm(strings.ToLower(string(a)))
}

func encodeTagged(algo Algorithm, raw []byte) string {
	return string(normalizeAlgo(algo)) + ":" + hex.EncodeToString(raw)
}

// decodeTagged splits "algo:hex". A bare hex string is taken as ed25519.
func decodeTagged(s string) (Algorithm, []byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil, ErrInvalidEncoding
	}
	algo, hexPart, ok := strings.Cut(s, ":")
	if !ok {
		algo, hexPart = string(AlgEd25519), s
	}
	raw, err := hex.DecodeString(hexPart)
	if err != nil || len(raw) == 0 {
		return "", nil, ErrInvalidEncoding
	}
	return normalizeAlgo(Algorithm(strings.TrimSpace(algo))), raw, nil
}

// EncodePublicKey encodes a public key as "algo:hex".
func EncodePublicKey(pk PublicKey) string {
	return encodeTagged(pk.Algo, pk.Bytes)
}

// DecodePublicKey decodes a public key from "algo:hex".
// If no algorithm prefix is present, defaults to ed25519.
func DecodePublicKey(s string) (PublicKey, error) {
	algo, raw, err := decodeTagged(s)
	if err != nil {
		return PublicKey{}, err
	}
	return PublicKey{Algo: algo, Bytes: raw}, nil
}

// TryDecodePublicKey decodes s if it looks like a public key rather than
// a keyring alias. Returns (zero, false) otherwise.
func TryDecodePublicKey(s string) (PublicKey, bool) {
	if !strings.Contains(s, ":") && len(s) < 64 {
		return PublicKey{}, false
	}
	pk, err := DecodePublicKey(s)
	if err != nil {
		return PublicKey{}, false
	}
	return pk, true
}

// EncodeSignature encodes a signature as "algo:hex".
func EncodeSignature(sig Signature) string {
	return encodeTagged(sig.Algo, sig.Bytes)
}

// DecodeSignature decodes a signature from "algo:hex".
func DecodeSignature(s string) (Signature, error) {
	algo, raw, err := decodeTagged(s)
	if err != nil {
		return Signature{}, err
	}
	return Signature{Algo: algo, Bytes: raw}, nil
}

// Verify checks sig over payload. Ed25519 signs the payload directly;
// secp256k1 signs its SHA-256 digest with a DER-encoded ECDSA signature.
func Verify(pub PublicKey, payload []byte, sig Signature) bool {
	algo := normalizeAlgo(pub.Algo)
	if sig.Algo != "" && normalizeAlgo(sig.Algo) != algo {
		return false
	}

	switch algo {
	case AlgEd25519:
		if len(pub.Bytes) != ed25519.PublicKeySize {
			return false
		}
		return ed25519.Verify(pub.Bytes, payload, sig.Bytes)
	case AlgSecp256k1:
		key, err := secp256k1.ParsePubKey(pub.Bytes)
		if err != nil {
			return false
		}
		parsed, err := secpecdsa.ParseDERSignature(sig.Bytes)
		if err != nil {
			return false
		}
		hash := sha256.Sum256(payload)
		return parsed.Verify(hash[:], key)
	default:
		return false
	}
}
