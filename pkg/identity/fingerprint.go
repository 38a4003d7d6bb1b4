package identity

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns a short, stable identifier for a public key: the
// first 10 bytes of BLAKE2b-256 over its "algo:hex" encoding.
func Fingerprint(pk PublicKey) string {
	sum := blake2b.Sum256([]byte(EncodePublicKey(pk)))
	return hex.EncodeToString(sum[:10])
}
