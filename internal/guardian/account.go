package guardian

import (
	"fmt"
	"strconv"

	"github.com/gezibash/arc-guardian/pkg/identity"
)

// Account identifies an account owner or a guardian. The core treats it
// as an opaque string; the service uses the "algo:hex" encoding of the
// holder's public key.
type Account string

// AccountFromPublicKey returns the canonical account for pk. Keys that do
// not validate keep their literal encoding; ParseAccount rejects them.
func AccountFromPublicKey(pk identity.PublicKey) Account {
	if canon, err := identity.CanonicalPublicKey(pk); err == nil {
		pk = canon
	}
	return Account(identity.EncodePublicKey(pk))
}

// ParseAccount decodes s as a public key and returns its canonical account,
// so every spelling of one key (letter case, secp256k1 point format) maps
// to one account.
func ParseAccount(s string) (Account, error) {
	pk, err := identity.DecodePublicKey(s)
	if err != nil {
		return "", fmt.Errorf("parse account %q: %w", s, err)
	}
	canon, err := identity.CanonicalPublicKey(pk)
	if err != nil {
		return "", fmt.Errorf("parse account %q: %w", s, err)
	}
	return Account(identity.EncodePublicKey(canon)), nil
}

func (a Account) String() string { return string(a) }

// SessionID identifies a recovery session. IDs start at 1 and never repeat.
type SessionID uint64

func (id SessionID) String() string { return strconv.FormatUint(uint64(id), 10) }

// ParseSessionID parses a decimal session ID.
func ParseSessionID(s string) (SessionID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid session id %q", s)
	}
	return SessionID(n), nil
}
