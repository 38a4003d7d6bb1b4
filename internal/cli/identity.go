package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/gezibash/arc-guardian/internal/config"
	"github.com/gezibash/arc-guardian/internal/keyring"
	"github.com/gezibash/arc-guardian/pkg/identity"
)

// ErrNoKey is returned when no key was named and the keyring has no default.
var ErrNoKey = errors.New("no signing key: pass --key or run 'arc-guardian keys generate --default'")

// Keyring returns the keyring under the client data directory.
func Keyring(cfg config.ClientConfig) *keyring.Keyring {
	return keyring.New(cfg.DataDir)
}

// LoadSigner loads cfg.Key from the keyring, or the default key when
// cfg.Key is empty.
func LoadSigner(ctx context.Context, cfg config.ClientConfig) (identity.Signer, error) {
	key, err := Keyring(cfg).LoadOrDefault(ctx, cfg.Key)
	switch {
	case errors.Is(err, keyring.ErrNoDefault):
		return nil, ErrNoKey
	case err != nil:
		return nil, fmt.Errorf("load key %q: %w", cfg.Key, err)
	}
	return key.Keypair, nil
}
