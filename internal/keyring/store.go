package keyring

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gezibash/arc-guardian/pkg/identity"
)

type keyringFile struct {
	Version int               `json:"version"`
	Default string            `json:"default,omitempty"`
	Aliases map[string]string `json:"aliases"`
}

func (kr *Keyring) keysDir() string {
	return filepath.Join(kr.dir, "keys")
}

func (kr *Keyring) keyringFilePath() string {
	return filepath.Join(kr.dir, "keyring.json")
}

// fileBase maps "algo:hex" to a file-system safe "algo-hex".
func fileBase(id string) string {
	return strings.Replace(id, ":", "-", 1)
}

func idFromFileBase(base string) string {
	return strings.Replace(base, "-", ":", 1)
}

func (kr *Keyring) keyPath(id string) string {
	return filepath.Join(kr.keysDir(), fileBase(id)+".key")
}

func (kr *Keyring) metaPath(id string) string {
	return filepath.Join(kr.keysDir(), fileBase(id)+".json")
}

func (kr *Keyring) keyExists(id string) bool {
	_, err := os.Stat(kr.keyPath(id))
	return err == nil
}

func (kr *Keyring) saveKey(kp Keypair, id string, meta *Metadata) error {
	if err := os.MkdirAll(kr.keysDir(), 0o700); err != nil {
		return fmt.Errorf("create keys directory: %w", err)
	}

	keyPath := kr.keyPath(id)
	if err := os.WriteFile(keyPath, kp.Seed(), 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		_ = os.Remove(keyPath)
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(kr.metaPath(id), metaJSON, 0o600); err != nil {
		_ = os.Remove(keyPath)
		return fmt.Errorf("write metadata file: %w", err)
	}
	return nil
}

func (kr *Keyring) loadKey(id string) (Keypair, *Metadata, error) {
	seed, err := os.ReadFile(kr.keyPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("read key file: %w", err)
	}

	pk, err := identity.DecodePublicKey(id)
	if err != nil {
		return nil, nil, fmt.Errorf("parse key id %q: %w", id, err)
	}

	meta := &Metadata{PublicKey: id, Algorithm: pk.Algo}
	metaJSON, err := os.ReadFile(kr.metaPath(id))
	switch {
	case err == nil:
		if err := json.Unmarshal(metaJSON, meta); err != nil {
			return nil, nil, fmt.Errorf("parse metadata: %w", err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, nil, fmt.Errorf("read metadata file: %w", err)
	}

	kp, err := keypairFromSeed(pk.Algo, seed)
	if err != nil {
		return nil, nil, fmt.Errorf("create keypair from seed: %w", err)
	}
	if !kp.PublicKey().Equal(pk) {
		return nil, nil, fmt.Errorf("key file %s does not match its name", kr.keyPath(id))
	}
	return kp, meta, nil
}

func (kr *Keyring) deleteKeyFiles(id string) error {
	if err := os.Remove(kr.keyPath(id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete key file: %w", err)
	}
	_ = os.Remove(kr.metaPath(id))
	return nil
}

func (kr *Keyring) listKeyFiles() ([]string, error) {
	entries, err := os.ReadDir(kr.keysDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read keys directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".key") {
			continue
		}
		ids = append(ids, idFromFileBase(strings.TrimSuffix(entry.Name(), ".key")))
	}
	return ids, nil
}

func (kr *Keyring) loadKeyringFile() (*keyringFile, error) {
	data, err := os.ReadFile(kr.keyringFilePath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read keyring file: %w", err)
	}

	kf := &keyringFile{}
	if err := json.Unmarshal(data, kf); err != nil {
		return nil, fmt.Errorf("parse keyring file: %w", err)
	}
	if kf.Aliases == nil {
		kf.Aliases = make(map[string]string)
	}
	return kf, nil
}

func (kr *Keyring) loadOrInitKeyringFile() (*keyringFile, error) {
	kf, err := kr.loadKeyringFile()
	if errors.Is(err, ErrNotFound) {
		return &keyringFile{Version: 1, Aliases: make(map[string]string)}, nil
	}
	return kf, err
}

func (kr *Keyring) saveKeyringFile(kf *keyringFile) error {
	if err := os.MkdirAll(kr.dir, 0o700); err != nil {
		return fmt.Errorf("create keyring directory: %w", err)
	}

	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal keyring file: %w", err)
	}
	if err := os.WriteFile(kr.keyringFilePath(), data, 0o600); err != nil {
		return fmt.Errorf("write keyring file: %w", err)
	}
	return nil
}
