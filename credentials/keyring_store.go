package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const keyringService = "graphmail"

// KeyringConfig selects where KeyringStore keeps its items.
type KeyringConfig struct {
	Dir      string
	Password string
	// Backends restricts the keyring implementations tried, in order. Empty means
	// the platform defaults followed by the encrypted file backend.
	Backends []keyring.BackendType
}

// KeyringStore is a Provider backed by the OS keyring, for single-host
// deployments without a parameter table.
type KeyringStore struct {
	ring keyring.Keyring
}

func OpenKeyring(cfg KeyringConfig) (*KeyringStore, error) {
	backends := cfg.Backends
	if len(backends) == 0 {
		backends = []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		}
	}
	dir := cfg.Dir
	if dir == "" {
		dir = "~/.config/graphmail/credentials"
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:              keyringService,
		AllowedBackends:          backends,
		FileDir:                  dir,
		FilePasswordFunc:         keyring.FixedStringPrompt(cfg.Password),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &KeyringStore{ring: ring}, nil
}

func (s *KeyringStore) Get(_ context.Context, name string) (string, error) {
	item, err := s.ring.Get(name)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", name, err)
	}
	return string(item.Data), nil
}

func (s *KeyringStore) Put(_ context.Context, name, value string) error {
	err := s.ring.Set(keyring.Item{
		Key:   name,
		Data:  []byte(value),
		Label: name,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", name, err)
	}
	return nil
}
