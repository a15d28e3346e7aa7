package credential

import (
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "inboxsentinel"

// Keys are namespaced per provider so a replaced account overwrites its
// predecessor's secrets.
const (
	kindPassword     = "password"
	kindRefreshToken = "refresh-token"
)

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/inboxsentinel/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("inboxsentinel-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Store persists account secrets (IMAP passwords and OAuth refresh
// tokens) in the system keyring, keeping them out of the config file
// and the account database.
type Store struct{}

// NewStore returns a keyring-backed secret store.
func NewStore() *Store {
	return &Store{}
}

// GetSecret retrieves one secret. A missing key returns keyring's
// not-found error.
func (s *Store) GetSecret(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// SetSecret stores one secret.
func (s *Store) SetSecret(key, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// DeleteSecret removes one secret. Missing keys are not an error.
func (s *Store) DeleteSecret(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	if err := ring.Remove(key); err != nil && err != keyring.ErrKeyNotFound {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// PasswordKey returns the keyring key for a provider's IMAP password.
func PasswordKey(provider string) string {
	return kindPassword + ":" + provider
}

// RefreshTokenKey returns the keyring key for a provider's OAuth
// refresh token.
func RefreshTokenKey(provider string) string {
	return kindRefreshToken + ":" + provider
}
