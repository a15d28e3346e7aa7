package store

import (
	"context"

	"github.com/frenchpresssscoffee-blip/InboxSentinel/internal/model"
)

// Secrets is the backend that holds account secrets (IMAP passwords,
// OAuth refresh tokens). The system keyring implements it in
// production; tests inject an in-memory map.
type Secrets interface {
	GetSecret(key string) (string, error)
	SetSecret(key, value string) error
	DeleteSecret(key string) error
}

// AccountStore persists account configurations between runs. Secrets
// never reach the database; they are split out to the Secrets backend
// and reassembled on load. Token scope and endpoint identity round-trip
// unchanged through refresh cycles.
type AccountStore interface {
	// SaveAccount inserts or replaces the account for its provider.
	SaveAccount(ctx context.Context, cfg model.AccountConfig) error

	// LoadAccounts returns every persisted account with its secrets
	// reattached.
	LoadAccounts(ctx context.Context) ([]model.AccountConfig, error)

	// DeleteAccount removes the provider's account and its secrets.
	DeleteAccount(ctx context.Context, provider string) error

	// Close releases the underlying database.
	Close() error
}
