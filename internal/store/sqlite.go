package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/frenchpresssscoffee-blip/InboxSentinel/internal/credential"
	"github.com/frenchpresssscoffee-blip/InboxSentinel/internal/model"
)

// SQLiteStore implements AccountStore using a local SQLite database,
// with secrets delegated to a Secrets backend.
type SQLiteStore struct {
	db      *sqlx.DB
	secrets Secrets
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string, secrets Secrets) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, secrets: secrets}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// accountRow is the database shape of one account.
type accountRow struct {
	ID              string       `db:"id"`
	Provider        string       `db:"provider"`
	Email           string       `db:"email"`
	Username        string       `db:"username"`
	Host            string       `db:"host"`
	Port            int          `db:"port"`
	TLS             bool         `db:"tls"`
	PollIntervalSec int          `db:"poll_interval_sec"`
	AuthMode        string       `db:"auth_mode"`
	AccessToken     string       `db:"access_token"`
	TokenExpiry     sql.NullTime `db:"token_expiry"`
	TokenEndpoint   string       `db:"token_endpoint"`
	ClientID        string       `db:"client_id"`
	ClientSecret    string       `db:"client_secret"`
	Scope           string       `db:"scope"`
	TokenEmail      string       `db:"token_email"`
	CreatedAt       time.Time    `db:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at"`
}

// SaveAccount inserts or replaces the account for its provider. The
// password and refresh token go to the secret backend; everything else
// is written to the accounts table.
func (s *SQLiteStore) SaveAccount(ctx context.Context, cfg model.AccountConfig) error {
	row := accountRow{
		ID:              uuid.NewString(),
		Provider:        cfg.Provider,
		Email:           cfg.Email,
		Username:        cfg.Username,
		Host:            cfg.Host,
		Port:            cfg.Port,
		TLS:             cfg.TLS,
		PollIntervalSec: cfg.PollIntervalSec,
		AuthMode:        string(cfg.AuthMode),
		UpdatedAt:       time.Now().UTC(),
		CreatedAt:       time.Now().UTC(),
	}
	if tok := cfg.Token; tok != nil {
		row.AccessToken = tok.AccessToken
		row.TokenExpiry = sql.NullTime{Time: tok.Expiry, Valid: !tok.Expiry.IsZero()}
		row.TokenEndpoint = tok.TokenEndpoint
		row.ClientID = tok.ClientID
		row.ClientSecret = tok.ClientSecret
		row.Scope = tok.Scope
		row.TokenEmail = tok.Email
	}

	const query = `
		INSERT INTO accounts (
			id, provider, email, username, host, port, tls,
			poll_interval_sec, auth_mode,
			access_token, token_expiry, token_endpoint,
			client_id, client_secret, scope, token_email,
			created_at, updated_at
		) VALUES (
			:id, :provider, :email, :username, :host, :port, :tls,
			:poll_interval_sec, :auth_mode,
			:access_token, :token_expiry, :token_endpoint,
			:client_id, :client_secret, :scope, :token_email,
			:created_at, :updated_at
		)
		ON CONFLICT(provider) DO UPDATE SET
			email = excluded.email,
			username = excluded.username,
			host = excluded.host,
			port = excluded.port,
			tls = excluded.tls,
			poll_interval_sec = excluded.poll_interval_sec,
			auth_mode = excluded.auth_mode,
			access_token = excluded.access_token,
			token_expiry = excluded.token_expiry,
			token_endpoint = excluded.token_endpoint,
			client_id = excluded.client_id,
			client_secret = excluded.client_secret,
			scope = excluded.scope,
			token_email = excluded.token_email,
			updated_at = excluded.updated_at`

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("saving account %s: %w", cfg.Provider, err)
	}

	if cfg.Password != "" {
		if err := s.secrets.SetSecret(credential.PasswordKey(cfg.Provider), cfg.Password); err != nil {
			return fmt.Errorf("saving password for %s: %w", cfg.Provider, err)
		}
	}
	if cfg.Token != nil && cfg.Token.RefreshToken != "" {
		if err := s.secrets.SetSecret(
			credential.RefreshTokenKey(cfg.Provider), cfg.Token.RefreshToken,
		); err != nil {
			return fmt.Errorf("saving refresh token for %s: %w", cfg.Provider, err)
		}
	}

	return nil
}

// LoadAccounts returns every persisted account, reassembled with its
// secrets. A secret missing from the backend loads as empty rather
// than failing the whole account.
func (s *SQLiteStore) LoadAccounts(ctx context.Context) ([]model.AccountConfig, error) {
	var rows []accountRow
	err := s.db.SelectContext(
		ctx, &rows, "SELECT * FROM accounts ORDER BY provider",
	)
	if err != nil {
		return nil, fmt.Errorf("loading accounts: %w", err)
	}

	accounts := make([]model.AccountConfig, 0, len(rows))
	for _, row := range rows {
		cfg := model.AccountConfig{
			Provider:        row.Provider,
			Email:           row.Email,
			Username:        row.Username,
			Host:            row.Host,
			Port:            row.Port,
			TLS:             row.TLS,
			PollIntervalSec: row.PollIntervalSec,
			AuthMode:        model.AuthMode(row.AuthMode),
		}

		if pw, err := s.secrets.GetSecret(credential.PasswordKey(row.Provider)); err == nil {
			cfg.Password = pw
		}

		if cfg.AuthMode == model.AuthOAuth {
			tok := &model.OAuthToken{
				AccessToken:   row.AccessToken,
				TokenEndpoint: row.TokenEndpoint,
				ClientID:      row.ClientID,
				ClientSecret:  row.ClientSecret,
				Scope:         row.Scope,
				Email:         row.TokenEmail,
			}
			if row.TokenExpiry.Valid {
				tok.Expiry = row.TokenExpiry.Time.UTC()
			}
			if rt, err := s.secrets.GetSecret(credential.RefreshTokenKey(row.Provider)); err == nil {
				tok.RefreshToken = rt
			}
			cfg.Token = tok
		}

		accounts = append(accounts, cfg)
	}

	return accounts, nil
}

// DeleteAccount removes the provider's account row and its secrets.
func (s *SQLiteStore) DeleteAccount(ctx context.Context, provider string) error {
	res, err := s.db.ExecContext(
		ctx, "DELETE FROM accounts WHERE provider = ? COLLATE NOCASE", provider,
	)
	if err != nil {
		return fmt.Errorf("deleting account %s: %w", provider, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.New("no such account: " + provider)
	}

	if err := s.secrets.DeleteSecret(credential.PasswordKey(provider)); err != nil {
		return err
	}
	return s.secrets.DeleteSecret(credential.RefreshTokenKey(provider))
}
