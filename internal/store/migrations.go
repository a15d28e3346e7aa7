package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
	id                TEXT PRIMARY KEY,
	provider          TEXT NOT NULL UNIQUE COLLATE NOCASE,
	email             TEXT NOT NULL DEFAULT '',
	username          TEXT NOT NULL DEFAULT '',
	host              TEXT NOT NULL,
	port              INTEGER NOT NULL,
	tls               INTEGER NOT NULL DEFAULT 1,
	poll_interval_sec INTEGER NOT NULL DEFAULT 25,
	auth_mode         TEXT NOT NULL DEFAULT 'password',
	access_token      TEXT NOT NULL DEFAULT '',
	token_expiry      DATETIME,
	token_endpoint    TEXT NOT NULL DEFAULT '',
	client_id         TEXT NOT NULL DEFAULT '',
	client_secret     TEXT NOT NULL DEFAULT '',
	scope             TEXT NOT NULL DEFAULT '',
	token_email       TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_accounts_provider ON accounts(provider);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
