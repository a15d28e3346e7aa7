package model

import "time"

// AuthMode selects how an account authenticates against its IMAP server.
type AuthMode string

const (
	AuthPassword AuthMode = "password"
	AuthOAuth    AuthMode = "oauth"
)

// expiryMargin is the safety window before the recorded expiry at which
// an access token is already considered stale.
const expiryMargin = 2 * time.Minute

// OAuthToken holds the OAuth credential state for one account. It is
// owned exclusively by its AccountConfig and mutated only through the
// token lifecycle refresh path.
type OAuthToken struct {
	// AccessToken is the current bearer token for IMAP authentication.
	AccessToken string `json:"access_token"`

	// RefreshToken is the long-lived token used to obtain new access
	// tokens. Without it an expired account cannot recover and must be
	// re-authorized.
	RefreshToken string `json:"refresh_token"`

	// Expiry is the absolute UTC time the access token stops being
	// valid.
	Expiry time.Time `json:"expiry"`

	// TokenEndpoint is the URL refresh exchanges are sent to.
	TokenEndpoint string `json:"token_endpoint"`

	// ClientID and ClientSecret identify the OAuth client. The secret
	// is empty for public PKCE clients.
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`

	// Scope is the granted scope string, preserved verbatim so refresh
	// exchanges request the same grants.
	Scope string `json:"scope"`

	// Email is the account identity resolved from the ID token claims
	// (or the userinfo fallback). Best effort; may be empty.
	Email string `json:"email"`
}

// Valid reports whether the access token can be used as-is at the given
// instant, applying the two-minute safety margin.
func (t *OAuthToken) Valid(now time.Time) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return t.Expiry.After(now.Add(expiryMargin))
}

// AccountConfig describes one monitored mailbox. It is treated as an
// immutable value after creation; only the embedded OAuthToken changes,
// and only through the refresh path.
type AccountConfig struct {
	// Provider is the user-visible provider name and the registry key.
	Provider string `json:"provider"`

	// Email is the mailbox address.
	Email string `json:"email"`

	// Username is the IMAP login name. Often equal to Email.
	Username string `json:"username"`

	// Password is the IMAP password for AuthPassword accounts.
	Password string `json:"-"`

	// Host, Port and TLS locate the IMAP endpoint.
	Host string `json:"host"`
	Port int    `json:"port"`
	TLS  bool   `json:"tls"`

	// PollIntervalSec is the delay between scheduled polls. Values
	// below MinPollIntervalSec are clamped up at use.
	PollIntervalSec int `json:"poll_interval_sec"`

	// AuthMode selects password or OAuth authentication.
	AuthMode AuthMode `json:"auth_mode"`

	// Token is present for AuthOAuth accounts.
	Token *OAuthToken `json:"token,omitempty"`
}

const (
	// MinPollIntervalSec is the floor applied to configured intervals.
	MinPollIntervalSec = 10

	// DefaultPollIntervalSec is used when no interval is configured.
	DefaultPollIntervalSec = 25
)

// PollInterval returns the effective poll interval with floor and
// default applied.
func (c AccountConfig) PollInterval() time.Duration {
	secs := c.PollIntervalSec
	if secs == 0 {
		secs = DefaultPollIntervalSec
	}
	if secs < MinPollIntervalSec {
		secs = MinPollIntervalSec
	}
	return time.Duration(secs) * time.Second
}

// Family returns the provider family this account belongs to.
func (c AccountConfig) Family() ProviderFamily {
	return FamilyOf(c.Provider)
}
