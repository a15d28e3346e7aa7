package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Empty(t, cfg.Providers)
	assert.Empty(t, cfg.Keywords)
	assert.Equal(t, DefaultPollIntervalSec, cfg.PollIntervalSec)
}

func TestLoadConfigParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
poll_interval_sec: 45
keywords:
  - invoice
  - urgent
providers:
  gmail:
    client_id: cid
    auth_endpoint: https://accounts.google.com/o/oauth2/v2/auth
    token_endpoint: https://oauth2.googleapis.com/token
    scope: https://mail.google.com/
    extra_auth_params:
      access_type: offline
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 45, cfg.PollIntervalSec)
	assert.Equal(t, []string{"invoice", "urgent"}, cfg.Keywords)

	st, err := cfg.OAuthSettingsFor("gmail")
	require.NoError(t, err)
	assert.Equal(t, "cid", st.ClientID)
	assert.Equal(t, "offline", st.ExtraAuthParams["access_type"])
}

func TestLoadConfigClampsTinyInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("poll_interval_sec: 2\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultPollIntervalSec, cfg.PollIntervalSec)
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	in := &AppConfig{
		Providers: map[string]OAuthSettings{
			"outlook": {
				ClientID:      "cid",
				AuthEndpoint:  "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
				TokenEndpoint: "https://login.microsoftonline.com/common/oauth2/v2.0/token",
				Scope:         "https://outlook.office.com/IMAP.AccessAsUser.All offline_access",
			},
		},
		Keywords:        []string{"alert"},
		PollIntervalSec: 25,
	}
	require.NoError(t, SaveConfig(path, in))

	out, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, in.Keywords, out.Keywords)
	assert.Equal(t, in.PollIntervalSec, out.PollIntervalSec)

	st, err := out.OAuthSettingsFor("outlook")
	require.NoError(t, err)
	assert.Equal(t, "cid", st.ClientID)
}

func TestOAuthSettingsForErrors(t *testing.T) {
	cfg := &AppConfig{Providers: map[string]OAuthSettings{
		"broken": {ClientID: "cid"},
	}}

	_, err := cfg.OAuthSettingsFor("unknown")
	require.Error(t, err)
	assert.True(t, IsConfigError(err))

	_, err = cfg.OAuthSettingsFor("broken")
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}
