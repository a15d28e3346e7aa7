package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// OAuthSettings holds the OAuth endpoint configuration for one provider,
// keyed by provider name in the application config.
type OAuthSettings struct {
	// ClientID identifies the OAuth client at the provider.
	ClientID string `mapstructure:"client_id" yaml:"client_id"`

	// ClientSecret is optional; PKCE public clients leave it empty.
	ClientSecret string `mapstructure:"client_secret" yaml:"client_secret"`

	// AuthEndpoint is the authorization URL the browser is sent to.
	AuthEndpoint string `mapstructure:"auth_endpoint" yaml:"auth_endpoint"`

	// TokenEndpoint is where codes and refresh tokens are exchanged.
	TokenEndpoint string `mapstructure:"token_endpoint" yaml:"token_endpoint"`

	// Scope is the space-separated scope string to request.
	Scope string `mapstructure:"scope" yaml:"scope"`

	// ExtraAuthParams are provider-specific query parameters appended
	// to the authorization URL (e.g. access_type=offline).
	ExtraAuthParams map[string]string `mapstructure:"extra_auth_params" yaml:"extra_auth_params"`
}

// Validate checks the settings are complete enough to start an
// authorization flow.
func (s OAuthSettings) Validate(provider string) error {
	switch {
	case s.ClientID == "":
		return &ConfigError{Provider: provider, Reason: "missing client_id"}
	case s.AuthEndpoint == "":
		return &ConfigError{Provider: provider, Reason: "missing auth_endpoint"}
	case s.TokenEndpoint == "":
		return &ConfigError{Provider: provider, Reason: "missing token_endpoint"}
	}
	return nil
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	// Providers maps provider names to their OAuth endpoint settings.
	Providers map[string]OAuthSettings `mapstructure:"providers" yaml:"providers"`

	// Keywords is the ordered keyword list messages are classified
	// against. Edits are picked up on the next scheduled poll.
	Keywords []string `mapstructure:"keywords" yaml:"keywords"`

	// PollIntervalSec is the default poll interval for new accounts.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`

	// DatabasePath overrides the default account database location.
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
}

// OAuthSettingsFor looks up the settings for a provider and validates
// them. A missing entry is a configuration error, not a crash.
func (c *AppConfig) OAuthSettingsFor(provider string) (OAuthSettings, error) {
	st, ok := c.Providers[provider]
	if !ok {
		return OAuthSettings{}, &ConfigError{
			Provider: provider,
			Reason:   "no oauth settings configured",
		}
	}
	if err := st.Validate(provider); err != nil {
		return OAuthSettings{}, err
	}
	return st, nil
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/inboxsentinel/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "inboxsentinel", "config.yaml")
}

// DefaultDatabasePath returns the default account database location
// next to the config file.
func DefaultDatabasePath() string {
	return filepath.Join(filepath.Dir(DefaultConfigPath()), "accounts.db")
}

func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Providers:       map[string]OAuthSettings{},
		Keywords:        []string{},
		PollIntervalSec: DefaultPollIntervalSec,
	}
}

// LoadConfig reads configuration from the given YAML file path using
// Viper. If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("poll_interval_sec", DefaultPollIntervalSec)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.PollIntervalSec < MinPollIntervalSec {
		cfg.PollIntervalSec = DefaultPollIntervalSec
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("providers", cfg.Providers)
	v.Set("keywords", cfg.Keywords)
	v.Set("poll_interval_sec", cfg.PollIntervalSec)
	if cfg.DatabasePath != "" {
		v.Set("database_path", cfg.DatabasePath)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
