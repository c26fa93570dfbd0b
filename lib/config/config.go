// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings in
// time.ParseDuration form ("300s", "6h").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var text string
	if err := value.Decode(&text); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the CLI configuration.
type Config struct {
	// Provider configures the identity provider endpoints.
	Provider ProviderConfig `yaml:"provider"`

	// Login configures the local callback and timing.
	Login LoginConfig `yaml:"login"`

	// Identity configures credential storage.
	Identity IdentityConfig `yaml:"identity"`
}

// ProviderConfig configures the identity provider.
type ProviderConfig struct {
	// URL is the authorize page the browser opens.
	URL string `yaml:"url"`

	// Origin is the provider's web origin; callback requests carrying
	// a different Origin header are refused.
	Origin string `yaml:"origin"`

	// DerivationOrigin, when set, is the origin the delegation must
	// be derived for. Empty accepts the provider's default.
	DerivationOrigin string `yaml:"derivation_origin,omitempty"`
}

// LoginConfig configures the login flow.
type LoginConfig struct {
	// CallbackPort is the loopback port registered with the provider.
	CallbackPort int `yaml:"callback_port"`

	// Timeout bounds the wait for the browser callback.
	Timeout Duration `yaml:"timeout"`

	// SessionTTL is the delegation lifetime requested at login.
	SessionTTL Duration `yaml:"session_ttl"`
}

// IdentityConfig configures credential storage.
type IdentityConfig struct {
	// Path overrides the identity file location. Empty uses the
	// standard location under the user config directory.
	Path string `yaml:"path,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			URL:    "https://id.ai/#authorize",
			Origin: "https://id.ai",
		},
		Login: LoginConfig{
			CallbackPort: 8620,
			Timeout:      Duration(300 * time.Second),
			SessionTTL:   Duration(6 * time.Hour),
		},
	}
}

// Load reads the configuration from KINIC_CONFIG, or from
// ~/.config/kinic/config.yaml when unset. A missing file yields the
// defaults; a present but malformed file is an error.
func Load() (*Config, error) {
	path := os.Getenv("KINIC_CONFIG")
	explicit := path != ""
	if !explicit {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return Default(), nil
		}
		path = filepath.Join(configDir, "kinic", "config.yaml")
	}

	cfg, err := LoadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads and validates the configuration at path, applied on
// top of the defaults.
func LoadFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.Identity.Path = os.ExpandEnv(cfg.Identity.Path)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Provider.URL == "" {
		return fmt.Errorf("provider.url must not be empty")
	}
	if err := validateOrigin(c.Provider.Origin, "provider.origin"); err != nil {
		return err
	}
	if c.Provider.DerivationOrigin != "" {
		if err := validateOrigin(c.Provider.DerivationOrigin, "provider.derivation_origin"); err != nil {
			return err
		}
	}
	if c.Login.CallbackPort < 1 || c.Login.CallbackPort > 65535 {
		return fmt.Errorf("login.callback_port %d is out of range", c.Login.CallbackPort)
	}
	if c.Login.Timeout <= 0 {
		return fmt.Errorf("login.timeout must be positive")
	}
	if c.Login.SessionTTL <= 0 {
		return fmt.Errorf("login.session_ttl must be positive")
	}
	return nil
}

// validateOrigin requires a bare scheme://host origin, no path or
// fragment.
func validateOrigin(origin, field string) error {
	if origin == "" {
		return fmt.Errorf("%s must not be empty", field)
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%s %q is not an origin (need scheme://host)", field, origin)
	}
	if parsed.Path != "" || parsed.RawQuery != "" || parsed.Fragment != "" {
		return fmt.Errorf("%s %q must be a bare origin without a path", field, origin)
	}
	return nil
}
