package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// DefaultBaseURL is used when neither the environment nor the file set one.
	DefaultBaseURL = "http://localhost:5000"

	// BaseURLEnv overrides base_url at deployment time.
	BaseURLEnv = "SOCIALSYNC_API_URL"

	defaultRequestTimeout = 10 * time.Second
)

// Config represents the global ~/.socialsync/config.toml.
type Config struct {
	DefaultSession string   `toml:"default_session"`
	BaseURL        string   `toml:"base_url"`
	RequestTimeout string   `toml:"request_timeout"`
	Identity       Identity `toml:"identity"`
	Chat           Chat     `toml:"chat"`
}

// Identity is the signed-in user handed over by the identity provider.
type Identity struct {
	UID       string `toml:"uid"`
	Name      string `toml:"name"`
	Email     string `toml:"email"`
	AvatarURL string `toml:"avatar_url"`
}

// Chat holds synchronizer behaviour switches.
type Chat struct {
	// FilterIncoming drops live messages outside the selected conversation.
	FilterIncoming bool `toml:"filter_incoming"`
	// CountUnread increments a peer's unread counter on live messages.
	CountUnread *bool `toml:"count_unread"`
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	if _, err := cfg.Timeout(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault reads config from path and falls back to an empty config when
// the file does not exist. Any other error is returned.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return &Config{}, nil
	}
	return nil, fmt.Errorf("load config %s: %w", path, err)
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// ResolveBaseURL applies the precedence env > file > fallback. lookup is
// os.LookupEnv in production.
func (c *Config) ResolveBaseURL(lookup func(string) (string, bool)) string {
	if lookup != nil {
		if v, ok := lookup(BaseURLEnv); ok && strings.TrimSpace(v) != "" {
			return strings.TrimRight(strings.TrimSpace(v), "/")
		}
	}
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return DefaultBaseURL
}

// Timeout returns the per-request timeout for REST calls.
func (c *Config) Timeout() (time.Duration, error) {
	if c.RequestTimeout == "" {
		return defaultRequestTimeout, nil
	}
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("request_timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("request_timeout must be positive, got %s", d)
	}
	return d, nil
}

// CountsUnread reports whether live messages bump unread counters. Defaults to true.
func (c Chat) CountsUnread() bool {
	return c.CountUnread == nil || *c.CountUnread
}

// HasIdentity reports whether an identity was configured.
func (i Identity) HasIdentity() bool {
	return i.UID != ""
}
