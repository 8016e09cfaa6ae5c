// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend manages the configured completion servers: the TOML
// registry, environment fallbacks, and the resolution chain that picks the
// endpoint for a request.
package backend

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Environment variables consulted as the lowest-precedence server source and
// for credential injection on override URLs.
const (
	EnvBaseURL = "TIDECHAT_BASE_URL"
	EnvAPIKey  = "TIDECHAT_API_KEY"
	EnvModel   = "TIDECHAT_MODEL"
)

var (
	// ErrUnknownServer rejects a selector naming a server id that is not in
	// the registry. Checked before any request is issued.
	ErrUnknownServer = errors.New("unknown backend server")

	// ErrNoServer means no source in the resolution chain produced an
	// endpoint.
	ErrNoServer = errors.New("no backend server configured")
)

// Server is one configured endpoint implementing the OpenAI-compatible
// completion protocol.
type Server struct {
	ID      string `toml:"-"`
	Name    string `toml:"name"`
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

// Validate checks that the server has a usable base URL.
func (s Server) Validate() error {
	if s.BaseURL == "" {
		return fmt.Errorf("server %q: base_url is required", s.ID)
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return fmt.Errorf("server %q: invalid base_url: %w", s.ID, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server %q: base_url must be http or https", s.ID)
	}
	if u.Host == "" {
		return fmt.Errorf("server %q: base_url has no host", s.ID)
	}
	return nil
}

// Defaults seed new conversations.
type Defaults struct {
	Temperature  float64 `toml:"temperature"`
	MaxTokens    int     `toml:"max_tokens"`
	SystemPrompt string  `toml:"system_prompt"`
}

// Config is the on-disk configuration at ~/.tidechat/config.toml.
type Config struct {
	DefaultServer string            `toml:"default_server"`
	DefaultModel  string            `toml:"default_model"`
	Storage       string            `toml:"storage"` // "file" (default) or "sqlite"
	Defaults      Defaults          `toml:"defaults"`
	Servers       map[string]Server `toml:"servers"`
}

// DefaultConfig returns the built-in configuration: a single local server,
// moderate generation defaults.
func DefaultConfig() Config {
	return Config{
		DefaultServer: "local",
		Storage:       "file",
		Defaults: Defaults{
			Temperature: 0.7,
			MaxTokens:   1024,
		},
		Servers: map[string]Server{
			"local": {
				Name:    "Local server",
				BaseURL: "http://127.0.0.1:8080/v1",
			},
		},
	}
}

// DefaultConfigPath is ~/.tidechat/config.toml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".tidechat", "config.toml"), nil
}

// DataDir is ~/.tidechat, created on demand.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".tidechat")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// LoadConfig reads the TOML config at path, falling back to defaults when
// the file does not exist. Environment variables override nothing here; they
// participate in the resolution chain instead (see Resolve).
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	// Start from an empty config so a partial file does not silently merge
	// with built-in servers the user removed.
	var loaded Config
	if err := toml.Unmarshal(data, &loaded); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	applyConfigDefaults(&loaded)

	for id, srv := range loaded.Servers {
		srv.ID = id
		if err := srv.Validate(); err != nil {
			return cfg, err
		}
		loaded.Servers[id] = srv
	}
	return loaded, nil
}

func applyConfigDefaults(cfg *Config) {
	if cfg.Storage == "" {
		cfg.Storage = "file"
	}
	if cfg.Defaults.Temperature == 0 {
		cfg.Defaults.Temperature = 0.7
	}
	if cfg.Defaults.MaxTokens == 0 {
		cfg.Defaults.MaxTokens = 1024
	}
	if cfg.Servers == nil {
		cfg.Servers = map[string]Server{}
	}
	if cfg.DefaultServer == "" && len(cfg.Servers) == 1 {
		for id := range cfg.Servers {
			cfg.DefaultServer = id
		}
	}
}
