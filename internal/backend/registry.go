// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// =============================================================================
// REGISTRY
// =============================================================================

// Registry holds the current server configuration and answers resolution
// queries. Reload-safe: Watch swaps the config under the lock while readers
// keep resolving.
type Registry struct {
	mu   sync.RWMutex
	cfg  Config
	path string
	log  zerolog.Logger
}

// NewRegistry wraps a loaded config. Path is remembered for hot reload; pass
// "" for a purely in-memory registry.
func NewRegistry(cfg Config, path string, log zerolog.Logger) *Registry {
	return &Registry{cfg: cfg, path: path, log: log.With().Str("component", "backend").Logger()}
}

// Config returns a copy of the current configuration.
func (r *Registry) Config() Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg := r.cfg
	cfg.Servers = make(map[string]Server, len(r.cfg.Servers))
	for id, s := range r.cfg.Servers {
		cfg.Servers[id] = s
	}
	return cfg
}

// Servers lists configured servers sorted by id.
func (r *Registry) Servers() []Server {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Server, 0, len(r.cfg.Servers))
	for _, s := range r.cfg.Servers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DefaultModel returns the configured default model, with the environment
// override applied.
func (r *Registry) DefaultModel() string {
	if m := os.Getenv(EnvModel); m != "" {
		return m
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg.DefaultModel
}

// Defaults returns the generation defaults for new conversations.
func (r *Registry) Defaults() Defaults {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg.Defaults
}

// =============================================================================
// RESOLUTION CHAIN
// =============================================================================

// Selector names the backend a request should use. Zero value means "use
// the defaults".
type Selector struct {
	// OverrideBaseURL short-circuits the registry entirely.
	OverrideBaseURL string
	// ServerID picks a named registry entry.
	ServerID string
}

// Resolve picks the endpoint for a request. Precedence is fixed:
//
//  1. explicit base-URL override (credentials from the environment, if any)
//  2. named server id from the registry
//  3. environment default (TIDECHAT_BASE_URL / TIDECHAT_API_KEY)
//  4. the registry's default server
//
// Every step is total: it either yields a server or an explicit rejection.
// An id that is not registered is an error, never a silent fallback.
func (r *Registry) Resolve(sel Selector) (Server, error) {
	if sel.OverrideBaseURL != "" {
		srv := Server{
			ID:      "override",
			Name:    "Override",
			BaseURL: sel.OverrideBaseURL,
			APIKey:  os.Getenv(EnvAPIKey),
		}
		if err := srv.Validate(); err != nil {
			return Server{}, err
		}
		return srv, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if sel.ServerID != "" {
		srv, ok := r.cfg.Servers[sel.ServerID]
		if !ok {
			return Server{}, ErrUnknownServer
		}
		return srv, nil
	}

	if base := os.Getenv(EnvBaseURL); base != "" {
		srv := Server{
			ID:      "env",
			Name:    "Environment",
			BaseURL: base,
			APIKey:  os.Getenv(EnvAPIKey),
		}
		if err := srv.Validate(); err != nil {
			return Server{}, err
		}
		return srv, nil
	}

	if r.cfg.DefaultServer != "" {
		srv, ok := r.cfg.Servers[r.cfg.DefaultServer]
		if !ok {
			return Server{}, ErrUnknownServer
		}
		return srv, nil
	}

	return Server{}, ErrNoServer
}

// =============================================================================
// HOT RELOAD
// =============================================================================

// Watch reloads the registry when the config file changes, until ctx is
// cancelled. A config that fails to load leaves the current one in place.
func (r *Registry) Watch(ctx context.Context) error {
	if r.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory: editors replace the file on save, which would
	// otherwise drop the watch.
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != r.path || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				cfg, err := LoadConfig(r.path)
				if err != nil {
					r.log.Warn().Err(err).Msg("config reload failed, keeping previous")
					continue
				}
				r.mu.Lock()
				r.cfg = cfg
				r.mu.Unlock()
				r.log.Info().Msg("config reloaded")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.log.Warn().Err(err).Msg("config watch error")
			}
		}
	}()
	return nil
}
