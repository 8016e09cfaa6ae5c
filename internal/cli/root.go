// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli defines the tidechat command tree. The bare command launches
// the TUI; subcommands cover scripting tasks that should not need a
// full-screen terminal.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tidechat/tidechat-tui/internal/backend"
	"github.com/tidechat/tidechat-tui/internal/logging"
	"github.com/tidechat/tidechat-tui/internal/store"
	"github.com/tidechat/tidechat-tui/internal/ui"
)

// Version is stamped at build time.
var Version = "0.3.0"

var (
	flagConfig string
	flagServer string
	flagBase   string
)

var rootCmd = &cobra.Command{
	Use:     "tidechat",
	Short:   "Terminal chat client for OpenAI-compatible servers",
	Long:    "tidechat is a terminal chat client for llama.cpp, Ollama, vLLM and other\nOpenAI-compatible completion servers, with streaming responses and local history.",
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}

		dataDir, err := backend.DataDir()
		if err != nil {
			return err
		}
		log, closer, err := logging.Open(dataDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "warning:", err)
		}
		defer closer.Close()

		port, err := openPort(cfg, dataDir)
		if err != nil {
			return err
		}
		st := store.Open(port, log)
		defer st.Close()

		reg := backend.NewRegistry(cfg, path, log)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if err := reg.Watch(ctx); err != nil {
			log.Warn().Err(err).Msg("config hot reload unavailable")
		}

		return ui.Run(st, reg, log)
	},
}

// Execute runs the command tree.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ~/.tidechat/config.toml)")
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "server id from the config to talk to")
	rootCmd.PersistentFlags().StringVar(&flagBase, "base-url", "", "override the server base URL")
}

func loadConfig() (backend.Config, string, error) {
	path := flagConfig
	if path == "" {
		var err error
		path, err = backend.DefaultConfigPath()
		if err != nil {
			return backend.Config{}, "", err
		}
	}
	cfg, err := backend.LoadConfig(path)
	if err != nil {
		return backend.Config{}, "", err
	}
	return cfg, path, nil
}

func openPort(cfg backend.Config, dataDir string) (store.Port, error) {
	switch cfg.Storage {
	case "", "file":
		return store.NewFilePort(dataDir)
	case "sqlite":
		return store.NewSQLitePort(dataDir)
	case "memory":
		return store.NewMemoryPort(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}

// resolveServer applies the shared --server / --base-url flags.
func resolveServer(reg *backend.Registry) (backend.Server, error) {
	return reg.Resolve(backend.Selector{
		OverrideBaseURL: flagBase,
		ServerID:        flagServer,
	})
}
