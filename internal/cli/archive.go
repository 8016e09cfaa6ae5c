// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tidechat/tidechat-tui/internal/backend"
	"github.com/tidechat/tidechat-tui/internal/export"
	"github.com/tidechat/tidechat-tui/internal/logging"
	"github.com/tidechat/tidechat-tui/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export all conversations to a JSON archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStoreReadOnly()
		if err != nil {
			return err
		}
		defer st.Close()

		data, err := export.Export(st.Snapshot())
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[0], data, 0o600); err != nil {
			return fmt.Errorf("write archive: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d conversations to %s\n",
			len(st.Snapshot().Conversations), args[0])
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import conversations from a JSON archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}

		st, err := openStoreReadOnly()
		if err != nil {
			return err
		}
		defer st.Close()

		var n int
		var importErr error
		st.Update(func(s store.State) store.State {
			next, count, err := export.Import(s, data)
			if err != nil {
				importErr = err
				return s
			}
			n = count
			return next
		})
		if importErr != nil {
			return importErr
		}
		if err := st.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d conversations\n", n)
		return nil
	},
}

// openStoreReadOnly opens the configured store for one-shot commands.
func openStoreReadOnly() (*store.Store, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	dataDir, err := backend.DataDir()
	if err != nil {
		return nil, err
	}
	port, err := openPort(cfg, dataDir)
	if err != nil {
		return nil, err
	}
	return store.Open(port, logging.Console()), nil
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
