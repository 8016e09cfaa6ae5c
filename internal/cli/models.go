// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tidechat/tidechat-tui/internal/api"
	"github.com/tidechat/tidechat-tui/internal/backend"
	"github.com/tidechat/tidechat-tui/internal/logging"
	"github.com/tidechat/tidechat-tui/internal/model"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models available on a server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		log := logging.Console()
		reg := backend.NewRegistry(cfg, path, log)
		srv, err := resolveServer(reg)
		if err != nil {
			return err
		}

		client := api.New(api.Config{ServerID: srv.ID, BaseURL: srv.BaseURL, APIKey: srv.APIKey}, log)
		models, err := client.ListModels(cmd.Context())
		if err != nil {
			return fmt.Errorf("list models on %s: %w", srv.BaseURL, err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tVISION")
		for _, mi := range models {
			vision := ""
			if model.SupportsVision(mi.ID) {
				vision = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\n", mi.ID, vision)
		}
		return w.Flush()
	},
}

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "List configured servers and check their health",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		log := logging.Console()
		reg := backend.NewRegistry(cfg, path, log)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tURL\tSTATUS")
		for _, srv := range reg.Servers() {
			client := api.New(api.Config{ServerID: srv.ID, BaseURL: srv.BaseURL, APIKey: srv.APIKey}, log)
			status := "ok"
			if err := client.Health(cmd.Context()); err != nil {
				status = "unreachable"
			}
			def := ""
			if srv.ID == cfg.DefaultServer {
				def = " (default)"
			}
			fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\n", srv.ID, def, srv.Name, srv.BaseURL, status)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(serversCmd)
}
