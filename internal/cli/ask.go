// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tidechat/tidechat-tui/internal/api"
	"github.com/tidechat/tidechat-tui/internal/backend"
	"github.com/tidechat/tidechat-tui/internal/logging"
	"github.com/tidechat/tidechat-tui/internal/model"
)

var (
	askModel  string
	askSystem string
)

var askCmd = &cobra.Command{
	Use:   "ask <prompt>",
	Short: "Ask a single question without the TUI",
	Long:  "Sends one non-streaming completion request and prints the answer. Nothing is saved to history.",
	Args:  cobra.MinimumNArgs(1),
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

		modelID := askModel
		if modelID == "" {
			modelID = reg.DefaultModel()
		}
		d := reg.Defaults()

		msgs := make([]api.ChatMessage, 0, 2)
		if askSystem != "" {
			msgs = append(msgs, api.TextMessage("system", askSystem))
		}
		msgs = append(msgs, api.TextMessage("user", strings.Join(args, " ")))

		client := api.New(api.Config{ServerID: srv.ID, BaseURL: srv.BaseURL, APIKey: srv.APIKey}, log)
		raw, err := client.Complete(cmd.Context(), api.ChatRequest{
			Model:       modelID,
			Messages:    msgs,
			Temperature: model.ClampTemperature(d.Temperature),
			MaxTokens:   model.ClampMaxTokens(d.MaxTokens),
		})
		if err != nil {
			return err
		}

		answer, err := extractAnswer(raw)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), answer)
		return nil
	},
}

// extractAnswer pulls choices[0].message.content out of a completion
// response.
func extractAnswer(raw json.RawMessage) (string, error) {
	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("parse completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion response carried no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func init() {
	askCmd.Flags().StringVarP(&askModel, "model", "m", "", "model id (default from config)")
	askCmd.Flags().StringVarP(&askSystem, "system", "s", "", "system prompt")
	rootCmd.AddCommand(askCmd)
}
