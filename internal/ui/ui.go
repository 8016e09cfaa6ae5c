// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui assembles and runs the terminal interface.
package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/tidechat/tidechat-tui/internal/backend"
	"github.com/tidechat/tidechat-tui/internal/store"
	"github.com/tidechat/tidechat-tui/internal/ui/chat"
)

// Run starts the full-screen chat interface and blocks until the user quits.
func Run(st *store.Store, reg *backend.Registry, log zerolog.Logger) error {
	m := chat.New(st, reg, log)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}
