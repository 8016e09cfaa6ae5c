// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/tidechat/tidechat-tui/internal/model"
	"github.com/tidechat/tidechat-tui/internal/ui/styles"
)

// RenderConversationList draws the conversation picker overlay. cursor is
// the highlighted row.
func RenderConversationList(theme *styles.Theme, convs []model.Conversation, activeID string, cursor, width int) string {
	var b strings.Builder
	b.WriteString(theme.OverlayTitle.Render("Conversations"))
	b.WriteString("\n")
	if len(convs) == 0 {
		b.WriteString(theme.SettingLabel.Render("none yet — ctrl+n starts one"))
		return theme.OverlayBox.Render(b.String())
	}
	for i, c := range convs {
		title := c.Title
		if title == "" {
			title = "New conversation"
		}
		line := fmt.Sprintf("%s (%d)", runewidth.Truncate(title, width-12, "…"), len(c.Messages))
		switch {
		case i == cursor:
			b.WriteString(theme.ListItemActive.Render("> " + line))
		case c.ID == activeID:
			b.WriteString(theme.ListItem.Render(line + " *"))
		default:
			b.WriteString(theme.ListItem.Render(line))
		}
		if i < len(convs)-1 {
			b.WriteString("\n")
		}
	}
	return theme.OverlayBox.Render(b.String())
}

// RenderSettings draws the per-conversation settings overlay.
func RenderSettings(theme *styles.Theme, conv model.Conversation, cursor int) string {
	rows := []struct{ label, value string }{
		{"model", orDefault(conv.Model, "(server default)")},
		{"server", orDefault(conv.ServerID, "(default)")},
		{"temperature", fmt.Sprintf("%.2f", conv.Temperature)},
		{"max tokens", fmt.Sprintf("%d", conv.MaxTokens)},
		{"system prompt", orDefault(conv.SystemPrompt, "(none)")},
	}
	var b strings.Builder
	b.WriteString(theme.OverlayTitle.Render("Settings"))
	b.WriteString("\n")
	for i, row := range rows {
		prefix := "  "
		if i == cursor {
			prefix = "> "
		}
		b.WriteString(prefix + theme.SettingLabel.Render(row.label+": ") + theme.SettingValue.Render(row.value))
		if i < len(rows)-1 {
			b.WriteString("\n")
		}
	}
	b.WriteString("\n\n" + theme.SettingLabel.Render("←/→ adjust · /model /server /system edit text · esc close"))
	return theme.OverlayBox.Render(b.String())
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
