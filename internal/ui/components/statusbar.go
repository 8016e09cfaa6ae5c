// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/tidechat/tidechat-tui/internal/ui/styles"
)

// StatusInfo is what the status bar displays.
type StatusInfo struct {
	ServerName string
	Model      string
	Busy       bool
	AutoScroll bool
	Width      int
}

// Shortcut is one key hint in the status bar.
type Shortcut struct {
	Key  string
	Desc string
}

// RenderStatusBar draws the bottom status line: backend context on the left,
// key hints on the right, truncated to fit.
func RenderStatusBar(theme *styles.Theme, info StatusInfo, shortcuts []Shortcut) string {
	left := fmt.Sprintf("%s · %s", info.ServerName, info.Model)
	if info.Busy {
		left = theme.StatusBusy.Render("streaming") + " " + left
	}
	if !info.AutoScroll {
		left += " · scroll paused"
	}

	hints := make([]string, 0, len(shortcuts))
	for _, s := range shortcuts {
		hints = append(hints, theme.StatusKey.Render(s.Key)+" "+theme.StatusDesc.Render(s.Desc))
	}
	right := strings.Join(hints, "  ")

	pad := info.Width - runewidth.StringWidth(stripANSI(left)) - runewidth.StringWidth(stripANSI(right)) - 2
	if pad < 1 {
		return theme.StatusBar.Render(runewidth.Truncate(left, info.Width-2, "…"))
	}
	return theme.StatusBar.Render(left + strings.Repeat(" ", pad) + right)
}

// stripANSI removes escape sequences for width math.
func stripANSI(s string) string {
	var out strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEscape = false
			}
		case r == '\x1b':
			inEscape = true
		default:
			out.WriteRune(r)
		}
	}
	return out.String()
}
