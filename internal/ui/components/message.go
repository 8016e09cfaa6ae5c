// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides reusable rendering helpers for the TUI.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-runewidth"

	"github.com/tidechat/tidechat-tui/internal/model"
	"github.com/tidechat/tidechat-tui/internal/ui/styles"
)

// MessageRenderer turns messages into styled terminal blocks. Markdown is
// rendered only for completed assistant messages; streaming text is shown
// raw so partial markup never flickers through the renderer.
type MessageRenderer struct {
	theme    *styles.Theme
	width    int
	markdown *glamour.TermRenderer

	// ShowThinking expands <think> reasoning segments instead of collapsing
	// them to a one-line note.
	ShowThinking bool
}

// NewMessageRenderer creates a renderer for the given content width.
func NewMessageRenderer(theme *styles.Theme, width int) *MessageRenderer {
	r := &MessageRenderer{theme: theme, width: width}
	r.markdown, _ = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	return r
}

// SetWidth rebuilds the markdown renderer for a new terminal width.
func (r *MessageRenderer) SetWidth(width int) {
	if width == r.width {
		return
	}
	r.width = width
	r.markdown, _ = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
}

// Render produces the full block for one message: label line, body, and an
// optional meta or error line.
func (r *MessageRenderer) Render(m model.Message) string {
	var b strings.Builder
	b.WriteString(r.label(m))
	b.WriteString("\n")
	b.WriteString(r.body(m))
	if tail := r.tail(m); tail != "" {
		b.WriteString("\n")
		b.WriteString(tail)
	}
	b.WriteString("\n")
	return b.String()
}

func (r *MessageRenderer) label(m model.Message) string {
	name := m.Role.DisplayName()
	switch m.Role {
	case model.RoleUser:
		return r.theme.UserLabel.Render(name)
	case model.RoleAssistant:
		return r.theme.AssistantLabel.Render(name)
	default:
		return r.theme.SystemLabel.Render(name)
	}
}

func (r *MessageRenderer) body(m model.Message) string {
	content := m.Content
	if m.Role == model.RoleAssistant {
		thinking, answer := model.SplitThinking(content)
		if thinking != "" {
			if r.ShowThinking {
				content = r.theme.Thinking.Render(wrap(thinking, r.width)) + "\n\n" + answer
			} else {
				note := fmt.Sprintf("(reasoned for %d chars, ctrl+t to expand)", len(thinking))
				content = r.theme.Thinking.Render(note) + "\n" + answer
			}
		} else {
			content = answer
		}
		if m.Status == model.StatusDone && r.markdown != nil {
			if rendered, err := r.markdown.Render(content); err == nil {
				return strings.TrimRight(rendered, "\n")
			}
		}
	}
	if m.Image != nil {
		content = fmt.Sprintf("[image: %s]\n%s", m.Image.Name, content)
	}
	return wrap(content, r.width)
}

func (r *MessageRenderer) tail(m model.Message) string {
	switch m.Status {
	case model.StatusError:
		return r.theme.MessageError.Render("error: " + m.Error)
	case model.StatusStopped:
		return r.theme.MessageStopped.Render("stopped")
	case model.StatusDone:
		if m.Role == model.RoleAssistant && m.Meta != nil {
			return r.theme.MessageMeta.Render(FormatMeta(*m.Meta))
		}
	}
	return ""
}

// FormatMeta produces the one-line summary shown under a completed response.
func FormatMeta(meta model.Metadata) string {
	parts := make([]string, 0, 3)
	if meta.LatencyMs > 0 {
		parts = append(parts, fmt.Sprintf("%.1fs", float64(meta.LatencyMs)/1000))
	}
	if meta.TotalTokens > 0 {
		parts = append(parts, fmt.Sprintf("%d tok", meta.TotalTokens))
	} else if meta.CompletionTokens > 0 {
		s := fmt.Sprintf("%d tok", meta.CompletionTokens)
		if meta.Estimated {
			s = "~" + s
		}
		parts = append(parts, s)
	}
	if meta.Model != "" {
		parts = append(parts, meta.Model)
	}
	return strings.Join(parts, " | ")
}

// wrap soft-wraps text at display width, preserving existing line breaks.
// Uses rune display widths so CJK text wraps correctly.
func wrap(s string, width int) string {
	if width <= 0 {
		return s
	}
	var out strings.Builder
	for i, line := range strings.Split(s, "\n") {
		if i > 0 {
			out.WriteString("\n")
		}
		out.WriteString(wrapLine(line, width))
	}
	return out.String()
}

func wrapLine(line string, width int) string {
	if runewidth.StringWidth(line) <= width {
		return line
	}
	var out strings.Builder
	var cur strings.Builder
	curWidth := 0
	for _, word := range strings.Split(line, " ") {
		w := runewidth.StringWidth(word)
		if curWidth > 0 && curWidth+1+w > width {
			out.WriteString(cur.String())
			out.WriteString("\n")
			cur.Reset()
			curWidth = 0
		}
		if curWidth > 0 {
			cur.WriteString(" ")
			curWidth++
		}
		// A single word wider than the viewport is hard-broken.
		for w > width {
			head := runewidth.Truncate(word, width, "")
			cur.WriteString(head)
			out.WriteString(cur.String())
			out.WriteString("\n")
			cur.Reset()
			curWidth = 0
			word = strings.TrimPrefix(word, head)
			w = runewidth.StringWidth(word)
		}
		cur.WriteString(word)
		curWidth += w
	}
	out.WriteString(cur.String())
	return out.String()
}
