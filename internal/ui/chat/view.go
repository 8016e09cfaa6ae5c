// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tidechat/tidechat-tui/internal/backend"
	"github.com/tidechat/tidechat-tui/internal/ui/components"
)

// View implements tea.Model.
func (m *Model) View() string {
	if !m.ready {
		return "starting..."
	}

	var center string
	switch m.overlay {
	case overlayConversations:
		st := m.store.Snapshot()
		center = lipgloss.Place(m.width, m.vp.Height, lipgloss.Center, lipgloss.Center,
			components.RenderConversationList(m.theme, st.Conversations, st.ActiveID, m.listCursor, m.width-8))
	case overlaySettings:
		conv, _ := m.active()
		center = lipgloss.Place(m.width, m.vp.Height, lipgloss.Center, lipgloss.Center,
			components.RenderSettings(m.theme, conv, m.settingsCursor))
	case overlayHelp:
		center = lipgloss.Place(m.width, m.vp.Height, lipgloss.Center, lipgloss.Center,
			m.helpView())
	default:
		center = m.vp.View()
	}

	return strings.Join([]string{
		m.headerView(),
		center,
		m.inputView(),
		m.statusView(),
	}, "\n")
}

func (m *Model) headerView() string {
	title := "tidechat"
	if conv, ok := m.active(); ok && conv.Title != "" {
		title = conv.Title
	}
	return m.theme.Header.Width(m.width - 2).Render(m.theme.HeaderTitle.Render(title))
}

func (m *Model) inputView() string {
	style := m.theme.InputContainer
	if m.editingID != "" {
		style = m.theme.InputEditing
	}
	return style.Width(m.width - 2).Render(m.input.View())
}

func (m *Model) statusView() string {
	if m.statusMsg != "" {
		return m.theme.StatusBar.Render(m.statusMsg)
	}

	info := components.StatusInfo{
		Busy:       m.engine.Busy(),
		AutoScroll: m.engine.AutoScroll(),
		Width:      m.width,
	}
	conv, ok := m.active()
	if ok {
		info.Model = conv.Model
		info.ServerName = conv.ServerID
	}
	if info.Model == "" {
		info.Model = m.reg.DefaultModel()
	}
	if info.ServerName == "" {
		if srv, err := m.reg.Resolve(backend.Selector{}); err == nil {
			info.ServerName = srv.Name
		}
	}

	shortcuts := []components.Shortcut{
		{Key: "Esc", Desc: "stop"},
		{Key: "C-o", Desc: "convos"},
		{Key: "C-s", Desc: "settings"},
		{Key: "F1", Desc: "help"},
	}
	return components.RenderStatusBar(m.theme, info, shortcuts)
}

func (m *Model) helpView() string {
	lines := []struct{ key, desc string }{
		{"Enter", "send message"},
		{"Esc", "stop streaming / cancel edit"},
		{"C-n", "new conversation"},
		{"C-o", "conversation list"},
		{"C-s", "settings"},
		{"C-r", "regenerate last response"},
		{"C-p", "resend last message"},
		{"C-e", "edit last message"},
		{"C-t", "toggle reasoning display"},
		{"PgUp/PgDn", "scroll"},
		{"C-g", "jump to bottom"},
		{"C-c", "quit"},
	}
	var b strings.Builder
	b.WriteString(m.theme.OverlayTitle.Render("Keys"))
	b.WriteString("\n")
	for _, l := range lines {
		b.WriteString(m.theme.StatusKey.Render(l.key))
		b.WriteString("  " + l.desc + "\n")
	}
	b.WriteString("\nCommands: /image /system /model /server /export /import")
	return m.theme.OverlayBox.Render(b.String())
}
