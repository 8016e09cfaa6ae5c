// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	engine "github.com/tidechat/tidechat-tui/internal/chat"
	"github.com/tidechat/tidechat-tui/internal/export"
	"github.com/tidechat/tidechat-tui/internal/model"
	"github.com/tidechat/tidechat-tui/internal/store"
)

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.overlay != overlayNone {
		return m.handleOverlayKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.engine.Stop()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Stop):
		if m.editingID != "" {
			m.editingID = ""
			m.input.Reset()
			m.statusMsg = "edit cancelled"
			return m, nil
		}
		if m.engine.Busy() {
			m.engine.Stop()
		}
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.NewConv):
		m.newConversation()
		m.editingID = ""
		m.input.Reset()
		m.refreshViewport(true)
		return m, nil

	case key.Matches(msg, m.keys.Conversations):
		m.overlay = overlayConversations
		m.listCursor = m.activeIndex()
		return m, nil

	case key.Matches(msg, m.keys.Settings):
		m.overlay = overlaySettings
		m.settingsCursor = 0
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.overlay = overlayHelp
		return m, nil

	case key.Matches(msg, m.keys.Regenerate):
		return m, m.regenerateLast()

	case key.Matches(msg, m.keys.Resend):
		return m, m.resendLast()

	case key.Matches(msg, m.keys.Edit):
		m.startEditLast()
		return m, nil

	case key.Matches(msg, m.keys.Thinking):
		m.renderer.ShowThinking = !m.renderer.ShowThinking
		m.refreshViewport(false)
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.vp.HalfViewUp()
		m.syncAutoScroll()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.vp.HalfViewDown()
		m.syncAutoScroll()
		return m, nil

	case key.Matches(msg, m.keys.Bottom):
		m.vp.GotoBottom()
		m.engine.SetAutoScroll(true)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) activeIndex() int {
	st := m.store.Snapshot()
	for i, c := range st.Conversations {
		if c.ID == st.ActiveID {
			return i
		}
	}
	return 0
}

// =============================================================================
// SUBMIT AND TURN ACTIONS
// =============================================================================

func (m *Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" && m.pendingImage == nil {
		return m, nil
	}
	if strings.HasPrefix(text, "/") {
		m.runCommand(text)
		m.input.Reset()
		return m, nil
	}

	conv, ok := m.active()
	if !ok {
		return m, nil
	}

	var err error
	if m.editingID != "" {
		err = m.engine.EditSave(conv.ID, m.editingID, text)
	} else {
		err = m.engine.Send(conv.ID, text, m.pendingImage)
	}
	if err != nil {
		m.reportTurnErr(err)
		return m, nil
	}
	m.editingID = ""
	m.pendingImage = nil
	m.input.Reset()
	return m, nil
}

func (m *Model) regenerateLast() tea.Cmd {
	conv, ok := m.active()
	if !ok {
		return nil
	}
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		if conv.Messages[i].Role == model.RoleAssistant {
			if err := m.engine.Regenerate(conv.ID, conv.Messages[i].ID); err != nil {
				m.reportTurnErr(err)
			}
			return nil
		}
	}
	m.statusMsg = "nothing to regenerate"
	return nil
}

func (m *Model) resendLast() tea.Cmd {
	conv, ok := m.active()
	if !ok {
		return nil
	}
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		if conv.Messages[i].Role == model.RoleUser {
			if err := m.engine.Resend(conv.ID, conv.Messages[i].ID); err != nil {
				m.reportTurnErr(err)
			}
			return nil
		}
	}
	m.statusMsg = "nothing to resend"
	return nil
}

func (m *Model) startEditLast() {
	if m.engine.Busy() {
		m.statusMsg = "wait for the response to finish"
		return
	}
	conv, ok := m.active()
	if !ok {
		return
	}
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		if conv.Messages[i].Role == model.RoleUser {
			m.editingID = conv.Messages[i].ID
			m.input.SetValue(conv.Messages[i].Content)
			m.input.CursorEnd()
			return
		}
	}
	m.statusMsg = "nothing to edit"
}

func (m *Model) reportTurnErr(err error) {
	if err == engine.ErrBusy {
		m.statusMsg = "a response is still streaming (Esc to stop)"
		return
	}
	m.statusMsg = err.Error()
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

func (m *Model) runCommand(line string) {
	cmd, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	arg = strings.TrimSpace(arg)
	conv, haveConv := m.active()

	switch cmd {
	case "help":
		m.overlay = overlayHelp

	case "image":
		att, err := loadAttachment(arg)
		if err != nil {
			m.statusMsg = err.Error()
			return
		}
		m.pendingImage = att
		m.statusMsg = fmt.Sprintf("attached %s, will be sent with the next message", att.Name)

	case "system":
		if !haveConv {
			return
		}
		m.store.Update(func(s store.State) store.State {
			return s.SetSystemPrompt(conv.ID, arg)
		})
		m.statusMsg = "system prompt updated"

	case "model":
		if !haveConv {
			return
		}
		m.store.Update(func(s store.State) store.State {
			return s.SetModel(conv.ID, arg)
		})
		m.statusMsg = "model set to " + arg

	case "server":
		if !haveConv {
			return
		}
		m.store.Update(func(s store.State) store.State {
			return s.SetServer(conv.ID, arg)
		})
		m.statusMsg = "server set to " + arg

	case "export":
		if arg == "" {
			m.statusMsg = "usage: /export <path>"
			return
		}
		data, err := export.Export(m.store.Snapshot())
		if err == nil {
			err = os.WriteFile(arg, data, 0o600)
		}
		if err != nil {
			m.statusMsg = "export failed: " + err.Error()
			return
		}
		m.statusMsg = "exported to " + arg

	case "import":
		if arg == "" {
			m.statusMsg = "usage: /import <path>"
			return
		}
		data, err := os.ReadFile(arg)
		if err != nil {
			m.statusMsg = "import failed: " + err.Error()
			return
		}
		var n int
		var importErr error
		m.store.Update(func(s store.State) store.State {
			next, count, err := export.Import(s, data)
			if err != nil {
				importErr = err
				return s
			}
			n = count
			return next
		})
		if importErr != nil {
			m.statusMsg = "import failed: " + importErr.Error()
			return
		}
		m.statusMsg = fmt.Sprintf("imported %d conversations", n)
		m.refreshViewport(true)

	default:
		m.statusMsg = "unknown command /" + cmd
	}
}

// =============================================================================
// OVERLAYS
// =============================================================================

func (m *Model) handleOverlayKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.engine.Stop()
		return m, tea.Quit
	}
	if key.Matches(msg, m.keys.Stop) {
		m.overlay = overlayNone
		return m, nil
	}

	switch m.overlay {
	case overlayConversations:
		return m.handleListKey(msg)
	case overlaySettings:
		return m.handleSettingsKey(msg)
	}
	// Help: any other key closes.
	m.overlay = overlayNone
	return m, nil
}

func (m *Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	st := m.store.Snapshot()
	n := len(st.Conversations)
	switch msg.String() {
	case "up", "k":
		if m.listCursor > 0 {
			m.listCursor--
		}
	case "down", "j":
		if m.listCursor < n-1 {
			m.listCursor++
		}
	case "enter":
		if m.listCursor < n {
			id := st.Conversations[m.listCursor].ID
			m.store.Update(func(s store.State) store.State { return s.SetActive(id) })
			m.overlay = overlayNone
			m.refreshViewport(true)
		}
	case "d":
		if m.engine.Busy() {
			m.statusMsg = "stop the stream before deleting"
			return m, nil
		}
		if m.listCursor < n {
			id := st.Conversations[m.listCursor].ID
			m.store.Update(func(s store.State) store.State { return s.RemoveConversation(id) })
			if m.listCursor > 0 {
				m.listCursor--
			}
			if _, ok := m.active(); !ok {
				m.newConversation()
			}
			m.refreshViewport(true)
		}
	}
	return m, nil
}

func (m *Model) handleSettingsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	conv, ok := m.active()
	if !ok {
		m.overlay = overlayNone
		return m, nil
	}
	const rows = 5
	switch msg.String() {
	case "up", "k":
		if m.settingsCursor > 0 {
			m.settingsCursor--
		}
	case "down", "j":
		if m.settingsCursor < rows-1 {
			m.settingsCursor++
		}
	case "left", "right":
		delta := 1.0
		if msg.String() == "left" {
			delta = -1.0
		}
		switch m.settingsCursor {
		case 2: // temperature
			m.store.Update(func(s store.State) store.State {
				return s.SetTemperature(conv.ID, conv.Temperature+0.1*delta)
			})
		case 3: // max tokens
			m.store.Update(func(s store.State) store.State {
				return s.SetMaxTokens(conv.ID, conv.MaxTokens+int(128*delta))
			})
		}
	}
	return m, nil
}
