// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/tidechat/tidechat-tui/internal/backend"
	engine "github.com/tidechat/tidechat-tui/internal/chat"
	"github.com/tidechat/tidechat-tui/internal/model"
	"github.com/tidechat/tidechat-tui/internal/store"
	"github.com/tidechat/tidechat-tui/internal/ui/components"
	"github.com/tidechat/tidechat-tui/internal/ui/styles"
)

// autoScrollSlack is how close to the bottom (in viewport lines) the reader
// must be for the view to keep following the stream.
const autoScrollSlack = 3

// overlay identifies which modal surface is open, if any.
type overlay int

const (
	overlayNone overlay = iota
	overlayConversations
	overlaySettings
	overlayHelp
)

// engineEvent wraps an engine notification as a Bubble Tea message.
type engineEvent engine.Event

// Model is the Bubble Tea model for the chat view.
type Model struct {
	theme  *styles.Theme
	store  *store.Store
	engine *engine.Engine
	reg    *backend.Registry
	keys   KeyMap
	log    zerolog.Logger

	events chan engine.Event

	vp       viewport.Model
	input    textarea.Model
	spin     spinner.Model
	renderer *components.MessageRenderer

	width  int
	height int
	ready  bool

	overlay        overlay
	listCursor     int
	settingsCursor int

	// editingID is set while a user message is loaded into the input for
	// editing; submit then rewrites it instead of appending.
	editingID string

	// pendingImage is attached to the next sent message.
	pendingImage *model.Attachment

	statusMsg string
}

// New builds the chat model and its engine. The engine feeds events through
// a channel the Bubble Tea loop drains.
func New(st *store.Store, reg *backend.Registry, log zerolog.Logger) *Model {
	theme := styles.NewTheme()

	events := make(chan engine.Event, 512)
	notify := func(ev engine.Event) {
		select {
		case events <- ev:
		default:
			// Drop delta notifications under backpressure; the next event
			// re-renders from the store anyway. Terminal events must land.
			if ev.Kind != engine.EventDelta {
				events <- ev
			}
		}
	}

	input := textarea.New()
	input.Placeholder = "Message (Enter to send, /help for commands)"
	input.CharLimit = 0
	input.SetHeight(3)
	input.ShowLineNumbers = false
	input.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(theme.Spinner))

	m := &Model{
		theme:    theme,
		store:    st,
		reg:      reg,
		keys:     DefaultKeyMap(),
		log:      log,
		events:   events,
		input:    input,
		spin:     sp,
		renderer: components.NewMessageRenderer(theme, 80),
	}
	m.engine = engine.New(st, reg, notify, log)

	if _, ok := st.Snapshot().Active(); !ok {
		m.newConversation()
	}
	return m
}

// Engine exposes the turn engine (used by tests and the root command).
func (m *Model) Engine() *engine.Engine { return m.engine }

func (m *Model) newConversation() {
	conv := model.NewConversation()
	d := m.reg.Defaults()
	conv.Temperature = model.ClampTemperature(d.Temperature)
	conv.MaxTokens = model.ClampMaxTokens(d.MaxTokens)
	conv.SystemPrompt = d.SystemPrompt
	m.store.Update(func(s store.State) store.State { return s.AddConversation(conv) })
}

func (m *Model) active() (model.Conversation, bool) {
	return m.store.Snapshot().Active()
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spin.Tick, m.waitEvent())
}

func (m *Model) waitEvent() tea.Cmd {
	return func() tea.Msg {
		return engineEvent(<-m.events)
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case engineEvent:
		return m.handleEngineEvent(engine.Event(msg))

	case spinner.TickMsg:
		if m.engine.Busy() {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(msg)
		m.syncAutoScroll()
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) resize(w, h int) {
	m.width, m.height = w, h
	chrome := m.input.Height() + 5 // header, input border, status bar
	vpHeight := h - chrome
	if vpHeight < 3 {
		vpHeight = 3
	}
	if !m.ready {
		m.vp = viewport.New(w, vpHeight)
		m.ready = true
	} else {
		m.vp.Width = w
		m.vp.Height = vpHeight
	}
	m.input.SetWidth(w - 4)
	m.renderer.SetWidth(w - 2)
	m.refreshViewport(true)
}

func (m *Model) handleEngineEvent(ev engine.Event) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{m.waitEvent()}
	switch ev.Kind {
	case engine.EventStarted:
		m.statusMsg = ""
		m.refreshViewport(true)
		cmds = append(cmds, m.spin.Tick)
	case engine.EventDelta:
		m.refreshViewport(ev.ScrollHint)
	case engine.EventFinished:
		m.refreshViewport(m.engine.AutoScroll())
		if ev.Status == model.StatusError {
			m.statusMsg = "request failed, see message"
		}
	}
	return m, tea.Batch(cmds...)
}

// refreshViewport re-renders the active conversation into the viewport.
// follow pins the view to the bottom.
func (m *Model) refreshViewport(follow bool) {
	if !m.ready {
		return
	}
	conv, ok := m.active()
	if !ok {
		m.vp.SetContent("")
		return
	}
	var b strings.Builder
	for _, msg := range conv.Messages {
		if msg.Role == model.RoleSystem {
			continue
		}
		if msg.Role == model.RoleAssistant && msg.Status == model.StatusStreaming && msg.Content == "" {
			b.WriteString(m.theme.AssistantLabel.Render(msg.Role.DisplayName()))
			b.WriteString("\n")
			b.WriteString(m.spin.View() + m.theme.Thinking.Render(" waiting for first token"))
			b.WriteString("\n\n")
			continue
		}
		b.WriteString(m.renderer.Render(msg))
		b.WriteString("\n")
	}
	m.vp.SetContent(b.String())
	if follow {
		m.vp.GotoBottom()
	}
}

// syncAutoScroll updates the engine's follow flag from the scroll position.
func (m *Model) syncAutoScroll() {
	remaining := m.vp.TotalLineCount() - (m.vp.YOffset + m.vp.Height)
	m.engine.SetAutoScroll(remaining <= autoScrollSlack)
}
