// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the tidechat TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components for the application. It detects the
// terminal's color capability and degrades gracefully on 256-color and
// monochrome terminals.
type Theme struct {
	HasTrueColor bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// HEADER AND STATUS BAR
	// ==========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	StatusBar   lipgloss.Style
	StatusKey   lipgloss.Style
	StatusDesc  lipgloss.Style
	StatusBusy  lipgloss.Style

	// ==========================================================================
	// MESSAGES
	// ==========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	SystemLabel    lipgloss.Style
	MessageMeta    lipgloss.Style
	MessageError   lipgloss.Style
	MessageStopped lipgloss.Style
	Thinking       lipgloss.Style

	// ==========================================================================
	// INPUT AREA
	// ==========================================================================

	InputContainer lipgloss.Style
	InputEditing   lipgloss.Style

	// ==========================================================================
	// OVERLAYS
	// ==========================================================================

	OverlayBox      lipgloss.Style
	OverlayTitle    lipgloss.Style
	ListItem        lipgloss.Style
	ListItemActive  lipgloss.Style
	SettingLabel    lipgloss.Style
	SettingValue    lipgloss.Style

	// Spinner color for the streaming indicator.
	Spinner lipgloss.Style
}

// Palette anchors. Chosen for legibility on both dark and light backgrounds.
var (
	colorAccent  = lipgloss.AdaptiveColor{Light: "#005f87", Dark: "#5fd7ff"}
	colorUser    = lipgloss.AdaptiveColor{Light: "#875f00", Dark: "#ffd75f"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6c6c6c", Dark: "#8a8a8a"}
	colorDanger  = lipgloss.AdaptiveColor{Light: "#af0000", Dark: "#ff5f5f"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#af5f00", Dark: "#ffaf5f"}
)

// NewTheme builds a theme for the detected terminal.
func NewTheme() *Theme {
	profile := termenv.ColorProfile()
	t := &Theme{
		HasTrueColor: profile == termenv.TrueColor,
		ColorProfile: profile,
	}

	t.Header = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(colorMuted).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)

	t.StatusBar = lipgloss.NewStyle().Foreground(colorMuted).Padding(0, 1)
	t.StatusKey = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	t.StatusDesc = lipgloss.NewStyle().Foreground(colorMuted)
	t.StatusBusy = lipgloss.NewStyle().Bold(true).Foreground(colorWarning)

	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(colorUser)
	t.AssistantLabel = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	t.SystemLabel = lipgloss.NewStyle().Bold(true).Foreground(colorMuted)
	t.MessageMeta = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)
	t.MessageError = lipgloss.NewStyle().Foreground(colorDanger)
	t.MessageStopped = lipgloss.NewStyle().Foreground(colorWarning).Italic(true)
	t.Thinking = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorMuted).
		Padding(0, 1)
	t.InputEditing = t.InputContainer.BorderForeground(colorWarning)

	t.OverlayBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Padding(1, 2)
	t.OverlayTitle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).MarginBottom(1)
	t.ListItem = lipgloss.NewStyle().PaddingLeft(2)
	t.ListItemActive = lipgloss.NewStyle().PaddingLeft(0).Bold(true).Foreground(colorAccent)
	t.SettingLabel = lipgloss.NewStyle().Foreground(colorMuted)
	t.SettingValue = lipgloss.NewStyle().Bold(true)

	t.Spinner = lipgloss.NewStyle().Foreground(colorAccent)
	return t
}
