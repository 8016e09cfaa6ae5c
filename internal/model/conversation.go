// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/tidechat/tidechat-tui/internal/util"
)

// Clamp bounds for per-conversation generation settings.
const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
	MinMaxTokens   = 16
	MaxMaxTokens   = 4096

	// TitleLen is the rune budget for a derived conversation title.
	TitleLen = 28
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds one titled, independently configured thread of messages.
// Message order is creation order and is never reordered.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SystemPrompt string  `json:"system_prompt,omitempty"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
	ServerID     string  `json:"server_id,omitempty"`
	Model        string  `json:"model,omitempty"`

	Messages []Message `json:"messages"`
}

// NewConversation creates an empty conversation with defaults applied.
func NewConversation() Conversation {
	now := time.Now()
	return Conversation{
		ID:          NewID(),
		CreatedAt:   now,
		UpdatedAt:   now,
		Temperature: 0.7,
		MaxTokens:   1024,
		Messages:    []Message{},
	}
}

// Clone returns a deep copy of the conversation.
func (c Conversation) Clone() Conversation {
	clone := c
	clone.Messages = make([]Message, len(c.Messages))
	for i, m := range c.Messages {
		clone.Messages[i] = m.Clone()
	}
	return clone
}

// MessageIndex returns the position of a message id, or -1.
func (c Conversation) MessageIndex(id string) int {
	for i, m := range c.Messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// Message returns the message with the given id, or nil.
func (c *Conversation) Message(id string) *Message {
	if i := c.MessageIndex(id); i >= 0 {
		return &c.Messages[i]
	}
	return nil
}

// FirstUserMessage returns the earliest user message, or nil.
func (c *Conversation) FirstUserMessage() *Message {
	for i := range c.Messages {
		if c.Messages[i].Role == RoleUser {
			return &c.Messages[i]
		}
	}
	return nil
}

// LastUserIndexBefore scans backward from pos-1 for the nearest user
// message. Returns -1 when none exists. Used by regenerate to find the
// anchor for an assistant message.
func (c Conversation) LastUserIndexBefore(pos int) int {
	if pos > len(c.Messages) {
		pos = len(c.Messages)
	}
	for i := pos - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleUser {
			return i
		}
	}
	return -1
}

// ClampTemperature bounds a temperature to the supported range.
func ClampTemperature(v float64) float64 {
	return util.ClampFloat(v, MinTemperature, MaxTemperature)
}

// ClampMaxTokens bounds a max-token budget to the supported range.
func ClampMaxTokens(v int) int {
	return util.ClampInt(v, MinMaxTokens, MaxMaxTokens)
}

// DeriveTitle builds a conversation title from the first user message:
// whitespace collapsed, truncated to TitleLen runes with an ellipsis.
func DeriveTitle(firstUserContent string) string {
	s := util.CollapseSpace(firstUserContent)
	if s == "" {
		return "New conversation"
	}
	return util.TruncateRunes(s, TitleLen)
}
