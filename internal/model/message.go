// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// STATUS TYPE
// =============================================================================

// Status is the lifecycle state of a message.
//
// streaming is the only non-terminal state. A terminal message never
// transitions again; regenerate creates a new message with a new id instead
// of resurrecting an old one.
type Status string

const (
	StatusStreaming Status = "streaming"
	StatusDone      Status = "done"
	StatusStopped   Status = "stopped"
	StatusError     Status = "error"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusStopped || s == StatusError
}

// =============================================================================
// ATTACHMENT TYPE
// =============================================================================

// Attachment is a single image attached to a user message, carried as a
// data URL so it can be persisted and replayed without touching disk.
type Attachment struct {
	Name    string `json:"name"`
	Mime    string `json:"mime"`
	DataURL string `json:"data_url"`
}

// =============================================================================
// METADATA TYPE
// =============================================================================

// Metadata holds per-message generation statistics, filled in when a
// streaming cycle finalizes.
type Metadata struct {
	LatencyMs        int64  `json:"latency_ms,omitempty"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
	TotalTokens      int    `json:"total_tokens,omitempty"`
	// Estimated is true when the token counts are a length-based guess
	// rather than server-reported usage.
	Estimated bool   `json:"estimated,omitempty"`
	Model     string `json:"model,omitempty"`
	ServerID  string `json:"server_id,omitempty"`
}

// Merge overlays non-zero fields of other onto a copy of m.
func (m Metadata) Merge(other Metadata) Metadata {
	if other.LatencyMs != 0 {
		m.LatencyMs = other.LatencyMs
	}
	if other.PromptTokens != 0 {
		m.PromptTokens = other.PromptTokens
	}
	if other.CompletionTokens != 0 {
		m.CompletionTokens = other.CompletionTokens
	}
	if other.TotalTokens != 0 {
		m.TotalTokens = other.TotalTokens
		m.Estimated = other.Estimated
	}
	if other.Model != "" {
		m.Model = other.Model
	}
	if other.ServerID != "" {
		m.ServerID = other.ServerID
	}
	return m
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single entry in a conversation log.
type Message struct {
	ID        string      `json:"id"`
	Role      Role        `json:"role"`
	Content   string      `json:"content"`
	Image     *Attachment `json:"image,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	Status    Status      `json:"status"`
	Meta      *Metadata   `json:"meta,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// NewUserMessage creates a completed user message, optionally with an image.
func NewUserMessage(content string, image *Attachment) Message {
	return Message{
		ID:        NewID(),
		Role:      RoleUser,
		Content:   content,
		Image:     image,
		CreatedAt: time.Now(),
		Status:    StatusDone,
	}
}

// NewSystemMessage creates a completed system message.
func NewSystemMessage(content string) Message {
	return Message{
		ID:        NewID(),
		Role:      RoleSystem,
		Content:   content,
		CreatedAt: time.Now(),
		Status:    StatusDone,
	}
}

// NewAssistantPlaceholder creates the empty streaming message that a turn
// pairs with its user message before any bytes arrive.
func NewAssistantPlaceholder() Message {
	return Message{
		ID:        NewID(),
		Role:      RoleAssistant,
		CreatedAt: time.Now(),
		Status:    StatusStreaming,
	}
}

// EstimateTokens gives a coarse token count using the ~4 chars/token
// approximation. Used only when the server never reported usage.
func (m Message) EstimateTokens() int {
	return (len(m.Content) + 3) / 4
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	c := m
	if m.Image != nil {
		img := *m.Image
		c.Image = &img
	}
	if m.Meta != nil {
		meta := *m.Meta
		c.Meta = &meta
	}
	return c
}

// NewID creates an opaque unique token for messages and conversations.
func NewID() string {
	return uuid.NewString()
}
