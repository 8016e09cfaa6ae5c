// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store owns conversation state: an immutable-snapshot state value
// with pure operations, a Store that serializes mutations and debounces
// persistence, and pluggable persistence ports.
package store

import (
	"time"

	"github.com/tidechat/tidechat-tui/internal/model"
)

// State is the full application state: every conversation plus the active
// conversation id. Operations on State are pure — they return a new snapshot
// and never mutate the receiver — so a renderer holding a snapshot always
// sees a consistent log.
type State struct {
	Conversations []model.Conversation `json:"conversations"`
	ActiveID      string               `json:"active_conversation_id"`
}

// NewState returns an empty state.
func NewState() State {
	return State{Conversations: []model.Conversation{}}
}

// Clone deep-copies the state.
func (s State) Clone() State {
	c := s
	c.Conversations = make([]model.Conversation, len(s.Conversations))
	for i, conv := range s.Conversations {
		c.Conversations[i] = conv.Clone()
	}
	return c
}

// Conversation returns a copy of the conversation with the given id.
func (s State) Conversation(id string) (model.Conversation, bool) {
	for _, c := range s.Conversations {
		if c.ID == id {
			return c.Clone(), true
		}
	}
	return model.Conversation{}, false
}

// Active returns a copy of the active conversation.
func (s State) Active() (model.Conversation, bool) {
	return s.Conversation(s.ActiveID)
}

func (s State) index(id string) int {
	for i := range s.Conversations {
		if s.Conversations[i].ID == id {
			return i
		}
	}
	return -1
}

// withConversation returns a snapshot in which fn has been applied to a deep
// copy of the addressed conversation. Unknown ids are a silent no-op; every
// structural operation routes through here so a stale id can never corrupt
// state.
func (s State) withConversation(id string, fn func(*model.Conversation)) State {
	i := s.index(id)
	if i < 0 {
		return s
	}
	out := s
	out.Conversations = make([]model.Conversation, len(s.Conversations))
	copy(out.Conversations, s.Conversations)
	conv := s.Conversations[i].Clone()
	fn(&conv)
	out.Conversations[i] = conv
	return out
}

// =============================================================================
// LOG OPERATIONS
// =============================================================================

// Append adds messages to the end of a conversation log. Appending a user
// message to a conversation without a title derives one.
func (s State) Append(convID string, msgs ...model.Message) State {
	return s.withConversation(convID, func(c *model.Conversation) {
		c.Messages = append(c.Messages, msgs...)
		c.UpdatedAt = time.Now()
		deriveTitle(c, false)
	})
}

// ReplaceFrom keeps every message up to and including anchorID, discards the
// remainder, and appends msgs. The anchoring message is never duplicated.
// A missing anchor is a silent no-op (guard against stale references).
func (s State) ReplaceFrom(convID, anchorID string, msgs ...model.Message) State {
	return s.withConversation(convID, func(c *model.Conversation) {
		i := c.MessageIndex(anchorID)
		if i < 0 {
			return
		}
		c.Messages = append(c.Messages[:i+1], msgs...)
		c.UpdatedAt = time.Now()
	})
}

// Patch is a partial update applied to exactly one message.
type Patch struct {
	// AppendContent is concatenated onto the current content.
	AppendContent string
	// SetContent replaces the content outright (user message edits).
	SetContent *string
	// SetStatus transitions the message status.
	SetStatus *model.Status
	// MergeMeta overlays non-zero metadata fields.
	MergeMeta *model.Metadata
	// SetError records a human-readable failure description.
	SetError *string
}

// Mutate applies a patch to one message; no-op if conversation or message is
// not found.
func (s State) Mutate(convID, msgID string, p Patch) State {
	return s.withConversation(convID, func(c *model.Conversation) {
		m := c.Message(msgID)
		if m == nil {
			return
		}
		if p.AppendContent != "" {
			m.Content += p.AppendContent
		}
		if p.SetContent != nil {
			m.Content = *p.SetContent
		}
		// Terminal statuses never transition; a regenerate gets a new message.
		if p.SetStatus != nil && !m.Status.Terminal() {
			m.Status = *p.SetStatus
		}
		if p.MergeMeta != nil {
			if m.Meta == nil {
				m.Meta = &model.Metadata{}
			}
			merged := m.Meta.Merge(*p.MergeMeta)
			m.Meta = &merged
		}
		if p.SetError != nil {
			m.Error = *p.SetError
		}
		c.UpdatedAt = time.Now()
	})
}

// RefreshTitle re-derives the title from the first user message. Used after
// the first exchange completes and after edits to the first user message.
func (s State) RefreshTitle(convID string) State {
	return s.withConversation(convID, func(c *model.Conversation) {
		deriveTitle(c, true)
	})
}

func deriveTitle(c *model.Conversation, force bool) {
	if c.Title != "" && !force {
		return
	}
	first := c.FirstUserMessage()
	if first == nil {
		return
	}
	c.Title = model.DeriveTitle(first.Content)
}

// =============================================================================
// CONVERSATION-LEVEL OPERATIONS
// =============================================================================

// AddConversation appends a conversation and makes it active.
func (s State) AddConversation(conv model.Conversation) State {
	out := s
	out.Conversations = make([]model.Conversation, len(s.Conversations)+1)
	copy(out.Conversations, s.Conversations)
	out.Conversations[len(s.Conversations)] = conv.Clone()
	out.ActiveID = conv.ID
	return out
}

// RemoveConversation deletes a conversation; the active id moves to the most
// recently updated survivor.
func (s State) RemoveConversation(id string) State {
	i := s.index(id)
	if i < 0 {
		return s
	}
	out := s
	out.Conversations = make([]model.Conversation, 0, len(s.Conversations)-1)
	for j, c := range s.Conversations {
		if j != i {
			out.Conversations = append(out.Conversations, c)
		}
	}
	if out.ActiveID == id {
		out.ActiveID = ""
		var latest time.Time
		for _, c := range out.Conversations {
			if c.UpdatedAt.After(latest) {
				latest = c.UpdatedAt
				out.ActiveID = c.ID
			}
		}
	}
	return out
}

// SetActive switches the active conversation; unknown ids are a no-op.
func (s State) SetActive(id string) State {
	if s.index(id) < 0 {
		return s
	}
	out := s
	out.ActiveID = id
	return out
}

// =============================================================================
// CONVERSATION FIELD SETTERS
// =============================================================================

// SetSystemPrompt updates the system prompt; empty means "no system message".
func (s State) SetSystemPrompt(convID, prompt string) State {
	return s.withConversation(convID, func(c *model.Conversation) {
		c.SystemPrompt = prompt
		c.UpdatedAt = time.Now()
	})
}

// SetTemperature updates the sampling temperature, clamped to [0, 2].
func (s State) SetTemperature(convID string, v float64) State {
	return s.withConversation(convID, func(c *model.Conversation) {
		c.Temperature = model.ClampTemperature(v)
		c.UpdatedAt = time.Now()
	})
}

// SetMaxTokens updates the generation budget, clamped to [16, 4096].
func (s State) SetMaxTokens(convID string, v int) State {
	return s.withConversation(convID, func(c *model.Conversation) {
		c.MaxTokens = model.ClampMaxTokens(v)
		c.UpdatedAt = time.Now()
	})
}

// SetModel updates the selected model identifier.
func (s State) SetModel(convID, modelID string) State {
	return s.withConversation(convID, func(c *model.Conversation) {
		c.Model = modelID
		c.UpdatedAt = time.Now()
	})
}

// SetServer updates the selected backend server reference.
func (s State) SetServer(convID, serverID string) State {
	return s.withConversation(convID, func(c *model.Conversation) {
		c.ServerID = serverID
		c.UpdatedAt = time.Now()
	})
}
