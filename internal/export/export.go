// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export reads and writes conversation archives: a versioned JSON
// document carrying every conversation plus the active id, portable across
// machines and storage backends.
package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidechat/tidechat-tui/internal/model"
	"github.com/tidechat/tidechat-tui/internal/store"
)

// ArchiveVersion is the current archive format version.
const ArchiveVersion = 1

// AppName identifies archives produced by this application.
const AppName = "tidechat"

// Archive is the on-disk export format.
type Archive struct {
	Version              int                  `json:"version"`
	App                  string               `json:"app"`
	ExportedAt           time.Time            `json:"exported_at"`
	ActiveConversationID string               `json:"active_conversation_id,omitempty"`
	Conversations        []model.Conversation `json:"conversations"`
}

// Export serializes the full state as an archive document.
func Export(st store.State) ([]byte, error) {
	arc := Archive{
		Version:              ArchiveVersion,
		App:                  AppName,
		ExportedAt:           time.Now().UTC(),
		ActiveConversationID: st.ActiveID,
		Conversations:        st.Conversations,
	}
	data, err := json.MarshalIndent(arc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode archive: %w", err)
	}
	return data, nil
}

// Import merges an archive into the state. Imported conversations whose ids
// collide with existing ones get fresh ids; message ids inside them are kept
// as-is since they are only resolved within their conversation. Malformed
// per-conversation fields fall back to defaults rather than failing the
// whole import.
func Import(st store.State, data []byte) (store.State, int, error) {
	var arc Archive
	if err := json.Unmarshal(data, &arc); err != nil {
		return st, 0, fmt.Errorf("parse archive: %w", err)
	}
	if arc.Version > ArchiveVersion {
		return st, 0, fmt.Errorf("archive version %d is newer than supported version %d", arc.Version, ArchiveVersion)
	}

	seen := make(map[string]bool, len(st.Conversations))
	for _, c := range st.Conversations {
		seen[c.ID] = true
	}

	out := st.Clone()
	imported := 0
	for _, conv := range arc.Conversations {
		c := sanitize(conv)
		if seen[c.ID] {
			c.ID = model.NewID()
		}
		seen[c.ID] = true
		out.Conversations = append(out.Conversations, c)
		imported++
	}
	if out.ActiveID == "" && arc.ActiveConversationID != "" {
		if _, ok := out.Conversation(arc.ActiveConversationID); ok {
			out.ActiveID = arc.ActiveConversationID
		}
	}
	return out, imported, nil
}

// sanitize repairs a deserialized conversation: missing ids and timestamps
// are regenerated, settings are clamped back into range.
func sanitize(c model.Conversation) model.Conversation {
	c = c.Clone()
	if c.ID == "" {
		c.ID = model.NewID()
	}
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	if c.Temperature == 0 && c.MaxTokens == 0 {
		c.Temperature = 0.7
		c.MaxTokens = 1024
	}
	c.Temperature = model.ClampTemperature(c.Temperature)
	c.MaxTokens = model.ClampMaxTokens(c.MaxTokens)
	if c.Messages == nil {
		c.Messages = []model.Message{}
	}
	for i := range c.Messages {
		m := &c.Messages[i]
		if m.ID == "" {
			m.ID = model.NewID()
		}
		if m.Status == "" || m.Status == model.StatusStreaming {
			// An archive can never contain a live stream.
			m.Status = model.StatusDone
		}
	}
	if c.Title == "" {
		if first := c.FirstUserMessage(); first != nil {
			c.Title = model.DeriveTitle(first.Content)
		}
	}
	return c
}
