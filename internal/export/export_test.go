// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidechat/tidechat-tui/internal/model"
	"github.com/tidechat/tidechat-tui/internal/store"
)

func sampleState() store.State {
	conv := model.NewConversation()
	st := store.NewState().AddConversation(conv)
	st = st.Append(conv.ID,
		model.NewUserMessage("what is the tide schedule", nil),
		model.NewSystemMessage("noop"),
	)
	return st
}

func TestExportShape(t *testing.T) {
	data, err := Export(sampleState())
	require.NoError(t, err)

	var arc Archive
	require.NoError(t, json.Unmarshal(data, &arc))
	assert.Equal(t, ArchiveVersion, arc.Version)
	assert.Equal(t, "tidechat", arc.App)
	assert.False(t, arc.ExportedAt.IsZero())
	require.Len(t, arc.Conversations, 1)
	assert.Equal(t, arc.Conversations[0].ID, arc.ActiveConversationID)
}

func TestImportRoundTrip(t *testing.T) {
	st := sampleState()
	data, err := Export(st)
	require.NoError(t, err)

	got, n, err := Import(store.NewState(), data)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, got.Conversations, 1)
	assert.Equal(t, st.Conversations[0].ID, got.Conversations[0].ID, "no collision keeps the id")
	assert.Equal(t, st.ActiveID, got.ActiveID)
	require.Len(t, got.Conversations[0].Messages, 2)
}

func TestImportRegeneratesCollidingIDs(t *testing.T) {
	st := sampleState()
	data, err := Export(st)
	require.NoError(t, err)

	// Import into the same state: the conversation id collides.
	got, n, err := Import(st, data)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, got.Conversations, 2)
	assert.NotEqual(t, got.Conversations[0].ID, got.Conversations[1].ID)
	// Message ids are scoped to their conversation and are kept.
	assert.Equal(t,
		got.Conversations[0].Messages[0].ID,
		got.Conversations[1].Messages[0].ID)
}

func TestImportSanitizesMalformedEntries(t *testing.T) {
	raw := `{
		"version": 1,
		"app": "tidechat",
		"conversations": [{
			"title": "",
			"temperature": 99,
			"max_tokens": 2,
			"messages": [
				{"role": "user", "content": "hello from a broken export"},
				{"role": "assistant", "content": "partial", "status": "streaming"}
			]
		}]
	}`
	got, n, err := Import(store.NewState(), []byte(raw))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, got.Conversations, 1)

	c := got.Conversations[0]
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, 2.0, c.Temperature)
	assert.Equal(t, 16, c.MaxTokens)
	assert.Equal(t, "hello from a broken export", c.Title)
	for _, m := range c.Messages {
		assert.NotEmpty(t, m.ID)
	}
	assert.Equal(t, model.StatusDone, c.Messages[1].Status, "archives never carry live streams")
}

func TestImportRejectsGarbageAndNewerVersions(t *testing.T) {
	st := sampleState()

	_, _, err := Import(st, []byte("not json"))
	assert.Error(t, err)

	_, _, err = Import(st, []byte(`{"version": 99, "conversations": []}`))
	assert.Error(t, err)

	// Failed imports leave the state untouched.
	assert.Len(t, st.Conversations, 1)
}
