// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidechat/tidechat-tui/internal/model"
)

func testConversation(t *testing.T) model.Conversation {
	t.Helper()
	return model.NewConversation()
}

func TestStateAppend(t *testing.T) {
	conv := model.NewConversation()
	st := NewState().AddConversation(conv)

	user := model.NewUserMessage("hello there", nil)
	st2 := st.Append(conv.ID, user)

	// Original snapshot untouched.
	got, ok := st.Conversation(conv.ID)
	require.True(t, ok)
	assert.Empty(t, got.Messages)

	got2, ok := st2.Conversation(conv.ID)
	require.True(t, ok)
	require.Len(t, got2.Messages, 1)
	assert.Equal(t, "hello there", got2.Messages[0].Content)
	assert.Equal(t, "hello there", got2.Title, "first user message derives the title")
}

func TestStateAppendUnknownConversation(t *testing.T) {
	st := NewState().AddConversation(model.NewConversation())
	out := st.Append("ghost", model.NewUserMessage("hi", nil))
	assert.Equal(t, st, out)
}

func TestStateTitleDerivation(t *testing.T) {
	conv := model.NewConversation()
	st := NewState().AddConversation(conv)

	long := "  hello   world  this is a long message exceeding twenty eight chars"
	st = st.Append(conv.ID, model.NewUserMessage(long, nil))
	got, _ := st.Conversation(conv.ID)
	assert.Equal(t, "hello world this is a long m…", got.Title)

	// Title sticks across later appends.
	st = st.Append(conv.ID, model.NewUserMessage("something else entirely", nil))
	got, _ = st.Conversation(conv.ID)
	assert.Equal(t, "hello world this is a long m…", got.Title)
}

func TestStateReplaceFrom(t *testing.T) {
	conv := testConversation(t)
	u1 := model.NewUserMessage("one", nil)
	a1 := model.NewAssistantPlaceholder()
	u2 := model.NewUserMessage("two", nil)
	a2 := model.NewAssistantPlaceholder()
	conv.Messages = []model.Message{u1, a1, u2, a2}
	st := NewState().AddConversation(conv)

	// Resend from the first user message: log becomes exactly index+2 long.
	fresh := model.NewAssistantPlaceholder()
	st2 := st.ReplaceFrom(conv.ID, u1.ID, fresh)
	got, _ := st2.Conversation(conv.ID)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, u1.ID, got.Messages[0].ID)
	assert.Equal(t, fresh.ID, got.Messages[1].ID)

	// Unknown anchor: silent no-op.
	st3 := st.ReplaceFrom(conv.ID, "ghost", fresh)
	got3, _ := st3.Conversation(conv.ID)
	assert.Len(t, got3.Messages, 4)
}

func TestStateMutate(t *testing.T) {
	conv := testConversation(t)
	ph := model.NewAssistantPlaceholder()
	conv.Messages = []model.Message{ph}
	st := NewState().AddConversation(conv)

	st = st.Mutate(conv.ID, ph.ID, Patch{AppendContent: "Hel"})
	st = st.Mutate(conv.ID, ph.ID, Patch{AppendContent: "lo"})
	done := model.StatusDone
	st = st.Mutate(conv.ID, ph.ID, Patch{
		SetStatus: &done,
		MergeMeta: &model.Metadata{TotalTokens: 5, LatencyMs: 120},
	})

	got, _ := st.Conversation(conv.ID)
	m := got.Messages[0]
	assert.Equal(t, "Hello", m.Content)
	assert.Equal(t, model.StatusDone, m.Status)
	require.NotNil(t, m.Meta)
	assert.Equal(t, 5, m.Meta.TotalTokens)
	assert.Equal(t, int64(120), m.Meta.LatencyMs)

	// Unknown message id: no-op.
	out := st.Mutate(conv.ID, "ghost", Patch{AppendContent: "x"})
	assert.Equal(t, st, out)
}

func TestStateMutateTerminalStatusIsFinal(t *testing.T) {
	conv := testConversation(t)
	ph := model.NewAssistantPlaceholder()
	conv.Messages = []model.Message{ph}
	st := NewState().AddConversation(conv)

	stopped := model.StatusStopped
	st = st.Mutate(conv.ID, ph.ID, Patch{SetStatus: &stopped})

	done := model.StatusDone
	st = st.Mutate(conv.ID, ph.ID, Patch{SetStatus: &done})

	got, _ := st.Conversation(conv.ID)
	assert.Equal(t, model.StatusStopped, got.Messages[0].Status)
}

func TestStateMutateSetContent(t *testing.T) {
	conv := testConversation(t)
	u := model.NewUserMessage("tpyo", nil)
	conv.Messages = []model.Message{u}
	st := NewState().AddConversation(conv)

	fixed := "typo"
	st = st.Mutate(conv.ID, u.ID, Patch{SetContent: &fixed})
	st = st.RefreshTitle(conv.ID)

	got, _ := st.Conversation(conv.ID)
	assert.Equal(t, "typo", got.Messages[0].Content)
	assert.Equal(t, "typo", got.Title)
}

func TestStateRemoveConversation(t *testing.T) {
	a := model.NewConversation()
	b := model.NewConversation()
	b.UpdatedAt = a.UpdatedAt.Add(time.Second)
	st := NewState().AddConversation(a).AddConversation(b)

	st = st.SetActive(a.ID)
	st = st.RemoveConversation(a.ID)
	assert.Equal(t, b.ID, st.ActiveID, "active moves to most recent survivor")
	require.Len(t, st.Conversations, 1)

	st = st.RemoveConversation(b.ID)
	assert.Empty(t, st.ActiveID)
	assert.Empty(t, st.Conversations)
}

func TestStateSetters(t *testing.T) {
	conv := testConversation(t)
	st := NewState().AddConversation(conv)

	st = st.SetTemperature(conv.ID, 9.5)
	st = st.SetMaxTokens(conv.ID, 1)
	st = st.SetSystemPrompt(conv.ID, "be terse")
	st = st.SetModel(conv.ID, "qwen2.5-7b")
	st = st.SetServer(conv.ID, "local")

	got, _ := st.Conversation(conv.ID)
	assert.Equal(t, 2.0, got.Temperature)
	assert.Equal(t, 16, got.MaxTokens)
	assert.Equal(t, "be terse", got.SystemPrompt)
	assert.Equal(t, "qwen2.5-7b", got.Model)
	assert.Equal(t, "local", got.ServerID)
}

func TestStoreDebouncedSave(t *testing.T) {
	port := NewMemoryPort()
	s := Open(port, zerolog.Nop())
	s.debounce = 20 * time.Millisecond

	conv := model.NewConversation()
	s.Update(func(st State) State { return st.AddConversation(conv) })
	for i := 0; i < 10; i++ {
		s.Update(func(st State) State {
			return st.Append(conv.ID, model.NewUserMessage("m", nil))
		})
	}
	assert.Equal(t, 0, port.Saves(), "no save before the debounce window elapses")

	assert.Eventually(t, func() bool { return port.Saves() == 1 },
		time.Second, 5*time.Millisecond, "one save after the burst settles")

	require.NoError(t, s.Close())
	saved, err := port.Load()
	require.NoError(t, err)
	got, ok := saved.Conversation(conv.ID)
	require.True(t, ok)
	assert.Len(t, got.Messages, 10)
}

func TestStoreSnapshotIsolation(t *testing.T) {
	s := Open(NewMemoryPort(), zerolog.Nop())
	defer s.Close()

	conv := model.NewConversation()
	s.Update(func(st State) State {
		return st.AddConversation(conv).Append(conv.ID, model.NewUserMessage("hi", nil))
	})

	snap := s.Snapshot()
	snap.Conversations[0].Messages[0].Content = "mutated"

	again := s.Snapshot()
	assert.Equal(t, "hi", again.Conversations[0].Messages[0].Content)
}

func TestFilePortRoundTrip(t *testing.T) {
	dir := t.TempDir()
	port, err := NewFilePort(dir)
	require.NoError(t, err)

	conv := model.NewConversation()
	st := NewState().AddConversation(conv).Append(conv.ID, model.NewUserMessage("persist me", nil))
	require.NoError(t, port.Save(st))

	loaded, err := port.Load()
	require.NoError(t, err)
	got, ok := loaded.Conversation(conv.ID)
	require.True(t, ok)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "persist me", got.Messages[0].Content)
	assert.Equal(t, conv.ID, loaded.ActiveID)
}

func TestFilePortMissingFile(t *testing.T) {
	port, err := NewFilePort(t.TempDir())
	require.NoError(t, err)
	st, err := port.Load()
	require.NoError(t, err)
	assert.Empty(t, st.Conversations)
}

func TestSQLitePortRoundTrip(t *testing.T) {
	port, err := NewSQLitePort(t.TempDir())
	require.NoError(t, err)
	defer port.Close()

	conv := model.NewConversation()
	st := NewState().AddConversation(conv)
	require.NoError(t, port.Save(st))
	// Second save exercises the upsert path.
	st = st.Append(conv.ID, model.NewUserMessage("again", nil))
	require.NoError(t, port.Save(st))

	loaded, err := port.Load()
	require.NoError(t, err)
	got, ok := loaded.Conversation(conv.ID)
	require.True(t, ok)
	assert.Len(t, got.Messages, 1)
}
