// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidechat/tidechat-tui/internal/backend"
	"github.com/tidechat/tidechat-tui/internal/model"
	"github.com/tidechat/tidechat-tui/internal/store"
)

// sseHandler streams the given records as an SSE response.
func sseHandler(records ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fl := w.(http.Flusher)
		for _, rec := range records {
			fmt.Fprintf(w, "data: %s\n\n", rec)
			fl.Flush()
		}
	}
}

type harness struct {
	store  *store.Store
	engine *Engine
	conv   model.Conversation

	mu     sync.Mutex
	events []Event
	done   chan Event
}

func newHarness(t *testing.T, handler http.Handler) *harness {
	t.Helper()
	t.Setenv(backend.EnvBaseURL, "")

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := backend.DefaultConfig()
	cfg.Servers["local"] = backend.Server{ID: "local", BaseURL: srv.URL}
	reg := backend.NewRegistry(cfg, "", zerolog.Nop())

	st := store.Open(store.NewMemoryPort(), zerolog.Nop())
	t.Cleanup(func() { st.Close() })

	h := &harness{store: st, done: make(chan Event, 1)}
	h.engine = New(st, reg, func(ev Event) {
		h.mu.Lock()
		h.events = append(h.events, ev)
		h.mu.Unlock()
		if ev.Kind == EventFinished {
			h.done <- ev
		}
	}, zerolog.Nop())

	conv := model.NewConversation()
	conv.Model = "test-model"
	st.Update(func(s store.State) store.State { return s.AddConversation(conv) })
	h.conv = conv
	return h
}

func (h *harness) waitFinished(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-h.done:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("turn did not finish")
		return Event{}
	}
}

func (h *harness) messages(t *testing.T) []model.Message {
	t.Helper()
	conv, ok := h.store.Snapshot().Conversation(h.conv.ID)
	require.True(t, ok)
	return conv.Messages
}

func TestEngineSendStreamsToCompletion(t *testing.T) {
	h := newHarness(t, sseHandler(
		`{"choices":[{"delta":{"content":"Hel"}}]}`,
		`{"choices":[{"delta":{"content":"lo"}}],"usage":{"prompt_tokens":2,"completion_tokens":3,"total_tokens":5}}`,
		`[DONE]`,
	))

	require.NoError(t, h.engine.Send(h.conv.ID, "hi", nil))
	ev := h.waitFinished(t)
	assert.Equal(t, model.StatusDone, ev.Status)

	msgs := h.messages(t)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	a := msgs[1]
	assert.Equal(t, "Hello", a.Content)
	assert.Equal(t, model.StatusDone, a.Status)
	require.NotNil(t, a.Meta)
	assert.Equal(t, 5, a.Meta.TotalTokens)
	assert.False(t, a.Meta.Estimated)
	assert.GreaterOrEqual(t, a.Meta.LatencyMs, int64(1), "even instant turns record latency")
	assert.False(t, h.engine.Busy())
}

func TestEngineEstimatesTokensWithoutUsage(t *testing.T) {
	h := newHarness(t, sseHandler(
		`{"choices":[{"delta":{"content":"Hello"}}]}`,
		`[DONE]`,
	))

	require.NoError(t, h.engine.Send(h.conv.ID, "hi", nil))
	h.waitFinished(t)

	a := h.messages(t)[1]
	require.NotNil(t, a.Meta)
	assert.True(t, a.Meta.Estimated)
	assert.Equal(t, 2, a.Meta.CompletionTokens, "ceil(5/4)")
}

func TestEngineStopKeepsPartialContent(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fl := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n")
		fl.Flush()
		<-release
	}))
	defer close(release)

	require.NoError(t, h.engine.Send(h.conv.ID, "hi", nil))

	require.Eventually(t, func() bool {
		msgs := h.messages(t)
		return len(msgs) == 2 && msgs[1].Content == "partial"
	}, 5*time.Second, 5*time.Millisecond)

	h.engine.Stop()
	ev := h.waitFinished(t)
	assert.Equal(t, model.StatusStopped, ev.Status)

	a := h.messages(t)[1]
	assert.Equal(t, "partial", a.Content)
	assert.Equal(t, model.StatusStopped, a.Status)
	assert.Empty(t, a.Error, "a stop is not an error")
}

func TestEngineServerErrorFinalizesAsError(t *testing.T) {
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))

	require.NoError(t, h.engine.Send(h.conv.ID, "hi", nil))
	ev := h.waitFinished(t)
	assert.Equal(t, model.StatusError, ev.Status)

	a := h.messages(t)[1]
	assert.Equal(t, model.StatusError, a.Status)
	assert.NotEmpty(t, a.Error)
	assert.False(t, h.engine.Busy(), "busy released after failure")
}

func TestEngineBusyRejectsConcurrentSend(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-release
	}))

	require.NoError(t, h.engine.Send(h.conv.ID, "first", nil))
	err := h.engine.Send(h.conv.ID, "second", nil)
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	h.waitFinished(t)

	// The rejected send left no trace in the log.
	msgs := h.messages(t)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
}

func TestEngineResendTruncates(t *testing.T) {
	h := newHarness(t, sseHandler(`{"choices":[{"delta":{"content":"take two"}}]}`, `[DONE]`))

	require.NoError(t, h.engine.Send(h.conv.ID, "question", nil))
	h.waitFinished(t)
	userID := h.messages(t)[0].ID

	require.NoError(t, h.engine.Resend(h.conv.ID, userID))
	h.waitFinished(t)

	msgs := h.messages(t)
	require.Len(t, msgs, 2, "resend replaces, never duplicates")
	assert.Equal(t, userID, msgs[0].ID)
	assert.Equal(t, "take two", msgs[1].Content)
}

func TestEngineRegenerateUsesNewID(t *testing.T) {
	h := newHarness(t, sseHandler(`{"choices":[{"delta":{"content":"answer"}}]}`, `[DONE]`))

	require.NoError(t, h.engine.Send(h.conv.ID, "question", nil))
	h.waitFinished(t)
	oldAssistantID := h.messages(t)[1].ID

	require.NoError(t, h.engine.Regenerate(h.conv.ID, oldAssistantID))
	h.waitFinished(t)

	msgs := h.messages(t)
	require.Len(t, msgs, 2)
	assert.NotEqual(t, oldAssistantID, msgs[1].ID)
	assert.Equal(t, model.StatusDone, msgs[1].Status)
}

func TestEngineEditSaveRewritesAndRetitles(t *testing.T) {
	h := newHarness(t, sseHandler(`{"choices":[{"delta":{"content":"ok"}}]}`, `[DONE]`))

	require.NoError(t, h.engine.Send(h.conv.ID, "orignal question", nil))
	h.waitFinished(t)
	userID := h.messages(t)[0].ID

	require.NoError(t, h.engine.EditSave(h.conv.ID, userID, "original question"))
	h.waitFinished(t)

	msgs := h.messages(t)
	require.Len(t, msgs, 2, "edit leaves no orphaned assistant messages")
	assert.Equal(t, userID, msgs[0].ID, "edited message keeps its id")
	assert.Equal(t, "original question", msgs[0].Content)

	conv, _ := h.store.Snapshot().Conversation(h.conv.ID)
	assert.Equal(t, "original question", conv.Title)

	// Editing the same message again must not resurrect anything from the
	// first attempt.
	require.NoError(t, h.engine.EditSave(h.conv.ID, userID, "final question"))
	h.waitFinished(t)

	msgs = h.messages(t)
	require.Len(t, msgs, 2, "second edit leaves the log at exactly one exchange")
	assert.Equal(t, userID, msgs[0].ID)
	assert.Equal(t, "final question", msgs[0].Content)
	assert.Equal(t, model.StatusDone, msgs[1].Status)

	conv, _ = h.store.Snapshot().Conversation(h.conv.ID)
	assert.Equal(t, "final question", conv.Title)
}

func TestEngineRejectsUnknownServerBeforeAppending(t *testing.T) {
	h := newHarness(t, sseHandler(`[DONE]`))
	h.store.Update(func(s store.State) store.State {
		return s.SetServer(h.conv.ID, "ghost")
	})

	err := h.engine.Send(h.conv.ID, "hello", nil)
	require.ErrorIs(t, err, backend.ErrUnknownServer)

	assert.Empty(t, h.messages(t), "a rejected selector leaves no trace in the log")
	assert.False(t, h.engine.Busy(), "busy released after rejection")

	// The engine is immediately usable against a valid server.
	h.store.Update(func(s store.State) store.State {
		return s.SetServer(h.conv.ID, "local")
	})
	require.NoError(t, h.engine.Send(h.conv.ID, "hello", nil))
	h.waitFinished(t)
	require.Len(t, h.messages(t), 2)
}

func TestEngineReusesClientPerBackend(t *testing.T) {
	h := newHarness(t, sseHandler(`[DONE]`))

	local := backend.Server{ID: "local", BaseURL: "http://127.0.0.1:8080/v1"}
	other := backend.Server{ID: "remote", BaseURL: "http://10.0.0.1:8080/v1"}

	c1 := h.engine.client(local)
	c2 := h.engine.client(local)
	assert.Same(t, c1, c2, "same backend shares one client and one rate limiter")

	c3 := h.engine.client(other)
	assert.NotSame(t, c1, c3, "distinct backends get distinct clients")
}

func TestEngineScrollHintFollowsAutoScroll(t *testing.T) {
	h := newHarness(t, sseHandler(`{"choices":[{"delta":{"content":"x"}}]}`, `[DONE]`))
	h.engine.SetAutoScroll(false)

	require.NoError(t, h.engine.Send(h.conv.ID, "hi", nil))
	h.waitFinished(t)

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ev := range h.events {
		if ev.Kind == EventDelta {
			assert.False(t, ev.ScrollHint)
		}
	}
}

func TestEngineSkipsEmptyAssistantMessages(t *testing.T) {
	conv := model.NewConversation()
	conv.Model = "test-model"
	failed := model.NewAssistantPlaceholder()
	failed.Status = model.StatusError
	conv.Messages = []model.Message{
		model.NewUserMessage("first", nil),
		failed,
		model.NewUserMessage("second", nil),
	}
	ph := model.NewAssistantPlaceholder()
	conv.Messages = append(conv.Messages, ph)

	req := buildRequest(conv, ph.ID, "test-model")
	require.Len(t, req.Messages, 2)
	assert.True(t, req.Stream)
	assert.Equal(t, "test-model", req.Model)
}
