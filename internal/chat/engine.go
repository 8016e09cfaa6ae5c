// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat drives message turns: it appends the user/placeholder pair,
// streams the completion, folds deltas into the store, and finalizes the
// assistant message exactly once with status and metadata.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tidechat/tidechat-tui/internal/api"
	"github.com/tidechat/tidechat-tui/internal/backend"
	"github.com/tidechat/tidechat-tui/internal/model"
	"github.com/tidechat/tidechat-tui/internal/sse"
	"github.com/tidechat/tidechat-tui/internal/store"
)

// ErrBusy is returned when a send arrives while a response is still
// streaming. Turns are never queued; the caller decides whether to stop the
// stream first.
var ErrBusy = errors.New("chat: a response is already streaming")

// StreamError reports a stream that failed after content had already
// arrived. The partial content stays in the message; the error only
// describes the interruption.
type StreamError struct {
	Fragments int
	Err       error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream interrupted after %d fragments: %v", e.Fragments, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// EventKind discriminates engine notifications.
type EventKind int

const (
	// EventStarted fires after the user message and placeholder are in the log.
	EventStarted EventKind = iota
	// EventDelta fires after each content fragment lands in the store.
	EventDelta
	// EventFinished fires once per turn, after the terminal status is set.
	EventFinished
)

// Event describes a change the renderer may want to react to.
type Event struct {
	Kind           EventKind
	ConversationID string
	MessageID      string
	// ScrollHint asks the renderer to follow the stream. Only set while
	// auto-scroll is enabled; a reader scrolled up is never yanked down.
	ScrollHint bool
	// Status is the terminal status for EventFinished events.
	Status model.Status
}

// Engine owns the single in-flight turn. One engine per application.
type Engine struct {
	store  *store.Store
	reg    *backend.Registry
	notify func(Event)
	log    zerolog.Logger

	busy       atomic.Bool
	autoScroll atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc

	// clients caches one API client per backend so the connection pool and
	// rate limiter survive across turns.
	clientsMu sync.Mutex
	clients   map[string]*api.Client
}

// New creates an engine. notify may be nil; it is called from the streaming
// goroutine and must not block.
func New(st *store.Store, reg *backend.Registry, notify func(Event), log zerolog.Logger) *Engine {
	if notify == nil {
		notify = func(Event) {}
	}
	e := &Engine{
		store:   st,
		reg:     reg,
		notify:  notify,
		log:     log,
		clients: make(map[string]*api.Client),
	}
	e.autoScroll.Store(true)
	return e
}

// Busy reports whether a response is currently streaming.
func (e *Engine) Busy() bool { return e.busy.Load() }

// SetAutoScroll toggles scroll-follow hints on delta events.
func (e *Engine) SetAutoScroll(on bool) { e.autoScroll.Store(on) }

// AutoScroll reports the current scroll-follow setting.
func (e *Engine) AutoScroll() bool { return e.autoScroll.Load() }

// Stop cancels the in-flight stream, if any. The interrupted message keeps
// its partial content and finalizes as stopped.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

// =============================================================================
// TURN ENTRY POINTS
// =============================================================================

// Send appends a user message and placeholder to the conversation and starts
// streaming the response.
func (e *Engine) Send(convID, text string, image *model.Attachment) error {
	if strings.TrimSpace(text) == "" && image == nil {
		return errors.New("chat: empty message")
	}
	return e.begin(convID, func(st store.State, ph model.Message) store.State {
		return st.Append(convID, model.NewUserMessage(text, image), ph)
	})
}

// Resend truncates the log after the given user message and streams a fresh
// response to it. The messages that followed are discarded, not duplicated.
func (e *Engine) Resend(convID, userMsgID string) error {
	conv, ok := e.store.Snapshot().Conversation(convID)
	if !ok {
		return errors.New("chat: unknown conversation")
	}
	m := conv.Message(userMsgID)
	if m == nil || m.Role != model.RoleUser {
		return errors.New("chat: resend target is not a user message")
	}
	return e.begin(convID, func(st store.State, ph model.Message) store.State {
		return st.ReplaceFrom(convID, userMsgID, ph)
	})
}

// Regenerate discards an assistant message (and everything after it) and
// streams a replacement anchored at the preceding user message. The
// replacement is a new message with a new id.
func (e *Engine) Regenerate(convID, assistantMsgID string) error {
	conv, ok := e.store.Snapshot().Conversation(convID)
	if !ok {
		return errors.New("chat: unknown conversation")
	}
	pos := conv.MessageIndex(assistantMsgID)
	if pos < 0 || conv.Messages[pos].Role != model.RoleAssistant {
		return errors.New("chat: regenerate target is not an assistant message")
	}
	anchor := conv.LastUserIndexBefore(pos)
	if anchor < 0 {
		return errors.New("chat: no user message to regenerate from")
	}
	anchorID := conv.Messages[anchor].ID
	return e.begin(convID, func(st store.State, ph model.Message) store.State {
		return st.ReplaceFrom(convID, anchorID, ph)
	})
}

// EditSave rewrites a user message in place, discards everything after it,
// and streams a fresh response. The edited message keeps its id.
func (e *Engine) EditSave(convID, userMsgID, content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("chat: empty message")
	}
	conv, ok := e.store.Snapshot().Conversation(convID)
	if !ok {
		return errors.New("chat: unknown conversation")
	}
	m := conv.Message(userMsgID)
	if m == nil || m.Role != model.RoleUser {
		return errors.New("chat: edit target is not a user message")
	}
	return e.begin(convID, func(st store.State, ph model.Message) store.State {
		st = st.Mutate(convID, userMsgID, store.Patch{SetContent: &content})
		st = st.RefreshTitle(convID)
		return st.ReplaceFrom(convID, userMsgID, ph)
	})
}

// begin claims the busy flag, resolves the backend, applies the log mutation
// with a fresh placeholder, and launches the streaming goroutine. A bad
// server selector is rejected here, before anything touches the log, so it
// surfaces as a request-level error rather than a dead turn.
func (e *Engine) begin(convID string, mutate func(store.State, model.Message) store.State) error {
	if !e.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	conv, ok := e.store.Snapshot().Conversation(convID)
	if !ok {
		e.busy.Store(false)
		return errors.New("chat: unknown conversation")
	}
	srv, err := e.reg.Resolve(backend.Selector{ServerID: conv.ServerID})
	if err != nil {
		e.busy.Store(false)
		return err
	}

	ph := model.NewAssistantPlaceholder()
	st := e.store.Update(func(s store.State) store.State { return mutate(s, ph) })
	conv, _ = st.Conversation(convID)

	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()

	e.notify(Event{Kind: EventStarted, ConversationID: convID, MessageID: ph.ID})
	go e.run(ctx, conv, ph.ID, srv)
	return nil
}

// client returns the shared per-backend client, creating it on first use.
// Sharing keeps the connection pool and the request-burst limiter
// accumulating across turns to the same backend.
func (e *Engine) client(srv backend.Server) *api.Client {
	key := srv.ID + "|" + srv.BaseURL
	e.clientsMu.Lock()
	defer e.clientsMu.Unlock()
	if c, ok := e.clients[key]; ok {
		return c
	}
	c := api.New(api.Config{ServerID: srv.ID, BaseURL: srv.BaseURL, APIKey: srv.APIKey}, e.log)
	e.clients[key] = c
	return c
}

// =============================================================================
// STREAM CYCLE
// =============================================================================

func (e *Engine) run(ctx context.Context, conv model.Conversation, msgID string, srv backend.Server) {
	start := time.Now()

	modelID := conv.Model
	if modelID == "" {
		modelID = e.reg.DefaultModel()
	}

	client := e.client(srv)
	req := buildRequest(conv, msgID, modelID)

	body, err := client.Stream(ctx, req)
	if err != nil {
		e.finalize(ctx, conv.ID, msgID, start, nil, srv.ID, modelID, err)
		return
	}
	defer body.Close()

	var usage *sse.Usage
	fragments := 0
	dec := sse.NewDecoder(body)
	for {
		payload, err := dec.Next()
		if errors.Is(err, io.EOF) {
			e.finalize(ctx, conv.ID, msgID, start, usage, srv.ID, modelID, nil)
			return
		}
		if err != nil {
			if fragments > 0 {
				err = &StreamError{Fragments: fragments, Err: err}
			}
			e.finalize(ctx, conv.ID, msgID, start, usage, srv.ID, modelID, err)
			return
		}
		d := sse.Extract(payload)
		if d.Usage != nil {
			usage = d.Usage
		}
		if d.HasText {
			fragments++
			e.store.Update(func(s store.State) store.State {
				return s.Mutate(conv.ID, msgID, store.Patch{AppendContent: d.Text})
			})
			e.notify(Event{
				Kind:           EventDelta,
				ConversationID: conv.ID,
				MessageID:      msgID,
				ScrollHint:     e.autoScroll.Load(),
			})
		}
	}
}

// finalize sets the terminal status and metadata. Called exactly once per
// turn; every exit path of run routes through it.
func (e *Engine) finalize(ctx context.Context, convID, msgID string, start time.Time, usage *sse.Usage, serverID, modelID string, cause error) {
	status := model.StatusDone
	errMsg := ""
	switch {
	case cause == nil:
	case errors.Is(cause, context.Canceled) || ctx.Err() != nil:
		// A user stop is never an error, whatever the transport surfaced.
		status = model.StatusStopped
	default:
		status = model.StatusError
		errMsg = cause.Error()
	}

	// Sub-millisecond turns round up so latency is always recorded.
	latency := time.Since(start).Milliseconds()
	if latency < 1 {
		latency = 1
	}
	meta := model.Metadata{
		LatencyMs: latency,
		ServerID:  serverID,
		Model:     modelID,
	}
	if usage != nil {
		meta.PromptTokens = usage.PromptTokens
		meta.CompletionTokens = usage.CompletionTokens
		meta.TotalTokens = usage.TotalTokens
	}

	e.store.Update(func(s store.State) store.State {
		if usage == nil {
			// The server never reported usage; estimate from what arrived.
			if conv, ok := s.Conversation(convID); ok {
				if m := conv.Message(msgID); m != nil {
					meta.CompletionTokens = m.EstimateTokens()
					meta.Estimated = true
				}
			}
		}
		s = s.Mutate(convID, msgID, store.Patch{
			SetStatus: &status,
			MergeMeta: &meta,
			SetError:  &errMsg,
		})
		if conv, ok := s.Conversation(convID); ok && userCount(conv) == 1 {
			s = s.RefreshTitle(convID)
		}
		return s
	})

	e.mu.Lock()
	e.cancel = nil
	e.mu.Unlock()
	e.busy.Store(false)

	if status == model.StatusError {
		e.log.Warn().Err(cause).Str("conversation", convID).Msg("turn failed")
	} else {
		e.log.Debug().Str("conversation", convID).Str("status", string(status)).
			Int64("latency_ms", meta.LatencyMs).Msg("turn finished")
	}
	e.notify(Event{Kind: EventFinished, ConversationID: convID, MessageID: msgID, Status: status})
}

func userCount(c model.Conversation) int {
	n := 0
	for _, m := range c.Messages {
		if m.Role == model.RoleUser {
			n++
		}
	}
	return n
}

// buildRequest assembles the wire payload from the conversation snapshot:
// the system prompt first, then every message before the placeholder. Empty
// assistant messages (failed or stopped-before-output turns) are skipped so
// the model never sees a blank turn.
func buildRequest(conv model.Conversation, placeholderID, modelID string) api.ChatRequest {
	msgs := make([]api.ChatMessage, 0, len(conv.Messages)+1)
	if strings.TrimSpace(conv.SystemPrompt) != "" {
		msgs = append(msgs, api.TextMessage("system", conv.SystemPrompt))
	}
	vision := model.SupportsVision(modelID)
	marker := model.ImageMarker(modelID)
	for _, m := range conv.Messages {
		if m.ID == placeholderID {
			break
		}
		if m.Role == model.RoleAssistant && strings.TrimSpace(m.Content) == "" {
			continue
		}
		if m.Image != nil && vision {
			msgs = append(msgs, api.ImageMessage(string(m.Role), m.Content, marker, m.Image.DataURL))
			continue
		}
		msgs = append(msgs, api.TextMessage(string(m.Role), m.Content))
	}
	return api.ChatRequest{
		Model:       modelID,
		Messages:    msgs,
		Stream:      true,
		Temperature: conv.Temperature,
		MaxTokens:   conv.MaxTokens,
	}
}
