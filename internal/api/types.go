// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

// ChatMessage is one role-tagged entry in an outbound request. Content is
// either a plain string or a []Part for image-bearing messages.
type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// Part is one element of a multi-part message payload.
type Part struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageRef `json:"image_url,omitempty"`
}

// ImageRef wraps an image reference (a data URL in this client).
type ImageRef struct {
	URL string `json:"url"`
}

// TextMessage builds a plain text message.
func TextMessage(role, content string) ChatMessage {
	return ChatMessage{Role: role, Content: content}
}

// ImageMessage builds a multi-part user message: a text part followed by an
// image part. Marker is the model-specific token some backends require
// prepended to the text; pass "" when the model needs none.
func ImageMessage(role, text, marker, dataURL string) ChatMessage {
	return ChatMessage{
		Role: role,
		Content: []Part{
			{Type: "text", Text: marker + text},
			{Type: "image_url", ImageURL: &ImageRef{URL: dataURL}},
		},
	}
}

// ChatRequest is the body sent to the chat-completions endpoint.
type ChatRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []ChatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// ModelInfo describes one entry from the model-listing endpoint.
type ModelInfo struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by,omitempty"`
	Created int64  `json:"created,omitempty"`
}

// modelsResponse is the wire shape of the model listing.
type modelsResponse struct {
	Data []ModelInfo `json:"data"`
}

// apiErrorResponse is the error body shape used by OpenAI-compatible
// servers. Parsed best-effort; plenty of backends return plain text.
type apiErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
