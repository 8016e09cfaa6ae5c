// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import "encoding/json"

// Usage carries server-reported token totals. Backends that supply it at all
// usually do so only on the final record of a stream.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Delta is the result of extracting one decoded record: an incremental text
// fragment (HasText distinguishes "" from absent) and an optional usage
// object that replaces any previously captured one.
type Delta struct {
	Text    string
	HasText bool
	Usage   *Usage
}

// chunkRecord mirrors the OpenAI streaming shape with pointer fields so
// every access is presence-checked. Backends follow this contract loosely;
// any missing or oddly-shaped field reads as absent.
type chunkRecord struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

// Extract pulls the incremental fragment and usage totals out of one record
// payload. Pure transform, no side effects. A payload that fails to parse —
// keep-alive noise, malformed intermediate frames — yields a zero Delta
// rather than an error.
func Extract(payload []byte) Delta {
	var rec chunkRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Delta{}
	}

	var d Delta
	if len(rec.Choices) > 0 && rec.Choices[0].Delta.Content != nil {
		d.Text = *rec.Choices[0].Delta.Content
		d.HasText = true
	}
	if rec.Usage != nil {
		u := *rec.Usage
		d.Usage = &u
	}
	return d
}
