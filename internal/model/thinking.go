// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// SplitThinking separates a leading <think>...</think> segment from the
// visible answer. Reasoning models emit these blocks inline; the UI shows
// them collapsed. An unterminated block (still streaming) is treated as all
// thinking with an empty answer.
func SplitThinking(content string) (thinking, answer string) {
	trimmed := strings.TrimLeft(content, " \t\r\n")
	if !strings.HasPrefix(trimmed, thinkOpen) {
		return "", content
	}
	rest := trimmed[len(thinkOpen):]
	end := strings.Index(rest, thinkClose)
	if end < 0 {
		return strings.TrimSpace(rest), ""
	}
	thinking = strings.TrimSpace(rest[:end])
	answer = strings.TrimLeft(rest[end+len(thinkClose):], " \t\r\n")
	return thinking, answer
}
