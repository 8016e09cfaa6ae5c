// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "strings"

// =============================================================================
// MODEL CAPABILITIES
// =============================================================================

// visionModels are substrings of model identifiers known to accept image
// input. Anything else gets text-only payloads; attached images stay
// display-only.
var visionModels = []string{
	"gpt-4o",
	"gpt-4-turbo",
	"gpt-4.1",
	"llava",
	"vision",
	"-vl",
	"minicpm-v",
	"pixtral",
	"gemma3",
	"claude-3",
}

// imageMarkers maps model identifier substrings to the textual marker token
// some backends require alongside an image part. Checked in order; first
// match wins.
var imageMarkers = []struct {
	substr string
	marker string
}{
	{"llava", "<image>\n"},
	{"minicpm-v", "<image>\n"},
	{"deepseek-vl", "<image_placeholder>\n"},
}

// SupportsVision reports whether the model is known to accept image input.
func SupportsVision(modelID string) bool {
	id := strings.ToLower(modelID)
	for _, v := range visionModels {
		if strings.Contains(id, v) {
			return true
		}
	}
	return false
}

// ImageMarker returns the marker token the model requires before image
// content, or "" when none is needed.
func ImageMarker(modelID string) string {
	id := strings.ToLower(modelID)
	for _, m := range imageMarkers {
		if strings.Contains(id, m.substr) {
			return m.marker
		}
	}
	return ""
}
