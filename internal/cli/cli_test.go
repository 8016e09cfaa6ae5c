// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractAnswer(t *testing.T) {
	raw := json.RawMessage(`{"choices":[{"message":{"role":"assistant","content":"  42\n"}}]}`)
	got, err := extractAnswer(raw)
	require.NoError(t, err)
	assert.Equal(t, "42", got)

	_, err = extractAnswer(json.RawMessage(`{"choices":[]}`))
	assert.Error(t, err)

	_, err = extractAnswer(json.RawMessage(`garbage`))
	assert.Error(t, err)
}
