// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidechat/tidechat-tui/internal/util"
)

// StateFileName is the single file a FilePort reads and writes.
const StateFileName = "state.json"

// FilePort persists state as pretty-printed JSON in one file under the data
// directory. Writes are atomic (temp file + rename) so a crash mid-save
// never truncates the previous state.
type FilePort struct {
	path string
}

// NewFilePort creates a port writing to dir/state.json.
func NewFilePort(dir string) (*FilePort, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FilePort{path: filepath.Join(dir, StateFileName)}, nil
}

// Load reads the state file. A missing file is a fresh install, not an error.
func (p *FilePort) Load() (State, error) {
	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return NewState(), nil
	}
	if err != nil {
		return NewState(), fmt.Errorf("read state: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return NewState(), fmt.Errorf("parse state: %w", err)
	}
	if st.Conversations == nil {
		st = NewState()
	}
	return st, nil
}

// Save writes the snapshot atomically.
func (p *FilePort) Save(s State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := util.AtomicWriteFile(p.path, data, 0o600); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// Close is a no-op; FilePort holds no open handles between calls.
func (p *FilePort) Close() error { return nil }
