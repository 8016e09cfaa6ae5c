// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import "sync"

// MemoryPort keeps state in memory only. Used in tests and as the fallback
// when no storage backend is configured.
type MemoryPort struct {
	mu    sync.Mutex
	state State
	saves int
}

// NewMemoryPort returns an empty in-memory port.
func NewMemoryPort() *MemoryPort {
	return &MemoryPort{state: NewState()}
}

// Load returns the last saved state.
func (p *MemoryPort) Load() (State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Clone(), nil
}

// Save stores a snapshot.
func (p *MemoryPort) Save(s State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s.Clone()
	p.saves++
	return nil
}

// Close is a no-op.
func (p *MemoryPort) Close() error { return nil }

// Saves reports how many times Save has been called.
func (p *MemoryPort) Saves() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}
