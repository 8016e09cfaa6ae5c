// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tidechat/tidechat-tui/internal/model"
)

// DebounceInterval is how long the store waits after a mutation before
// persisting. Streaming appends arrive many times per second; writing on
// every one would hammer the disk for no benefit.
const DebounceInterval = 250 * time.Millisecond

// Port is the persistence boundary: load the previously saved state, save a
// snapshot. Implementations must tolerate Save being called from a timer
// goroutine.
type Port interface {
	Load() (State, error)
	Save(State) error
	Close() error
}

// Store serializes all state mutations and debounces persistence. Readers
// take snapshots; writers go through Update or the typed helpers, which apply
// a pure operation under the lock and schedule a save.
type Store struct {
	mu    sync.Mutex
	state State
	port  Port
	log   zerolog.Logger

	debounce time.Duration
	timer    *time.Timer
	closed   bool
}

// Open loads persisted state through the port and returns a ready store.
// A load failure falls back to an empty state rather than refusing to start;
// the previous file is left untouched until the next save.
func Open(port Port, log zerolog.Logger) *Store {
	st, err := port.Load()
	if err != nil {
		log.Warn().Err(err).Msg("state load failed, starting empty")
		st = NewState()
	}
	if st.Conversations == nil {
		st.Conversations = []model.Conversation{}
	}
	return &Store{
		state:    st,
		port:     port,
		log:      log,
		debounce: DebounceInterval,
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Update applies a pure state operation and schedules a debounced save.
func (s *Store) Update(fn func(State) State) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = fn(s.state)
	s.scheduleSaveLocked()
	return s.state.Clone()
}

func (s *Store) scheduleSaveLocked() {
	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Reset(s.debounce)
		return
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		if err := s.Flush(); err != nil {
			s.log.Error().Err(err).Msg("state save failed")
		}
	})
}

// Flush persists the current state immediately.
func (s *Store) Flush() error {
	s.mu.Lock()
	snap := s.state.Clone()
	s.mu.Unlock()
	return s.port.Save(snap)
}

// Close flushes pending changes and closes the port. Safe to call once.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	if err := s.Flush(); err != nil {
		s.port.Close()
		return err
	}
	return s.port.Close()
}
