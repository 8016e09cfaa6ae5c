// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteFileName is the database file a SQLitePort opens under the data dir.
const SQLiteFileName = "tidechat.db"

// stateKey is the single row state lives under. The whole state is one JSON
// document; per-conversation rows would buy nothing at this scale and would
// complicate atomic snapshots.
const stateKey = "tidechat.state"

// SQLitePort persists state in an embedded SQLite database. Useful on
// filesystems where atomic rename is unreliable, and as the base for future
// history queries.
type SQLitePort struct {
	db *sql.DB
}

// NewSQLitePort opens (creating if needed) dir/tidechat.db.
func NewSQLitePort(dir string) (*SQLitePort, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, SQLiteFileName))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Single writer; the store already serializes saves.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS app_state (
		key   TEXT PRIMARY KEY,
		value BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLitePort{db: db}, nil
}

// Load reads the state row. No row means a fresh install.
func (p *SQLitePort) Load() (State, error) {
	var data []byte
	err := p.db.QueryRow(`SELECT value FROM app_state WHERE key = ?`, stateKey).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
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

// Save upserts the snapshot.
func (p *SQLitePort) Save(s State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	_, err = p.db.Exec(`INSERT INTO app_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, stateKey, data)
	if err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// Close closes the database.
func (p *SQLitePort) Close() error { return p.db.Close() }
