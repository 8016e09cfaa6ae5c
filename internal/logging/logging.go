// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures the application logger. The terminal belongs to
// the UI, so logs go to a file under the data directory; set TIDECHAT_LOG to
// raise or lower the level.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// EnvLevel selects the log level (trace|debug|info|warn|error). Defaults to
// info.
const EnvLevel = "TIDECHAT_LOG"

// LogFileName is the log file created under the data directory.
const LogFileName = "tidechat.log"

// Open creates a file-backed logger under dir. The returned closer must be
// called on shutdown. On failure the logger falls back to stderr rather than
// silencing the application.
func Open(dir string) (zerolog.Logger, io.Closer, error) {
	level := parseLevel(os.Getenv(EnvLevel))

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return stderrLogger(level), nopCloser{}, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, LogFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return stderrLogger(level), nopCloser{}, fmt.Errorf("open log file: %w", err)
	}

	log := zerolog.New(f).Level(level).With().Timestamp().Logger()
	return log, f, nil
}

// Console returns a human-readable stderr logger for one-shot CLI commands.
func Console() zerolog.Logger {
	level := parseLevel(os.Getenv(EnvLevel))
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func stderrLogger(level zerolog.Level) zerolog.Logger {
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
