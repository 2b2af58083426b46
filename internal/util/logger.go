// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"io"
	"log/slog"
	"os"
)

// DebugEnv enables debug logging when set to any non-empty value.
const DebugEnv = "BEAKER_DEBUG"

var Logger = slog.New(slog.DiscardHandler)

// InitLogger initializes the global logger with appropriate log level
// Set BEAKER_DEBUG=1 environment variable to enable debug logging
func InitLogger() {
	Logger = NewLogger(os.Stderr, os.Getenv(DebugEnv) != "")
}

// NewLogger returns a text logger writing to w. Time and level attributes are
// dropped for cleaner CLI output.
func NewLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo // Default: only show Info, Warn, Error
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	})
	return slog.New(handler)
}

// Debug logs a debug message (only shown when BEAKER_DEBUG is set)
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}
