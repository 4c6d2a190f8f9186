// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package log provides the structured logging setup for lingua.
//
// Components receive a logger via their constructors rather than using a
// package-level global. Use New at startup, logger.With("component", ...)
// when wiring subsystems, and NewNop in tests that don't assert on output.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger is an alias for *slog.Logger so components depend on a single name.
type Logger = *slog.Logger

// Config holds logger options.
type Config struct {
	// Level is the minimum level to emit (default: slog.LevelInfo).
	Level slog.Level

	// JSON switches output from text to JSON format.
	JSON bool
}

// New creates a logger writing to stderr.
func New(cfg Config) Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter creates a logger writing to w. Useful for capturing output
// in tests.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
