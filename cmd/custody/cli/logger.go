// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewCommandLogger creates the console logger for a command. When
// stderr is a terminal it uses slog.TextHandler for human-readable
// output. When stderr is piped or redirected (a lab's collection
// script, CI, a wrapper that archives the console), it uses
// slog.JSONHandler so every stage outcome stays machine-parseable.
// verbose lowers the level to Debug.
//
// The workspace's acquisition.log gets its own text handler at Debug
// (see lib/runlog), so this logger only decides what the operator sees;
// the durable record is complete either way.
//
// Callers scope the logger with command context via With():
//
//	logger := cli.NewCommandLogger(verbose).With(
//	    "command", "acquire",
//	    "case", inputs.CaseID,
//	)
func NewCommandLogger(verbose bool) *slog.Logger {
	return slog.New(NewConsoleHandler(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())), verbose))
}

// NewConsoleHandler is the handler behind NewCommandLogger, with the
// terminal decision made by the caller. runlog fans out to it so
// console and file see the same records.
func NewConsoleHandler(w io.Writer, terminal, verbose bool) slog.Handler {
	options := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		options.Level = slog.LevelDebug
	}
	if terminal {
		return slog.NewTextHandler(w, options)
	}
	return slog.NewJSONHandler(w, options)
}
