// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

// Package runlog writes the acquisition log kept with each workspace
// while mirroring every record to the console.
package runlog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Log is an open acquisition log.
type Log struct {
	file   *os.File
	logger *slog.Logger
}

// Open appends to the log at path, creating it owner-only, and
// returns a Log whose logger writes timestamped text lines there and
// forwards each record to console. A nil console logs to the file
// only.
func Open(path string, console slog.Handler) (*Log, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening acquisition log: %w", err)
	}
	handlers := Fanout{slog.NewTextHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})}
	if console != nil {
		handlers = append(handlers, console)
	}
	return &Log{file: file, logger: slog.New(handlers)}, nil
}

// Logger returns the fanned-out logger.
func (l *Log) Logger() *slog.Logger {
	return l.logger
}

// Close syncs and closes the file. Records logged afterwards still
// reach the console handler but are dropped by the file handler.
func (l *Log) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	syncErr := l.file.Sync()
	closeErr := l.file.Close()
	l.file = nil
	if syncErr != nil {
		return syncErr
	}
	return closeErr
}

// Fanout sends each record to every handler enabled for its level.
type Fanout []slog.Handler

func (handlers Fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle keeps going after a handler fails so a broken file does not
// silence the console; the first error is returned.
func (handlers Fanout) Handle(ctx context.Context, record slog.Record) error {
	var first error
	for _, handler := range handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (handlers Fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := make(Fanout, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithAttrs(attrs)
	}
	return derived
}

func (handlers Fanout) WithGroup(name string) slog.Handler {
	derived := make(Fanout, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithGroup(name)
	}
	return derived
}
