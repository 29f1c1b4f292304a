// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
)

// Exit codes. Anything non-zero means the run cannot be certified.
const (
	ExitOK    = 0
	ExitFatal = 1
	ExitUsage = 2
)

// UsageError marks errors caused by bad invocation rather than by the
// acquisition itself.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }
func (e *UsageError) Unwrap() error { return e.Err }

// Code maps err to an exit code.
func Code(err error) int {
	if err == nil {
		return ExitOK
	}
	var usage *UsageError
	if errors.As(err, &usage) {
		return ExitUsage
	}
	return ExitFatal
}

// Report writes "error: err" to w and returns the exit code for err.
func Report(w io.Writer, err error) int {
	if err == nil {
		return ExitOK
	}
	fmt.Fprintf(w, "error: %v\n", err)
	return Code(err)
}
