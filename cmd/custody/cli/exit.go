// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"

	"github.com/custodyworks/custody/lib/process"
)

// ExitError signals a non-zero exit code without printing an extra
// error message. When a command handler returns an ExitError, main
// exits with the specified code without printing the error string: the
// command is expected to have already written its own output.
//
// This is for commands where a non-zero exit is a valid outcome rather
// than an unexpected error. "custody verify" returns 1 after printing
// its MISMATCH and MISSING lines; an extra "error: exit code 1" would
// only bury the report an auditor needs to read.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the exit code. main checks for an *ExitError in the
// returned chain to distinguish "handled non-zero exit" from
// "unexpected error to display".
func (e *ExitError) ExitCode() int {
	return e.Code
}

// usageErrorf builds an error for a bad invocation. main maps it to
// process.ExitUsage so scripts can tell a typo from a failed
// acquisition.
func usageErrorf(format string, args ...any) error {
	return &process.UsageError{Err: fmt.Errorf(format, args...)}
}
