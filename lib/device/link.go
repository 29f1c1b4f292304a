// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"context"
	"io"
	"strings"
)

// ShellResult is the result of a remote shell command. ExitStatus is
// -1 when the command could not be run at all.
type ShellResult struct {
	Stdout     string
	ExitStatus int
	Outcome    Outcome
}

// Link is the capability surface the acquisition pipeline needs from
// a device. Implementations must be safe for concurrent use.
type Link interface {
	// Serial returns the device identifier.
	Serial() string

	// Shell runs a command in the device shell and captures stdout.
	Shell(ctx context.Context, args ...string) ShellResult

	// Stream runs a command on the device and copies its raw binary
	// stdout to w.
	Stream(ctx context.Context, w io.Writer, args ...string) Outcome

	// Pull copies a remote file or directory to local.
	Pull(ctx context.Context, remote, local string) Outcome

	// RequestBackup asks the device for a full backup written to
	// local. The device owner may decline.
	RequestBackup(ctx context.Context, local string) Outcome

	// IsRooted reports whether a root-equivalent identity is
	// available through su.
	IsRooted(ctx context.Context) bool
}

// QuoteArgs single-quotes each argument for a POSIX shell and joins
// them with spaces.
func QuoteArgs(args []string) string {
	quoted := make([]string, len(args))
	for index, arg := range args {
		quoted[index] = "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
	}
	return strings.Join(quoted, " ")
}

// Model returns ro.product.model, or "unknown" when the property
// cannot be read.
func Model(ctx context.Context, link Link) string {
	result := link.Shell(ctx, "getprop", "ro.product.model")
	model := strings.TrimSpace(result.Stdout)
	if !result.Outcome.OK() || model == "" {
		return "unknown"
	}
	return model
}

// IsRooted runs "su -c id" and looks for uid 0. Shared by Link
// implementations.
func IsRooted(ctx context.Context, link Link) bool {
	result := link.Shell(ctx, "su", "-c", "id")
	return result.Outcome.OK() && strings.Contains(result.Stdout, "uid=0")
}
