// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Runner executes a host binary. Run returns the process exit status;
// err is non-nil only when the process could not be started or was
// interrupted by ctx.
type Runner interface {
	Run(ctx context.Context, stdout io.Writer, name string, args ...string) (exitStatus int, stderr string, err error)
}

// ExecRunner runs binaries with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, stdout io.Writer, name string, args ...string) (int, string, error) {
	var stderr bytes.Buffer
	command := exec.CommandContext(ctx, name, args...)
	command.Stdout = stdout
	command.Stderr = &stderr

	err := command.Run()
	stderrText := strings.TrimSpace(stderr.String())
	if err == nil {
		return 0, stderrText, nil
	}
	if ctx.Err() != nil {
		return -1, stderrText, ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), stderrText, nil
	}
	return -1, stderrText, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
}

// ADB implements Link by driving the adb binary. Every invocation
// targets one device via "adb -s <serial>".
type ADB struct {
	runner Runner
	binary string
	serial string
}

// NewADB returns an ADB link for the device with the given serial.
// binary is the adb path resolved by the caller.
func NewADB(runner Runner, binary, serial string) *ADB {
	return &ADB{runner: runner, binary: binary, serial: serial}
}

func (a *ADB) Serial() string {
	return a.serial
}

func (a *ADB) run(ctx context.Context, stdout io.Writer, args ...string) (int, string, error) {
	fullArgs := append([]string{"-s", a.serial}, args...)
	return a.runner.Run(ctx, stdout, a.binary, fullArgs...)
}

func (a *ADB) Shell(ctx context.Context, args ...string) ShellResult {
	var stdout bytes.Buffer
	exitStatus, stderr, err := a.run(ctx, &stdout, "shell", QuoteArgs(args))
	result := ShellResult{Stdout: stdout.String(), ExitStatus: exitStatus}

	command := strings.Join(args, " ")
	switch {
	case err != nil:
		result.Outcome = Failed(command, err)
	case exitStatus != 0:
		result.Outcome = Failed(command, fmt.Errorf("exit status %d (stderr: %s)", exitStatus, stderr))
	default:
		result.Outcome = Succeeded(command)
	}
	return result
}

func (a *ADB) Stream(ctx context.Context, w io.Writer, args ...string) Outcome {
	counter := &countingWriter{w: w}
	exitStatus, stderr, err := a.run(ctx, counter, "exec-out", QuoteArgs(args))

	command := strings.Join(args, " ")
	switch {
	case err != nil:
		return Failed(command, err)
	case exitStatus != 0:
		return Failed(command, fmt.Errorf("exit status %d after %d bytes (stderr: %s)", exitStatus, counter.n, stderr))
	default:
		return Succeeded(fmt.Sprintf("%s: %d bytes", command, counter.n))
	}
}

// Pull copies remote to local. adb exits non-zero when any file in a
// directory pull is unreadable; if anything landed locally the pull is
// PARTIAL rather than FAILED.
func (a *ADB) Pull(ctx context.Context, remote, local string) Outcome {
	exitStatus, stderr, err := a.run(ctx, io.Discard, "pull", "-a", remote, local)
	switch {
	case err != nil:
		return Failed(remote, err)
	case exitStatus != 0:
		cause := fmt.Errorf("adb pull exit status %d (stderr: %s)", exitStatus, stderr)
		if hasContent(local) {
			return Partial(remote, cause)
		}
		return Failed(remote, cause)
	default:
		return Succeeded(remote)
	}
}

func (a *ADB) RequestBackup(ctx context.Context, local string) Outcome {
	exitStatus, stderr, err := a.run(ctx, io.Discard, "backup", "-all", "-apk", "-shared", "-f", local)
	if err != nil {
		return Failed("adb backup", err)
	}
	if exitStatus != 0 {
		return Failed("adb backup", fmt.Errorf("exit status %d (stderr: %s)", exitStatus, stderr))
	}
	return CheckBackup(local)
}

func (a *ADB) IsRooted(ctx context.Context) bool {
	return IsRooted(ctx, a)
}

// hasContent reports whether path exists and is a non-empty file or
// a directory with at least one entry.
func hasContent(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if !info.IsDir() {
		return info.Size() > 0
	}
	entries, err := os.ReadDir(path)
	return err == nil && len(entries) > 0
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
