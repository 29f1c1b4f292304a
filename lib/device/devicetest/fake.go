// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

// Package devicetest provides an in-memory device.Link for tests.
package devicetest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodyworks/custody/lib/device"
)

// Response is a canned shell result.
type Response struct {
	Stdout     string
	ExitStatus int
}

// Fake is a device.Link backed by maps. Commands are keyed by their
// arguments joined with single spaces. Unknown shell commands exit
// 127 and unknown streams fail. Fields must be populated before the
// Fake is shared between goroutines.
type Fake struct {
	SerialNumber string
	Rooted       bool

	// Shells maps a command to its response.
	Shells map[string]Response

	// Streams maps a command to the bytes it writes.
	Streams map[string][]byte

	// Remote maps a remote directory to its files, keyed by path
	// relative to that directory.
	Remote map[string]map[string]string

	// Backup is written by RequestBackup. Nil leaves an empty file,
	// as adb does when the request is declined.
	Backup []byte

	mu    sync.Mutex
	calls []string
}

// Calls returns every command issued, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *Fake) record(kind string, args ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, kind+" "+strings.Join(args, " "))
}

func (f *Fake) Serial() string {
	return f.SerialNumber
}

func (f *Fake) Shell(ctx context.Context, args ...string) device.ShellResult {
	f.record("shell", args...)
	if err := ctx.Err(); err != nil {
		return device.ShellResult{ExitStatus: -1, Outcome: device.Failed("shell", err)}
	}
	command := strings.Join(args, " ")
	if command == "su -c id" && f.Rooted {
		return device.ShellResult{Stdout: "uid=0(root) gid=0(root)\n", Outcome: device.Succeeded(command)}
	}
	response, ok := f.Shells[command]
	if !ok {
		response = Response{ExitStatus: 127}
	}
	result := device.ShellResult{Stdout: response.Stdout, ExitStatus: response.ExitStatus}
	if response.ExitStatus != 0 {
		result.Outcome = device.Failed(command, fmt.Errorf("exit status %d", response.ExitStatus))
	} else {
		result.Outcome = device.Succeeded(command)
	}
	return result
}

func (f *Fake) Stream(ctx context.Context, w io.Writer, args ...string) device.Outcome {
	f.record("stream", args...)
	if err := ctx.Err(); err != nil {
		return device.Failed("stream", err)
	}
	command := strings.Join(args, " ")
	data, ok := f.Streams[command]
	if !ok {
		return device.Failed(command, errors.New("exit status 1"))
	}
	if _, err := w.Write(data); err != nil {
		return device.Failed(command, err)
	}
	return device.Succeeded(command)
}

// Pull mirrors adb: pulling /sdcard into an existing directory
// creates <local>/sdcard.
func (f *Fake) Pull(ctx context.Context, remote, local string) device.Outcome {
	f.record("pull", remote, local)
	if err := ctx.Err(); err != nil {
		return device.Failed(remote, err)
	}
	files, ok := f.Remote[remote]
	if !ok {
		return device.Failed(remote, fmt.Errorf("remote object '%s' does not exist", remote))
	}
	target := filepath.Join(local, path.Base(remote))
	for relative, content := range files {
		destination := filepath.Join(target, filepath.FromSlash(relative))
		if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
			return device.Failed(remote, err)
		}
		if err := os.WriteFile(destination, []byte(content), 0o644); err != nil {
			return device.Failed(remote, err)
		}
	}
	return device.Succeeded(remote)
}

func (f *Fake) RequestBackup(ctx context.Context, local string) device.Outcome {
	f.record("backup", local)
	if err := ctx.Err(); err != nil {
		return device.Failed("backup", err)
	}
	if err := os.WriteFile(local, f.Backup, 0o644); err != nil {
		return device.Failed("backup", err)
	}
	return device.CheckBackup(local)
}

func (f *Fake) IsRooted(ctx context.Context) bool {
	return device.IsRooted(ctx, f)
}

var _ device.Link = (*Fake)(nil)
