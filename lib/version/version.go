// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

// Package version identifies the build of the custody binary. [Tool]
// is written into every metadata.json so an auditor can tell which
// build sealed an artifact.
//
// Release builds inject the commit via -ldflags:
//
//	go build -ldflags "-X github.com/custodyworks/custody/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// When the flag is absent the VCS stamp embedded by the Go toolchain
// is used instead, if there is one.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// Version is the semantic version. It is set by hand for releases.
const Version = "0.3.0-dev"

// Set via -ldflags.
var (
	GitCommit = ""
	BuildTime = ""
)

type build struct {
	commit string
	dirty  bool
	time   string
}

var current = sync.OnceValue(func() build {
	result := build{commit: GitCommit, time: BuildTime}
	if result.commit != "" {
		return result
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return result
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			result.commit = shortCommit(setting.Value)
		case "vcs.modified":
			result.dirty = setting.Value == "true"
		case "vcs.time":
			if result.time == "" {
				result.time = setting.Value
			}
		}
	}
	return result
})

func shortCommit(revision string) string {
	return revision[:min(len(revision), 12)]
}

// Tool returns the identifier recorded in case metadata, e.g.
// "custody/0.3.0-dev+1a2b3c4d5e6f". The commit suffix is omitted when
// unknown and marked "-dirty" for builds from a modified tree.
func Tool() string {
	return tool(current())
}

func tool(b build) string {
	identifier := "custody/" + Version
	if b.commit == "" {
		return identifier
	}
	identifier += "+" + b.commit
	if b.dirty {
		identifier += "-dirty"
	}
	return identifier
}

// Info is the one-line --version output.
func Info() string {
	b := current()
	built := b.time
	if built == "" {
		built = "unknown build time"
	}
	return fmt.Sprintf("%s (%s)", tool(b), built)
}

// Full adds the Go toolchain and platform to Info.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
