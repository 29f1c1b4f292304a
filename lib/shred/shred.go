// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package shred

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	mathrand "math/rand/v2"
	"os"
	"path/filepath"
)

// Shredder removes a file or directory tree.
type Shredder interface {
	Name() string

	// Remove destroys path. Symlinks are removed, never followed. A
	// missing path is not an error.
	Remove(path string) error
}

// Plain unlinks without overwriting.
type Plain struct{}

func (Plain) Name() string { return "plain" }

func (Plain) Remove(path string) error {
	return os.RemoveAll(path)
}

// Overwrite writes Passes rounds of random data over every regular
// file, syncing after each, before unlinking. A file that cannot be
// overwritten is still removed.
type Overwrite struct {
	Passes int

	// Logger receives a warning for each file that fell back to plain
	// removal. Nil discards.
	Logger *slog.Logger
}

func (o Overwrite) Name() string { return "overwrite" }

func (o Overwrite) Remove(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	if info.IsDir() {
		walkErr := filepath.WalkDir(path, func(current string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if entry.Type().IsRegular() {
				o.overwriteOrWarn(current)
			}
			return nil
		})
		if walkErr != nil {
			o.warn(path, walkErr)
		}
		return os.RemoveAll(path)
	}

	if info.Mode().IsRegular() {
		o.overwriteOrWarn(path)
	}
	return os.Remove(path)
}

func (o Overwrite) overwriteOrWarn(path string) {
	if err := overwriteFile(path, max(o.Passes, 1)); err != nil {
		o.warn(path, err)
	}
}

func (o Overwrite) warn(path string, err error) {
	if o.Logger != nil {
		o.Logger.Warn("overwrite failed, removing without overwrite", "path", path, "error", err)
	}
}

// overwriteFile rewrites the full length of path in place.
func overwriteFile(path string, passes int) error {
	file, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	size := info.Size()

	var seed [32]byte
	for range passes {
		if _, err := rand.Read(seed[:]); err != nil {
			return err
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return err
		}
		// ChaCha8 keyed from crypto/rand; the stream only has to be
		// unpredictable, and images run to gigabytes.
		noise := mathrand.NewChaCha8(seed)
		if _, err := io.CopyN(file, noise, size); err != nil {
			return fmt.Errorf("pass over %s: %w", path, err)
		}
		if err := file.Sync(); err != nil {
			return err
		}
	}
	return nil
}

// Modes accepted by Probe.
const (
	ModeAuto      = "auto"
	ModeOverwrite = "overwrite"
	ModePlain     = "plain"
)

const probeName = ".custody-shred-probe"

// Probe chooses a shredder for dir. ModeAuto writes a probe file in
// dir and keeps Overwrite only if the probe can be overwritten and
// removed.
func Probe(dir, mode string, passes int, logger *slog.Logger) (Shredder, error) {
	overwrite := Overwrite{Passes: passes, Logger: logger}
	switch mode {
	case ModePlain:
		return Plain{}, nil
	case ModeOverwrite:
		return overwrite, nil
	case ModeAuto, "":
	default:
		return nil, fmt.Errorf("unknown secure delete mode %q", mode)
	}

	path := filepath.Join(dir, probeName)
	if err := os.WriteFile(path, make([]byte, 4096), 0o600); err != nil {
		return nil, fmt.Errorf("writing shred probe: %w", err)
	}
	if err := overwriteFile(path, 1); err != nil {
		os.Remove(path)
		if logger != nil {
			logger.Warn("overwrite unavailable, using plain removal", "dir", dir, "error", err)
		}
		return Plain{}, nil
	}
	if err := os.Remove(path); err != nil {
		return nil, fmt.Errorf("removing shred probe: %w", err)
	}
	return overwrite, nil
}
