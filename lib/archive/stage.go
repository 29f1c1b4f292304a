// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// StagingPrefix begins every staging directory name.
const StagingPrefix = "staging_"

// ExcludePatterns are globs for workspace-root files left out of the
// staging copy. Entries below the root are always staged.
var ExcludePatterns = []string{
	"*.tar",
	"*.tar.gz",
	"*.tgz",
	"*.enc",
	"decryption_key_*",
	"acquisition.log",
}

// Builder stages and packs workspaces. Remove deletes partial output
// on failure; nil means os.RemoveAll.
type Builder struct {
	Remove func(path string) error
}

func (b Builder) remove(path string) {
	if b.Remove != nil {
		if err := b.Remove(path); err == nil {
			return
		}
	}
	os.RemoveAll(path)
}

// Excluded reports whether a workspace entry stays out of the archive.
// relative is the slash-separated path from the workspace root; only
// top-level entries are ever excluded.
func Excluded(relative string, isDir bool) bool {
	if strings.Contains(relative, "/") {
		return false
	}
	name := relative
	if isDir {
		return strings.HasPrefix(name, StagingPrefix)
	}
	for _, pattern := range ExcludePatterns {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}

// Stage copies workspace into workspace/name and returns the staging
// path. Regular files are copied and fsynced with their modification
// times, symlinks are recreated, and other file types are skipped. On
// failure the staging directory is removed.
func (b Builder) Stage(ctx context.Context, workspace, name string) (staging string, err error) {
	if !strings.HasPrefix(name, StagingPrefix) {
		return "", fmt.Errorf("staging directory %q must start with %q", name, StagingPrefix)
	}
	staging = filepath.Join(workspace, name)
	if _, statErr := os.Lstat(staging); statErr == nil {
		b.remove(staging)
	}
	if err := os.Mkdir(staging, 0o700); err != nil {
		return "", fmt.Errorf("creating staging directory: %w", err)
	}
	defer func() {
		if err != nil {
			b.remove(staging)
		}
	}()

	err = filepath.WalkDir(workspace, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == workspace {
			return nil
		}
		relative, err := filepath.Rel(workspace, path)
		if err != nil {
			return err
		}
		if Excluded(filepath.ToSlash(relative), entry.IsDir()) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := filepath.Join(staging, relative)

		switch {
		case entry.IsDir():
			return os.Mkdir(target, 0o755)
		case entry.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case entry.Type().IsRegular():
			return copyFile(path, target)
		default:
			return nil
		}
	})
	if err != nil {
		return "", fmt.Errorf("staging %s: %w", workspace, err)
	}
	return staging, nil
}

// copyFile copies src to dst with fsync, keeping the permission bits
// and modification time.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}

	_, copyErr := io.Copy(out, in)
	syncErr := out.Sync()
	closeErr := out.Close()

	if copyErr != nil {
		return copyErr
	}
	if syncErr != nil {
		return syncErr
	}
	if closeErr != nil {
		return closeErr
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
