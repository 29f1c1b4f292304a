// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package acquire

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"
)

// ErrUnsafePath is returned for archive members that would land
// outside the extraction directory.
var ErrUnsafePath = errors.New("archive member escapes extraction directory")

// ExtractTar unpacks a tar stream into directory and returns the
// number of regular files written. All writes go through an os.Root,
// so neither "../" names nor symlinks planted by earlier members can
// reach outside directory. Device nodes, fifos and the like are
// skipped. Modification times are preserved.
func ExtractTar(reader io.Reader, directory string) (int, error) {
	root, err := os.OpenRoot(directory)
	if err != nil {
		return 0, err
	}
	defer root.Close()

	archive := tar.NewReader(reader)
	files := 0
	for {
		header, err := archive.Next()
		if errors.Is(err, io.EOF) {
			return files, nil
		}
		if err != nil {
			return files, fmt.Errorf("reading archive: %w", err)
		}

		name := path.Clean(header.Name)
		if name == "." {
			continue
		}
		if !filepath.IsLocal(filepath.FromSlash(name)) {
			return files, fmt.Errorf("%w: %s", ErrUnsafePath, header.Name)
		}
		local := filepath.FromSlash(name)

		switch header.Typeflag {
		case tar.TypeDir:
			if err := root.MkdirAll(local, 0o755); err != nil {
				return files, fmt.Errorf("creating %s: %w", name, err)
			}
		case tar.TypeReg:
			if err := extractFile(root, local, header, archive); err != nil {
				return files, err
			}
			files++
		case tar.TypeSymlink:
			if err := ensureParent(root, local); err != nil {
				return files, err
			}
			if err := root.Symlink(header.Linkname, local); err != nil && !errors.Is(err, fs.ErrExist) {
				return files, fmt.Errorf("creating symlink %s: %w", name, err)
			}
		default:
			continue
		}
	}
}

func ensureParent(root *os.Root, local string) error {
	parent := filepath.Dir(local)
	if parent == "." {
		return nil
	}
	if err := root.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", parent, err)
	}
	return nil
}

func extractFile(root *os.Root, local string, header *tar.Header, content io.Reader) error {
	if err := ensureParent(root, local); err != nil {
		return err
	}
	file, err := root.OpenFile(local, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", local, err)
	}
	if _, err := io.Copy(file, content); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", local, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", local, err)
	}
	if !header.ModTime.IsZero() {
		modified := header.ModTime.Truncate(time.Second)
		root.Chtimes(local, modified, modified)
	}
	return nil
}
