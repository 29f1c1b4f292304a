// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
)

// Pack writes staging as a tar.gz at output. output must not exist.
// On failure both the partial output and the staging directory are
// removed.
func (b Builder) Pack(ctx context.Context, staging, output string) (err error) {
	file, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		b.remove(staging)
		return fmt.Errorf("creating archive: %w", err)
	}
	defer func() {
		if err != nil {
			file.Close()
			b.remove(output)
			b.remove(staging)
		}
	}()

	compressor, err := gzip.NewWriterLevel(file, gzip.DefaultCompression)
	if err != nil {
		return err
	}
	archive := tar.NewWriter(compressor)

	err = filepath.WalkDir(staging, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == staging {
			return nil
		}
		relative, err := filepath.Rel(staging, path)
		if err != nil {
			return err
		}
		return addMember(archive, path, filepath.ToSlash(relative), entry)
	})
	if err != nil {
		return fmt.Errorf("packing %s: %w", staging, err)
	}

	if err := archive.Close(); err != nil {
		return fmt.Errorf("finishing tar: %w", err)
	}
	if err := compressor.Close(); err != nil {
		return fmt.Errorf("finishing gzip: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("syncing archive: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}
	return nil
}

func addMember(archive *tar.Writer, path, name string, entry fs.DirEntry) error {
	info, err := entry.Info()
	if err != nil {
		return err
	}
	var link string
	if info.Mode()&fs.ModeSymlink != 0 {
		if link, err = os.Readlink(path); err != nil {
			return err
		}
	} else if !info.Mode().IsRegular() && !info.IsDir() {
		return nil
	}

	header, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	header.Name = name
	if info.IsDir() {
		header.Name += "/"
	}
	header.Uid, header.Gid = 0, 0
	header.Uname, header.Gname = "", ""
	header.ModTime = info.ModTime().Truncate(time.Second)
	header.AccessTime, header.ChangeTime = time.Time{}, time.Time{}
	header.PAXRecords = nil

	if err := archive.WriteHeader(header); err != nil {
		return fmt.Errorf("writing header for %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		return nil
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := io.Copy(archive, file); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// HashMembers reads a tar.gz stream and returns the SHA-256 of every
// regular member, keyed by member name.
func HashMembers(reader io.Reader) (map[string]string, error) {
	decompressor, err := gzip.NewReader(reader)
	if err != nil {
		return nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer decompressor.Close()

	digests := make(map[string]string)
	archive := tar.NewReader(decompressor)
	for {
		header, err := archive.Next()
		if errors.Is(err, io.EOF) {
			return digests, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading archive: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		hash := sha256.New()
		if _, err := io.Copy(hash, archive); err != nil {
			return nil, fmt.Errorf("reading %s: %w", header.Name, err)
		}
		digests[header.Name] = hex.EncodeToString(hash.Sum(nil))
	}
}
