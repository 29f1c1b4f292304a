// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zeebo/blake3"
)

// DefaultExcludes are globs for workspace-root files never hashed:
// outputs of the sealing steps, which may linger from an interrupted
// earlier run. They apply to top-level entries only; acquired evidence
// deeper in the tree is hashed whatever its name.
var DefaultExcludes = []string{
	"*.enc",
	"decryption_key_*",
	"hashes.txt",
	"metadata.json",
	"acquisition.log",
	"evidence_*.tar*",
	"custody_report.md",
	"custody_report.html",
	"custody_record.cbor",
}

// StagingPrefix names directories built by the archive step. They are
// skipped wholesale.
const StagingPrefix = "staging_"

// ErrFinalized is returned by a second AppendFinal.
var ErrFinalized = errors.New("ledger already has its final entry")

// Entry is one ledger line.
type Entry struct {
	Path   string
	Digest string
}

// Line formats the entry as it appears in hashes.txt.
func (e Entry) Line() string {
	return e.Digest + "  " + e.Path
}

// HashFile returns the hex SHA-256 of a file's contents.
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// HashAll hashes every regular file under root in lexical walk order.
// Top-level files whose name matches an exclude glob, top-level
// staging directories and non-regular files (symlinks, devices,
// sockets) are skipped. ctx is checked between files.
func HashAll(ctx context.Context, root string, excludes []string) ([]Entry, error) {
	for _, pattern := range excludes {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("exclude pattern %q: %w", pattern, err)
		}
	}

	var entries []Entry
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			return nil
		}
		relative, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relative = filepath.ToSlash(relative)
		topLevel := !strings.Contains(relative, "/")
		if entry.IsDir() {
			if topLevel && strings.HasPrefix(entry.Name(), StagingPrefix) {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() || (topLevel && excluded(entry.Name(), excludes)) {
			return nil
		}

		digest, err := HashFile(path)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{Path: relative, Digest: digest})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("hashing workspace %s: %w", root, err)
	}
	return entries, nil
}

func excluded(name string, excludes []string) bool {
	for _, pattern := range excludes {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}

// Ledger is the durable ledger file plus its in-memory entries.
type Ledger struct {
	path string

	mu        sync.Mutex
	entries   []Entry
	snapshot  int
	digest    string
	finalized bool
}

// Create writes entries to path, replacing any ledger an interrupted
// earlier run left behind, and fsyncs it.
func Create(path string, entries []Entry) (*Ledger, error) {
	content := Format(entries)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating ledger %s: %w", path, err)
	}
	if _, err := file.Write(content); err != nil {
		file.Close()
		return nil, fmt.Errorf("writing ledger %s: %w", path, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return nil, fmt.Errorf("syncing ledger %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("closing ledger %s: %w", path, err)
	}

	digest := blake3.Sum256(content)
	return &Ledger{
		path:     path,
		entries:  append([]Entry(nil), entries...),
		snapshot: len(entries),
		digest:   hex.EncodeToString(digest[:]),
	}, nil
}

// Path returns the ledger file path.
func (l *Ledger) Path() string {
	return l.path
}

// Entries returns a copy of the current entries.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// SnapshotLen is the number of entries written by Create, which is the
// hashed-file count reported in the metadata record.
func (l *Ledger) SnapshotLen() int {
	return l.snapshot
}

// Digest is the BLAKE3-256 of the ledger file as written by Create.
func (l *Ledger) Digest() string {
	return l.digest
}

// AppendFinal appends the single post-encryption entry with O_APPEND
// and fsyncs. It can succeed at most once.
func (l *Ledger) AppendFinal(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.finalized {
		return ErrFinalized
	}
	if err := validate(entry); err != nil {
		return err
	}

	file, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return fmt.Errorf("opening ledger %s: %w", l.path, err)
	}
	if _, err := file.WriteString(entry.Line() + "\n"); err != nil {
		file.Close()
		return fmt.Errorf("appending to ledger %s: %w", l.path, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("syncing ledger %s: %w", l.path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing ledger %s: %w", l.path, err)
	}

	l.entries = append(l.entries, entry)
	l.finalized = true
	return nil
}

// Format renders entries as ledger file content.
func Format(entries []Entry) []byte {
	var buffer bytes.Buffer
	for _, entry := range entries {
		buffer.WriteString(entry.Line())
		buffer.WriteByte('\n')
	}
	return buffer.Bytes()
}

// ReadFile parses a ledger file.
func ReadFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads ledger lines. Blank lines are ignored.
func Parse(reader io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		digest, path, found := strings.Cut(line, "  ")
		if !found {
			return nil, fmt.Errorf("ledger line %d: missing separator", lineNumber)
		}
		entry := Entry{Path: path, Digest: digest}
		if err := validate(entry); err != nil {
			return nil, fmt.Errorf("ledger line %d: %w", lineNumber, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func validate(entry Entry) error {
	if len(entry.Digest) != sha256.Size*2 {
		return fmt.Errorf("digest %q is not a SHA-256 hex string", entry.Digest)
	}
	if _, err := hex.DecodeString(entry.Digest); err != nil {
		return fmt.Errorf("digest %q is not a SHA-256 hex string", entry.Digest)
	}
	if entry.Path == "" || strings.ContainsAny(entry.Path, "\n") {
		return fmt.Errorf("invalid ledger path %q", entry.Path)
	}
	return nil
}
