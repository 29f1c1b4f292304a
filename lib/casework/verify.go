// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package casework

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/custodyworks/custody/lib/archive"
	"github.com/custodyworks/custody/lib/casefile"
	"github.com/custodyworks/custody/lib/custody"
	"github.com/custodyworks/custody/lib/ledger"
	"github.com/custodyworks/custody/lib/vault"
)

// Verification is the result of checking a sealed workspace.
type Verification struct {
	Encrypted string
	KeyFile   string

	// Checked counts the ledger entries compared against the
	// decrypted archive.
	Checked int

	// Mismatched and Missing name ledger paths whose archived copy
	// differs or is absent.
	Mismatched []string
	Missing    []string
}

// OK reports whether every archived file matched its ledger entry.
func (v *Verification) OK() bool {
	return len(v.Mismatched) == 0 && len(v.Missing) == 0
}

// Verify checks a sealed workspace: the final ledger entry must match
// the encrypted archive, metadata.json must count the remaining
// entries, and every one of them must match the decrypted archive.
// iterations is used when the key file does not record its own.
func Verify(ctx context.Context, workspace string, iterations int) (*Verification, error) {
	encrypted, err := single(workspace, "evidence_*.tar.gz.enc")
	if err != nil {
		return nil, fatal(KindVerify, err)
	}
	keyPath, err := single(workspace, "decryption_key_*.txt")
	if err != nil {
		return nil, fatal(KindVerify, err)
	}
	result := &Verification{Encrypted: encrypted, KeyFile: keyPath}

	entries, err := ledger.ReadFile(filepath.Join(workspace, casefile.LedgerFile))
	if err != nil {
		return nil, fatal(KindVerify, err)
	}
	if len(entries) == 0 {
		return nil, fatal(KindVerify, fmt.Errorf("%s is empty", casefile.LedgerFile))
	}
	final, snapshot := entries[len(entries)-1], entries[:len(entries)-1]
	if final.Path != filepath.Base(encrypted) {
		return nil, fatal(KindVerify, fmt.Errorf("final ledger entry names %s, want %s", final.Path, filepath.Base(encrypted)))
	}
	digest, err := ledger.HashFile(encrypted)
	if err != nil {
		return nil, fatal(KindVerify, err)
	}
	if digest != final.Digest {
		return nil, fatal(KindVerify, fmt.Errorf("encrypted archive sha256 %s does not match ledger %s", digest, final.Digest))
	}

	metadata, err := custody.ReadMetadata(filepath.Join(workspace, casefile.MetadataFile))
	if err != nil {
		return nil, fatal(KindVerify, err)
	}
	if metadata.TotalHashedFiles != len(snapshot) {
		return nil, fatal(KindVerify, fmt.Errorf("metadata counts %d files, ledger holds %d", metadata.TotalHashedFiles, len(snapshot)))
	}

	keyFile, err := vault.ReadKeyFile(keyPath)
	if err != nil {
		return nil, fatal(KindVerify, err)
	}
	defer keyFile.Key.Close()
	if keyFile.Iterations > 0 {
		iterations = keyFile.Iterations
	}

	members, err := decryptMembers(ctx, encrypted, keyFile.Key, iterations)
	if err != nil {
		return nil, fatal(KindVerify, err)
	}
	for _, entry := range snapshot {
		archived, ok := members[entry.Path]
		switch {
		case !ok:
			result.Missing = append(result.Missing, entry.Path)
		case archived != entry.Digest:
			result.Mismatched = append(result.Mismatched, entry.Path)
		}
		result.Checked++
	}
	if !result.OK() {
		return result, fatal(KindVerify, fmt.Errorf("%d mismatched, %d missing", len(result.Mismatched), len(result.Missing)))
	}
	return result, nil
}

// decryptMembers streams the decrypted archive straight into the tar
// hasher; no plaintext touches the disk.
func decryptMembers(ctx context.Context, encrypted string, key *vault.Key, iterations int) (map[string]string, error) {
	reader, writer := io.Pipe()
	var members map[string]string

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		err := vault.Decrypt(ctx, encrypted, writer, key, iterations)
		writer.CloseWithError(err)
		return err
	})
	group.Go(func() error {
		var err error
		members, err = archive.HashMembers(reader)
		if err == nil {
			// Drain the gzip trailer padding so the decryptor can finish.
			_, err = io.Copy(io.Discard, reader)
		}
		reader.CloseWithError(err)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return members, nil
}

func single(workspace, pattern string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(workspace, pattern))
	if err != nil {
		return "", err
	}
	if len(matches) != 1 {
		return "", fmt.Errorf("want exactly one %s in %s, found %d: %s", pattern, workspace, len(matches), strings.Join(matches, ", "))
	}
	return matches[0], nil
}
