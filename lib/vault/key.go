// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/custodyworks/custody/lib/secret"
)

// KeyBytes is the amount of randomness in a generated key.
const KeyBytes = 48

// Key is the archive passphrase.
type Key struct {
	passphrase *secret.Buffer
}

// GenerateKey draws KeyBytes of randomness and base64 encodes them.
// The raw bytes never leave locked memory.
func GenerateKey() (*Key, error) {
	raw, err := secret.NewRandom(KeyBytes)
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	defer raw.Close()

	encoded, err := raw.EncodeBase64()
	if err != nil {
		return nil, fmt.Errorf("encoding key: %w", err)
	}
	return &Key{passphrase: encoded}, nil
}

// Passphrase returns the key text. The slice is only valid until
// Close.
func (k *Key) Passphrase() []byte {
	return k.passphrase.Bytes()
}

// Close zeroes the key.
func (k *Key) Close() error {
	if k == nil || k.passphrase == nil {
		return nil
	}
	return k.passphrase.Close()
}

// String never reveals the key.
func (k *Key) String() string {
	return "[REDACTED]"
}

// LogValue keeps the key out of structured logs.
func (k *Key) LogValue() slog.Value {
	return slog.StringValue("[REDACTED]")
}

// Banner is the commentary written above the key line.
type Banner struct {
	// Archive is the encrypted archive's file name.
	Archive string

	Cipher     Cipher
	Iterations int
}

func (b Banner) lines(keyFile string) []string {
	plaintext := strings.TrimSuffix(b.Archive, ".enc")
	lines := []string{
		"WARNING: this key decrypts evidence archive " + b.Archive + ".",
		"Anyone holding it can read the evidence. Store it apart from the archive.",
		"Cipher: " + string(b.Cipher),
	}
	switch b.Cipher {
	case CipherAge:
		lines = append(lines,
			"Decrypt: age -d -o "+plaintext+" "+b.Archive+" (enter the key line as the passphrase)")
	default:
		lines = append(lines,
			fmt.Sprintf("KDF: PBKDF2-HMAC-SHA256, %d iterations", b.Iterations),
			fmt.Sprintf("Decrypt: openssl enc -d -aes-256-cbc -pbkdf2 -iter %d -md sha256 -in %s -out %s -pass \"pass:$(grep -v '^#' %s)\"",
				b.Iterations, b.Archive, plaintext, keyFile))
	}
	return lines
}

// PersistKey writes the key file: "#" banner lines, then the key on a
// line of its own. The file must not already exist and is created
// owner read/write only.
func PersistKey(key *Key, path string, banner Banner) (err error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("creating key file: %w", err)
	}
	defer func() {
		if err != nil {
			file.Close()
			os.Remove(path)
		}
	}()
	// The umask cannot widen 0600, but an inherited ACL default can.
	if err := file.Chmod(0o600); err != nil {
		return fmt.Errorf("restricting key file: %w", err)
	}

	writer := bufio.NewWriter(file)
	for _, line := range banner.lines(filepath.Base(path)) {
		writer.WriteString("# " + line + "\n")
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}
	if _, err := key.passphrase.WriteTo(file); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}
	if _, err := file.WriteString("\n"); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("syncing key file: %w", err)
	}
	return file.Close()
}

// KeyFile is a parsed key file.
type KeyFile struct {
	Key *Key

	// Cipher and Iterations are recovered from the banner; zero when
	// the banner does not state them.
	Cipher     Cipher
	Iterations int
}

// ErrNoKey is returned for a key file without a key line.
var ErrNoKey = errors.New("key file has no key line")

// ReadKeyFile loads a key file written by PersistKey. The first line
// that is neither blank nor a "#" comment is the passphrase.
func ReadKeyFile(path string) (*KeyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	defer secret.Zero(data)

	result := &KeyFile{}
	for line := range bytes.Lines(data) {
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 {
			continue
		}
		if comment, ok := bytes.CutPrefix(trimmed, []byte("#")); ok {
			result.parseComment(strings.TrimSpace(string(comment)))
			continue
		}
		passphrase, err := secret.NewFromBytes(trimmed)
		if err != nil {
			return nil, fmt.Errorf("loading key: %w", err)
		}
		result.Key = &Key{passphrase: passphrase}
		return result, nil
	}
	return nil, ErrNoKey
}

func (k *KeyFile) parseComment(comment string) {
	if value, ok := strings.CutPrefix(comment, "Cipher: "); ok {
		k.Cipher = Cipher(value)
		return
	}
	if value, ok := strings.CutPrefix(comment, "KDF: PBKDF2-HMAC-SHA256, "); ok {
		count, _, _ := strings.Cut(value, " ")
		if iterations, err := strconv.Atoi(count); err == nil {
			k.Iterations = iterations
		}
	}
}
