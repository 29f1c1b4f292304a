// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// Cipher names an archive encryption scheme.
type Cipher string

const (
	CipherOpenSSL Cipher = "openssl-aes-256-cbc"
	CipherAge     Cipher = "age-scrypt"
)

// MinIterations is the lowest PBKDF2 iteration count used.
const MinIterations = 200000

// ErrEmptyOutput is returned when encryption leaves no ciphertext.
var ErrEmptyOutput = errors.New("encrypted archive is missing or empty")

// Vault encrypts archives with one cipher.
type Vault struct {
	Cipher Cipher

	// Iterations is the PBKDF2 count for the OpenSSL format, raised
	// to MinIterations when lower.
	Iterations int

	// WorkFactor is the scrypt log2(N) for age. Zero uses age's
	// default.
	WorkFactor int
}

func (v Vault) iterations() int {
	return max(v.Iterations, MinIterations)
}

// Encrypt encrypts plaintextPath into encryptedPath, which must not
// exist. On failure the partial ciphertext is removed. The plaintext
// is left for the caller to destroy.
func (v Vault) Encrypt(ctx context.Context, plaintextPath, encryptedPath string, key *Key) (err error) {
	input, err := os.Open(plaintextPath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer input.Close()

	output, err := os.OpenFile(encryptedPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("creating encrypted archive: %w", err)
	}
	defer func() {
		if err != nil {
			output.Close()
			os.Remove(encryptedPath)
		}
	}()

	buffered := bufio.NewWriterSize(output, 256*1024)
	reader := contextReader{ctx: ctx, reader: input}
	switch v.Cipher {
	case CipherOpenSSL, "":
		err = encryptOpenSSL(buffered, reader, key.Passphrase(), v.iterations())
	case CipherAge:
		err = encryptAge(buffered, reader, key, v.WorkFactor)
	default:
		err = fmt.Errorf("unknown cipher %q", v.Cipher)
	}
	if err != nil {
		return fmt.Errorf("encrypting %s: %w", plaintextPath, err)
	}
	if err := buffered.Flush(); err != nil {
		return fmt.Errorf("writing encrypted archive: %w", err)
	}
	if err := output.Sync(); err != nil {
		return fmt.Errorf("syncing encrypted archive: %w", err)
	}
	if err := output.Close(); err != nil {
		return fmt.Errorf("closing encrypted archive: %w", err)
	}

	info, err := os.Stat(encryptedPath)
	if err != nil || info.Size() == 0 {
		return ErrEmptyOutput
	}
	return nil
}

// Decrypt writes the plaintext of encryptedPath to w. The cipher is
// detected from the file header; iterations applies to the OpenSSL
// format, which does not record it.
func Decrypt(ctx context.Context, encryptedPath string, w io.Writer, key *Key, iterations int) error {
	input, err := os.Open(encryptedPath)
	if err != nil {
		return err
	}
	defer input.Close()
	return DecryptStream(ctx, input, w, key, iterations)
}

// DecryptStream is Decrypt over an arbitrary reader.
func DecryptStream(ctx context.Context, r io.Reader, w io.Writer, key *Key, iterations int) error {
	buffered := bufio.NewReaderSize(contextReader{ctx: ctx, reader: r}, 256*1024)
	header, _ := buffered.Peek(len(ageMagic))
	switch {
	case bytes.HasPrefix(header, opensslMagic):
		return decryptOpenSSL(w, buffered, key.Passphrase(), max(iterations, MinIterations))
	case bytes.HasPrefix(header, ageMagic):
		return decryptAge(w, buffered, key)
	default:
		return fmt.Errorf("%w: unrecognised archive header", ErrDecrypt)
	}
}

// contextReader fails reads once ctx is done.
type contextReader struct {
	ctx    context.Context
	reader io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.reader.Read(p)
}
