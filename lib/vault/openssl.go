// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/custodyworks/custody/lib/secret"
)

// opensslMagic opens every salted OpenSSL enc file.
var opensslMagic = []byte("Salted__")

const saltSize = 8

// ErrDecrypt covers a wrong key, a wrong iteration count and a
// corrupt ciphertext, which CBC cannot tell apart.
var ErrDecrypt = errors.New("bad decrypt: wrong key, iteration count or corrupt ciphertext")

// deriveKeyIV runs PBKDF2-HMAC-SHA256 to 48 bytes, the AES-256 key
// followed by the CBC IV, as openssl enc -pbkdf2 -md sha256 does.
func deriveKeyIV(passphrase, salt []byte, iterations int) []byte {
	return pbkdf2.Key(passphrase, salt, iterations, 32+aes.BlockSize, sha256.New)
}

func encryptOpenSSL(w io.Writer, r io.Reader, passphrase []byte, iterations int) error {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generating salt: %w", err)
	}
	derived := deriveKeyIV(passphrase, salt, iterations)
	defer secret.Zero(derived)

	block, err := aes.NewCipher(derived[:32])
	if err != nil {
		return err
	}
	if _, err := w.Write(append(bytes.Clone(opensslMagic), salt...)); err != nil {
		return err
	}

	writer := &cbcWriter{mode: cipher.NewCBCEncrypter(block, derived[32:]), w: w}
	if _, err := io.Copy(writer, r); err != nil {
		return err
	}
	return writer.Close()
}

// cbcWriter encrypts whole blocks as they arrive and pads the tail on
// Close.
type cbcWriter struct {
	mode    cipher.BlockMode
	w       io.Writer
	pending []byte
}

func (c *cbcWriter) Write(p []byte) (int, error) {
	data := append(c.pending, p...)
	ready := len(data) - len(data)%aes.BlockSize
	if ready > 0 {
		c.mode.CryptBlocks(data[:ready], data[:ready])
		if _, err := c.w.Write(data[:ready]); err != nil {
			return 0, err
		}
	}
	c.pending = append(c.pending[:0], data[ready:]...)
	return len(p), nil
}

// Close writes the final PKCS#7 padded block. It does not close the
// underlying writer.
func (c *cbcWriter) Close() error {
	padding := aes.BlockSize - len(c.pending)
	final := append(c.pending, bytes.Repeat([]byte{byte(padding)}, padding)...)
	c.mode.CryptBlocks(final, final)
	_, err := c.w.Write(final)
	c.pending = nil
	return err
}

func decryptOpenSSL(w io.Writer, r io.Reader, passphrase []byte, iterations int) error {
	header := make([]byte, len(opensslMagic)+saltSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	if !bytes.Equal(header[:len(opensslMagic)], opensslMagic) {
		return fmt.Errorf("%w: missing Salted__ header", ErrDecrypt)
	}
	derived := deriveKeyIV(passphrase, header[len(opensslMagic):], iterations)
	defer secret.Zero(derived)

	block, err := aes.NewCipher(derived[:32])
	if err != nil {
		return err
	}
	mode := cipher.NewCBCDecrypter(block, derived[32:])

	// At least one block is always held back: the last block carries
	// the padding and can only be handled once the stream ends.
	chunk := make([]byte, 64*1024)
	pending := make([]byte, 0, len(chunk)+aes.BlockSize)
	for {
		n, readErr := r.Read(chunk)
		pending = append(pending, chunk[:n]...)
		if len(pending) > aes.BlockSize {
			ready := (len(pending) - 1) / aes.BlockSize * aes.BlockSize
			mode.CryptBlocks(pending[:ready], pending[:ready])
			if _, err := w.Write(pending[:ready]); err != nil {
				return err
			}
			pending = append(pending[:0], pending[ready:]...)
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return readErr
		}
	}

	if len(pending) != aes.BlockSize {
		return fmt.Errorf("%w: ciphertext is not a whole number of blocks", ErrDecrypt)
	}
	mode.CryptBlocks(pending, pending)
	padding := int(pending[aes.BlockSize-1])
	if padding == 0 || padding > aes.BlockSize {
		return ErrDecrypt
	}
	for _, value := range pending[aes.BlockSize-padding:] {
		if int(value) != padding {
			return ErrDecrypt
		}
	}
	_, err = w.Write(pending[:aes.BlockSize-padding])
	return err
}
