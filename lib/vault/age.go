// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"fmt"
	"io"

	"filippo.io/age"
)

// ageMagic opens every age file.
var ageMagic = []byte("age-encryption.org/v1")

func encryptAge(w io.Writer, r io.Reader, key *Key, workFactor int) error {
	recipient, err := age.NewScryptRecipient(key.passphrase.Reveal())
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}
	if workFactor > 0 {
		recipient.SetWorkFactor(workFactor)
	}
	writer, err := age.Encrypt(w, recipient)
	if err != nil {
		return err
	}
	if _, err := io.Copy(writer, r); err != nil {
		return err
	}
	return writer.Close()
}

func decryptAge(w io.Writer, r io.Reader, key *Key) error {
	identity, err := age.NewScryptIdentity(key.passphrase.Reveal())
	if err != nil {
		return fmt.Errorf("creating scrypt identity: %w", err)
	}
	reader, err := age.Decrypt(r, identity)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	_, err = io.Copy(w, reader)
	return err
}
