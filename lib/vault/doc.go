// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

// Package vault generates the one-time archive key and encrypts the
// evidence archive with it.
//
// A [Key] is 48 bytes from crypto/rand, base64 encoded into a 64
// character passphrase that lives only in a locked [secret.Buffer]
// and in the owner-only key file written by [PersistKey]. Encryption
// happens in-process, so the passphrase never appears in a process
// argument list or in a scratch file.
//
// The default cipher produces exactly what
//
//	openssl enc -aes-256-cbc -pbkdf2 -iter N -md sha256 -salt
//
// produces: the "Salted__" magic, an 8-byte random salt, then
// AES-256-CBC ciphertext with PKCS#7 padding, with key and IV derived
// by PBKDF2-HMAC-SHA256 from the passphrase and salt. The archive
// therefore decrypts with stock OpenSSL:
//
//	openssl enc -d -aes-256-cbc -pbkdf2 -iter N -md sha256 -pass pass:<key>
//
// The alternative age-scrypt cipher writes an age file with a scrypt
// passphrase stanza, which "age -d" decrypts given the same key line.
package vault
