// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds key material outside the Go heap.
//
// [Buffer] allocates memory via mmap(MAP_ANONYMOUS), locks it into
// physical RAM with mlock so it is never written to swap, and marks it
// MADV_DONTDUMP so it never appears in a core dump. Close zeroes,
// unlocks and unmaps the region. The vault keeps the one-time archive
// passphrase in a Buffer from generation until the key file is written
// and the archive is encrypted; nothing else in the process holds a
// copy.
//
// Constructors:
//
//   - [New] -- zero-filled buffer of a given size
//   - [NewFromBytes] -- copies into protected memory, zeros the source
//   - [NewRandom] -- fills protected memory from crypto/rand
//
// [Buffer.EncodeBase64] produces a second protected buffer holding the
// standard base64 form, so the textual passphrase never lives on the
// heap either. After Close, any access panics. Close is idempotent.
package secret
