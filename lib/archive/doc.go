// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

// Package archive stages a case workspace and packs the staged copy
// into a deterministic tar.gz.
//
// Staging copies the workspace minus anything the sealing steps
// produce (earlier staging directories, tarballs, ciphertext, key
// files, the run log), so archiving never captures its own output.
// Packing the same staged tree twice yields identical bytes: members
// are written in lexical order with relative names, zero ownership and
// second-resolution times, and the gzip header carries no name or
// time.
package archive
