// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

// Package shred destroys plaintext evidence once the encrypted archive
// exists.
//
// [Overwrite] replaces file contents with random data before
// unlinking; [Plain] only unlinks. Overwriting gives no guarantee on
// copy-on-write or journalling filesystems and flash media with wear
// levelling, so [Probe] lets configuration pick the mode and falls
// back to [Plain] when overwriting does not work in the evidence root
// at all.
//
// [DestroyPlaintext] applies a shredder to everything in a workspace
// outside an allowlist and then checks that only the allowlist is left.
package shred
