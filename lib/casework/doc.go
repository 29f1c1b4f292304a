// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

// Package casework runs one acquisition from device discovery to a
// sealed workspace.
//
// [Run] sequences the other packages:
//
//   - identify the device and create the workspace, or resume the
//     most recent workspace without a device
//   - run the acquisition stages (lib/acquire)
//   - hash the workspace into hashes.txt (lib/ledger)
//   - write metadata.json and the custody reports (lib/custody)
//   - stage and pack the workspace (lib/archive)
//   - generate and persist the key, encrypt the archive (lib/vault)
//   - append the encrypted archive's hash as the final ledger entry
//   - destroy all plaintext (lib/shred)
//
// A completed workspace holds exactly the encrypted archive, the key
// file, hashes.txt, metadata.json and acquisition.log. Every failure
// after acquisition that prevents this is a [FatalError]; best-effort
// stage failures are only logged.
//
// [Verify] checks a sealed workspace against its ledger.
package casework
