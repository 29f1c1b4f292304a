// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

// Package ledger maintains the integrity ledger of a case workspace:
// the SHA-256 digest of every acquired file, in the order the files
// were found, persisted as hashes.txt.
//
// The ledger is write-once. [Create] writes the snapshot produced by
// [HashAll]; after encryption [Ledger.AppendFinal] adds exactly one
// more line for the sealed archive. No line is ever edited or
// removed. Each line has the form
//
//	<sha256-hex>  <slash-separated relative path>
//
// which sha256sum -c accepts when run from the workspace.
package ledger
