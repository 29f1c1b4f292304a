// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for custody packages.
//
// [WriteFile] lays down a file inside a fake case workspace, creating
// parent directories as needed. [TreeDigests] snapshots every regular
// file under a root as SHA-256 hex keyed by slash-separated relative
// path, so a test can compare a workspace before staging with what
// comes back out of a decrypted archive. [EntryNames] lists a
// directory's entries in sorted order for asserting what survived
// plaintext destruction.
//
// All helpers call t.Fatal on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no custody-internal dependencies.
package testutil
