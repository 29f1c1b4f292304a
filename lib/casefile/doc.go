// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

// Package casefile defines the case context and the on-disk layout of
// a case workspace.
//
// A workspace is one directory per acquisition run, named
// <device-id>_<YYYYmmdd_HHMMSS>, directly under the evidence root.
// When a run completes it holds exactly the retained set returned by
// [Context.Retained]: the encrypted archive, the key file, the hash
// ledger, the metadata record and the run log.
//
// [Context] is created once per run, by [Create] for a fresh
// acquisition or by [Resume] for an existing workspace, and is passed
// by value to every component after that. [LockRoot] takes the
// evidence-root lock that keeps two runs from sharing a workspace.
package casefile
