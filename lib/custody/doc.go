// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

// Package custody builds the chain-of-custody record for a case.
//
// [Build] is a pure function of the case context, the ledger snapshot
// and the build time. [Write] renders the record into the workspace:
// metadata.json, which survives sealing, and the report files
// (Markdown, HTML and canonical CBOR), which are archived and then
// destroyed with the rest of the plaintext.
package custody
