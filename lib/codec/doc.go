// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration for custody records.
//
// JSON is used where people and other tools read the output
// (metadata.json). CBOR is used for custody_record.cbor, the machine
// copy of the custody record archived inside the sealed evidence. The
// encoder uses Core Deterministic Encoding (RFC 8949 §4.2), so the
// same record always produces identical bytes and the file's hash is
// stable across re-renders. Times encode as RFC 3339 strings with
// nanoseconds so the record stays legible in diagnostic notation.
//
// The decoder rejects duplicate map keys: a record with two values
// for one field has been tampered with or was not written here.
package codec
