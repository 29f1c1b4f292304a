// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package casework

import "errors"

// Kind classifies a fatal error.
type Kind string

const (
	KindNoDevice      Kind = "no device detected"
	KindNoWorkspace   Kind = "no resumable workspace"
	KindSealed        Kind = "workspace already sealed"
	KindWorkspace     Kind = "workspace setup failed"
	KindAcquisition   Kind = "acquisition aborted"
	KindLedger        Kind = "integrity ledger failed"
	KindCustodyRecord Kind = "custody record failed"
	KindArchive       Kind = "archive failed"
	KindKey           Kind = "key generation failed"
	KindEncryption    Kind = "encryption failed"
	KindMissingOutput Kind = "encrypted output missing"
	KindCleanup       Kind = "plaintext cleanup failed"
	KindVerify        Kind = "verification failed"
)

// FatalError ends a run.
type FatalError struct {
	Kind Kind
	Err  error
}

func (e *FatalError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func fatal(kind Kind, err error) error {
	return &FatalError{Kind: kind, Err: err}
}

// KindOf returns the kind of a FatalError in err's chain, or "".
func KindOf(err error) Kind {
	var fatalError *FatalError
	if errors.As(err, &fatalError) {
		return fatalError.Kind
	}
	return ""
}
