// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helpers for the custody binary:
// reporting a fatal error to stderr when the run log may not exist yet,
// and mapping errors to process exit codes.
package process
