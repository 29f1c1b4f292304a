// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

// Package acquire runs the acquisition stages against a case
// workspace:
//
//	IDENTIFY -> PROFILE -> LOGICAL_PULL -> SYSTEM_PULL -> APP_DATA ->
//	DEVICE_BACKUP -> PHYSICAL_IMAGE -> CARVE -> DONE
//
// The order is fixed. Stages never overlap, never repeat and never
// retry; each one sees whatever the previous stages left on disk.
// Every stage after IDENTIFY is best-effort: its failures become a
// PARTIAL, SKIPPED or FAILED outcome in the returned results and in the
// log, and the pipeline moves on. IDENTIFY is mandatory and lives in
// [Identify], since it runs before a workspace exists.
//
// The context is checked at every stage boundary. A cancelled run
// returns the results so far together with the context error, and the
// caller abandons sealing.
//
// When resuming an existing workspace there is no device link. The
// device stages report SKIPPED and only CARVE, which works purely on
// the host, does real work.
package acquire
