// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

// Package device is the boundary between custody and an attached
// Android device.
//
// Every operation returns an [Outcome] rather than aborting: a pull
// that fails, a backup the owner declines, or a device that drops off
// the bus mid-transfer are all ordinary results. Deciding whether an
// outcome is fatal belongs to the acquisition pipeline, not here.
//
// [ADB] implements [Link] by driving the adb binary through a
// [Runner]. Remote commands are given as structured arguments; each
// argument is single-quoted before it reaches the device shell, so no
// caller ever builds a command line by string interpolation.
// Package devicetest provides an in-memory Link for tests.
package device
