// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// backupMagic opens every Android backup file.
var backupMagic = []byte("ANDROID BACKUP\n")

// ErrBackupDeclined reports a backup that produced no usable file,
// which is what adb leaves behind when the owner does not confirm the
// request on the device.
var ErrBackupDeclined = errors.New("backup declined or empty")

// CheckBackup classifies a backup file written by adb backup.
func CheckBackup(path string) Outcome {
	file, err := os.Open(path)
	if err != nil {
		return Failed("backup file missing", fmt.Errorf("%w: %v", ErrBackupDeclined, err))
	}
	defer file.Close()

	header := make([]byte, len(backupMagic))
	if _, err := io.ReadFull(file, header); err != nil {
		return Failed("backup file shorter than its header", ErrBackupDeclined)
	}
	if !bytes.Equal(header, backupMagic) {
		return Failed("backup file has no Android backup header", ErrBackupDeclined)
	}

	info, err := file.Stat()
	if err != nil {
		return Failed("stat backup file", err)
	}
	return Succeeded(fmt.Sprintf("%d bytes", info.Size()))
}
