// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package casefile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"
)

// LockName is the lock file kept in the evidence root.
const LockName = ".custody.lock"

// ErrLocked is returned by LockRoot when another run holds the lock.
var ErrLocked = errors.New("evidence root is locked by another run")

// Lock is an exclusive flock on the evidence root. It is released by
// Unlock or when the process exits.
type Lock struct {
	file *os.File
}

// LockRoot takes the evidence-root lock without blocking. The holder's
// pid is written into the lock file for operators.
func LockRoot(root string) (*Lock, error) {
	path := filepath.Join(root, LockName)
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening lock %s: %w", path, err)
	}

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}

	if err := file.Truncate(0); err == nil {
		file.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}
	return &Lock{file: file}, nil
}

// Unlock releases the lock. Safe to call more than once.
func (l *Lock) Unlock() error {
	if l == nil || l.file == nil {
		return nil
	}
	unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	err := l.file.Close()
	l.file = nil
	return err
}
