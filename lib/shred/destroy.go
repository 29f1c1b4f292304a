// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package shred

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ErrResidue is returned when entries outside the allowlist survive.
var ErrResidue = errors.New("workspace holds unexpected entries after cleanup")

// DestroyPlaintext removes every top-level entry of workspace whose
// name is not in retain. Entries named in last survive the first pass
// and are destroyed after everything else. The workspace is then read
// back and must hold nothing outside retain.
func DestroyPlaintext(workspace string, retain, last []string, shredder Shredder) error {
	entries, err := os.ReadDir(workspace)
	if err != nil {
		return fmt.Errorf("listing workspace: %w", err)
	}

	var failures []error
	for _, entry := range entries {
		name := entry.Name()
		if slices.Contains(retain, name) || slices.Contains(last, name) {
			continue
		}
		if err := shredder.Remove(filepath.Join(workspace, name)); err != nil {
			failures = append(failures, fmt.Errorf("removing %s: %w", name, err))
		}
	}
	for _, name := range last {
		if slices.Contains(retain, name) {
			continue
		}
		if err := shredder.Remove(filepath.Join(workspace, name)); err != nil {
			failures = append(failures, fmt.Errorf("removing %s: %w", name, err))
		}
	}
	if len(failures) > 0 {
		return errors.Join(failures...)
	}

	residue, err := Residue(workspace, retain)
	if err != nil {
		return err
	}
	if len(residue) > 0 {
		return fmt.Errorf("%w: %s", ErrResidue, strings.Join(residue, ", "))
	}
	return nil
}

// Residue lists the top-level entries of workspace not in retain.
func Residue(workspace string, retain []string) ([]string, error) {
	entries, err := os.ReadDir(workspace)
	if err != nil {
		return nil, fmt.Errorf("listing workspace: %w", err)
	}
	var residue []string
	for _, entry := range entries {
		if !slices.Contains(retain, entry.Name()) {
			residue = append(residue, entry.Name())
		}
	}
	return residue, nil
}
