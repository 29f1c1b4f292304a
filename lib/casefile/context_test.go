// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package casefile

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

var runTime = time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)

func TestWorkspaceName(t *testing.T) {
	tests := []struct {
		deviceID string
		want     string
	}{
		{"R58M12ABCDE", "R58M12ABCDE_20260314_092653"},
		{"192.168.1.20:5555", "192.168.1.20_5555_20260314_092653"},
		{"../escape", "_escape_20260314_092653"},
		{"", "device_20260314_092653"},
	}
	for _, test := range tests {
		if got := WorkspaceName(test.deviceID, runTime); got != test.want {
			t.Errorf("WorkspaceName(%q) = %s, want %s", test.deviceID, got, test.want)
		}
	}
}

func TestCreate(t *testing.T) {
	root := t.TempDir()
	inputs := Inputs{CaseID: "CASE-7", InvestigatorName: "R. Okafor", InvestigatorID: "B-221", JobID: "J-1"}

	caseContext, err := Create(root, inputs, "R58M12ABCDE", "SM-G973F", runTime)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if caseContext.Workspace != filepath.Join(root, "R58M12ABCDE_20260314_092653") {
		t.Errorf("Workspace = %s", caseContext.Workspace)
	}
	info, err := os.Stat(caseContext.Workspace)
	if err != nil {
		t.Fatalf("workspace not created: %v", err)
	}
	if info.Mode().Perm() != 0o700 {
		t.Errorf("workspace mode = %o, want 700", info.Mode().Perm())
	}
	if caseContext.CaseID != "CASE-7" || caseContext.DeviceModel != "SM-G973F" {
		t.Errorf("unexpected context: %+v", caseContext)
	}

	if _, err := Create(root, inputs, "R58M12ABCDE", "SM-G973F", runTime); err == nil {
		t.Error("Create reused an existing workspace")
	}
}

func TestArtifactNames(t *testing.T) {
	caseContext := Context{Timestamp: runTime, Workspace: "/evidence/X_20260314_092653"}

	if got := caseContext.EncryptedName(); got != "evidence_20260314_092653.tar.gz.enc" {
		t.Errorf("EncryptedName() = %s", got)
	}
	if got := caseContext.KeyFileName(); got != "decryption_key_20260314_092653.txt" {
		t.Errorf("KeyFileName() = %s", got)
	}
	want := []string{
		"evidence_20260314_092653.tar.gz.enc",
		"decryption_key_20260314_092653.txt",
		"hashes.txt",
		"metadata.json",
		"acquisition.log",
	}
	if got := caseContext.Retained(); !slices.Equal(got, want) {
		t.Errorf("Retained() = %v, want %v", got, want)
	}
	if got := caseContext.Path("logical", "sdcard"); got != "/evidence/X_20260314_092653/logical/sdcard" {
		t.Errorf("Path() = %s", got)
	}
}

func TestResumeNoWorkspace(t *testing.T) {
	root := t.TempDir()
	// Directories that do not look like workspaces are ignored.
	if err := os.Mkdir(filepath.Join(root, "notes"), 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := Resume(root, Inputs{})
	if !errors.Is(err, ErrNoWorkspace) {
		t.Fatalf("Resume() error = %v, want ErrNoWorkspace", err)
	}

	entries, _ := os.ReadDir(root)
	if len(entries) != 1 {
		t.Errorf("Resume created entries: %d entries in root", len(entries))
	}
}

func TestResumeMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "absent")
	if _, err := Resume(root, Inputs{}); !errors.Is(err, ErrNoWorkspace) {
		t.Fatalf("Resume() error = %v, want ErrNoWorkspace", err)
	}
	if _, err := os.Stat(root); !errors.Is(err, os.ErrNotExist) {
		t.Error("Resume created the evidence root")
	}
}

func TestResumePicksMostRecentlyModified(t *testing.T) {
	root := t.TempDir()
	older := filepath.Join(root, "OLDDEVICE_20260101_080000")
	newer := filepath.Join(root, "NEW_DEVICE_20250101_080000")
	for _, directory := range []string{older, newer} {
		if err := os.Mkdir(directory, 0o700); err != nil {
			t.Fatal(err)
		}
	}
	now := time.Now()
	os.Chtimes(older, now.Add(-time.Hour), now.Add(-time.Hour))
	os.Chtimes(newer, now, now)

	if err := os.MkdirAll(filepath.Join(newer, DeviceInfo), 0o755); err != nil {
		t.Fatal(err)
	}
	getprop := "[ro.build.id]: [TQ3A]\n[ro.product.model]: [Pixel 7]\n"
	if err := os.WriteFile(filepath.Join(newer, DeviceInfo, "getprop.txt"), []byte(getprop), 0o644); err != nil {
		t.Fatal(err)
	}
	os.Chtimes(newer, now, now)

	caseContext, err := Resume(root, Inputs{CaseID: "CASE-9"})
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if caseContext.Workspace != newer {
		t.Errorf("Workspace = %s, want %s", caseContext.Workspace, newer)
	}
	if caseContext.DeviceID != "NEW_DEVICE" {
		t.Errorf("DeviceID = %s, want NEW_DEVICE", caseContext.DeviceID)
	}
	if caseContext.DeviceModel != "Pixel 7" {
		t.Errorf("DeviceModel = %s, want Pixel 7", caseContext.DeviceModel)
	}
	if caseContext.Stamp() != "20250101_080000" {
		t.Errorf("Stamp() = %s, want 20250101_080000", caseContext.Stamp())
	}
	if caseContext.CaseID != "CASE-9" {
		t.Errorf("CaseID = %s, want CASE-9", caseContext.CaseID)
	}
}
