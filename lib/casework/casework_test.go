// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package casework

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/custodyworks/custody/lib/acquire"
	"github.com/custodyworks/custody/lib/archive"
	"github.com/custodyworks/custody/lib/casefile"
	"github.com/custodyworks/custody/lib/clock"
	"github.com/custodyworks/custody/lib/custody"
	"github.com/custodyworks/custody/lib/device"
	"github.com/custodyworks/custody/lib/device/devicetest"
	"github.com/custodyworks/custody/lib/ledger"
	"github.com/custodyworks/custody/lib/shred"
	"github.com/custodyworks/custody/lib/testutil"
	"github.com/custodyworks/custody/lib/vault"
)

var runTime = time.Date(2026, 5, 1, 10, 0, 0, 0, time.Local)

func appTar(t *testing.T) []byte {
	t.Helper()
	var buffer bytes.Buffer
	writer := tar.NewWriter(&buffer)
	content := "sqlite format 3"
	if err := writer.WriteHeader(&tar.Header{Name: "databases/chat.db", Mode: 0o600, Size: int64(len(content)), Typeflag: tar.TypeReg}); err != nil {
		t.Fatal(err)
	}
	if _, err := writer.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}
	return buffer.Bytes()
}

func newFake(t *testing.T) *devicetest.Fake {
	return &devicetest.Fake{
		SerialNumber: "R58M123ABC",
		Shells: map[string]devicetest.Response{
			"getprop":                    {Stdout: "[ro.product.model]: [SM-G991B]\n"},
			"getprop ro.product.model":   {Stdout: "SM-G991B\n"},
			"pm list packages -3":        {Stdout: "package:com.example.chat\npackage:com.example.bank\n"},
			"run-as com.example.chat id": {Stdout: "uid=10211(u0_a211)\n"},
		},
		Streams: map[string][]byte{
			"run-as com.example.chat tar -cf - .": appTar(t),
		},
		Remote: map[string]map[string]string{
			"/sdcard": {
				"DCIM/Camera/IMG_0001.jpg": "jpeg bytes",
				"Download/statement.pdf":  "pdf bytes",
			},
			"/system": {"build.prop": "ro.build.id=TP1A"},
		},
	}
}

// snapshotShredder hashes every staging directory before removing it,
// so the test can compare the archive against what was staged.
type snapshotShredder struct {
	t      *testing.T
	staged map[string]string
}

func (s *snapshotShredder) Name() string { return "snapshot" }

func (s *snapshotShredder) Remove(path string) error {
	if strings.HasPrefix(filepath.Base(path), archive.StagingPrefix) {
		s.staged = testutil.TreeDigests(s.t, path)
	}
	return os.RemoveAll(path)
}

func baseOptions(t *testing.T, root string) Options {
	return Options{
		EvidenceRoot: root,
		Inputs: casefile.Inputs{
			CaseID:           "CASE-2026-0142",
			InvestigatorName: "R. Okafor",
			InvestigatorID:   "INV-7",
			JobID:            "JOB-19",
		},
		Acquisition: acquire.Options{
			LogicalPaths: []string{"/sdcard"},
			SystemPaths:  []string{"/system"},
			CarvingTools: []string{"foremost"},
		},
		Vault:  vault.Vault{Cipher: vault.CipherOpenSSL, Iterations: vault.MinIterations},
		Clock:  clock.Fixed(runTime),
		Logger: slog.New(slog.DiscardHandler),
	}
}

func TestRunSealsWorkspace(t *testing.T) {
	root := t.TempDir()
	shredder := &snapshotShredder{t: t}
	options := baseOptions(t, root)
	options.Link = newFake(t)
	options.Shredder = shredder

	summary, err := Run(context.Background(), options)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	caseContext := summary.Context

	if want := filepath.Join(root, "R58M123ABC_20260501_100000"); caseContext.Workspace != want {
		t.Errorf("workspace = %s, want %s", caseContext.Workspace, want)
	}
	if caseContext.DeviceModel != "SM-G991B" {
		t.Errorf("model = %q", caseContext.DeviceModel)
	}

	// Exactly the retained set survives.
	want := slices.Clone(caseContext.Retained())
	slices.Sort(want)
	if got := testutil.EntryNames(t, caseContext.Workspace); !slices.Equal(got, want) {
		t.Errorf("workspace holds %v, want %v", got, want)
	}

	// Ledger: snapshot count matches metadata, one final entry for the
	// encrypted archive.
	entries, err := ledger.ReadFile(caseContext.Path(casefile.LedgerFile))
	if err != nil {
		t.Fatal(err)
	}
	metadata, err := custody.ReadMetadata(caseContext.Path(casefile.MetadataFile))
	if err != nil {
		t.Fatal(err)
	}
	if metadata.TotalHashedFiles != len(entries)-1 {
		t.Errorf("metadata counts %d, ledger has %d snapshot entries", metadata.TotalHashedFiles, len(entries)-1)
	}
	if metadata.TotalHashedFiles != summary.HashedFiles {
		t.Errorf("summary counts %d, metadata %d", summary.HashedFiles, metadata.TotalHashedFiles)
	}
	final := entries[len(entries)-1]
	encryptedPath := caseContext.Path(caseContext.EncryptedName())
	encrypted, err := os.ReadFile(encryptedPath)
	if err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256(encrypted)
	if final.Path != caseContext.EncryptedName() || final.Digest != hex.EncodeToString(sum[:]) {
		t.Errorf("final entry = %+v, want %s with sha256 of the encrypted archive", final, caseContext.EncryptedName())
	}
	for _, entry := range entries[:len(entries)-1] {
		if strings.HasSuffix(entry.Path, ".enc") {
			t.Errorf("encrypted archive %s appears before the final entry", entry.Path)
		}
	}

	// Key file is owner-only.
	info, err := os.Stat(caseContext.Path(caseContext.KeyFileName()))
	if err != nil {
		t.Fatal(err)
	}
	if mode := info.Mode().Perm(); mode != 0o600 {
		t.Errorf("key file mode = %o, want 600", mode)
	}

	// Decrypting reproduces the staged tree byte for byte.
	keyFile, err := vault.ReadKeyFile(caseContext.Path(caseContext.KeyFileName()))
	if err != nil {
		t.Fatal(err)
	}
	defer keyFile.Key.Close()
	var plaintext bytes.Buffer
	if err := vault.Decrypt(context.Background(), encryptedPath, &plaintext, keyFile.Key, keyFile.Iterations); err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	members, err := archive.HashMembers(&plaintext)
	if err != nil {
		t.Fatal(err)
	}
	if len(shredder.staged) == 0 {
		t.Fatal("staging directory was never shredded")
	}
	if len(members) != len(shredder.staged) {
		t.Errorf("archive has %d files, staging had %d", len(members), len(shredder.staged))
	}
	for name, digest := range shredder.staged {
		if members[name] != digest {
			t.Errorf("archived %s differs from staged copy", name)
		}
	}
	for _, expected := range []string{
		"logical/sdcard/DCIM/Camera/IMG_0001.jpg",
		"app_data/com.example.chat/databases/chat.db",
		"device_info/getprop.txt",
		custody.ReportMarkdown,
		casefile.MetadataFile,
	} {
		if _, ok := members[expected]; !ok {
			t.Errorf("archive lacks %s", expected)
		}
	}

	// The run log is kept and records stage outcomes.
	logData, err := os.ReadFile(caseContext.Path(casefile.LogFile))
	if err != nil {
		t.Fatal(err)
	}
	for _, fragment := range []string{"stage=CARVE", "status=SKIPPED", "evidence sealed"} {
		if !bytes.Contains(logData, []byte(fragment)) {
			t.Errorf("acquisition.log lacks %q", fragment)
		}
	}
	if bytes.Contains(logData, keyFile.Key.Passphrase()) {
		t.Error("acquisition.log contains the key")
	}

	// The sealed workspace verifies.
	verification, err := Verify(context.Background(), caseContext.Workspace, vault.MinIterations)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if verification.Checked != metadata.TotalHashedFiles {
		t.Errorf("verified %d entries, want %d", verification.Checked, metadata.TotalHashedFiles)
	}
}

func TestRunStageOutcomes(t *testing.T) {
	options := baseOptions(t, t.TempDir())
	options.Link = newFake(t)

	summary, err := Run(context.Background(), options)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	statuses := make(map[acquire.StageName]device.Status)
	for _, result := range summary.Stages {
		statuses[result.Stage] = result.Outcome.Status
	}
	want := map[acquire.StageName]device.Status{
		acquire.StageIdentify:      device.StatusSuccess,
		acquire.StageLogicalPull:   device.StatusSuccess,
		acquire.StageSystemPull:    device.StatusSuccess,
		acquire.StageAppData:       device.StatusSuccess,
		acquire.StageDeviceBackup:  device.StatusFailed,
		acquire.StagePhysicalImage: device.StatusSkipped,
		acquire.StageCarve:         device.StatusSkipped,
	}
	for stage, status := range want {
		if statuses[stage] != status {
			t.Errorf("%s = %s, want %s", stage, statuses[stage], status)
		}
	}
	if len(summary.Stages) != len(acquire.Stages()) {
		t.Errorf("%d stage results, want %d", len(summary.Stages), len(acquire.Stages()))
	}
}

// emptyRunner answers "adb devices -l" with no devices.
type emptyRunner struct{}

func (emptyRunner) Run(_ context.Context, stdout io.Writer, _ string, _ ...string) (int, string, error) {
	io.WriteString(stdout, "List of devices attached\n\n")
	return 0, "", nil
}

func TestRunNoDevice(t *testing.T) {
	root := t.TempDir()
	options := baseOptions(t, root)
	options.Runner = emptyRunner{}

	_, err := Run(context.Background(), options)
	if KindOf(err) != KindNoDevice {
		t.Fatalf("Run = %v, want %s", err, KindNoDevice)
	}
	if names := testutil.EntryNames(t, root); len(names) != 0 {
		t.Errorf("evidence root gained %v", names)
	}
}

func TestRunResumeWithoutWorkspace(t *testing.T) {
	root := t.TempDir()
	options := baseOptions(t, root)
	options.Resume = true

	_, err := Run(context.Background(), options)
	if KindOf(err) != KindNoWorkspace {
		t.Fatalf("Run = %v, want %s", err, KindNoWorkspace)
	}
	if !errors.Is(err, casefile.ErrNoWorkspace) {
		t.Errorf("error chain lacks ErrNoWorkspace: %v", err)
	}
	if names := testutil.EntryNames(t, root); len(names) != 0 {
		t.Errorf("evidence root gained %v", names)
	}
}

func TestRunResumeSealsExistingWorkspace(t *testing.T) {
	root := t.TempDir()
	interrupted, err := casefile.Create(root, casefile.Inputs{}, "emulator-5554", "unknown", runTime)
	if err != nil {
		t.Fatal(err)
	}
	for name, content := range map[string]string{
		"device_info/getprop.txt":        "[ro.product.model]: [sdk_gphone64]\n",
		"logical/sdcard/notes.txt":       "notes",
		interrupted.StagingName() + "/x": "left by an interrupted seal",
		custody.ReportMarkdown:           "# report from the interrupted seal",
		custody.ReportHTML:               "<p>stale</p>",
		custody.RecordCBOR:               "stale",
	} {
		path := interrupted.Path(filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	options := baseOptions(t, root)
	options.Resume = true
	summary, err := Run(context.Background(), options)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Context.Workspace != interrupted.Workspace {
		t.Errorf("resumed %s, want %s", summary.Context.Workspace, interrupted.Workspace)
	}
	if summary.Context.DeviceModel != "sdk_gphone64" {
		t.Errorf("model = %q, want the recorded one", summary.Context.DeviceModel)
	}
	if summary.HashedFiles != 2 {
		t.Errorf("hashed %d files, want 2", summary.HashedFiles)
	}
	for _, result := range summary.Stages {
		if result.Outcome.Status != device.StatusSkipped {
			t.Errorf("%s = %s on resume, want SKIPPED", result.Stage, result.Outcome.Status)
		}
	}
	verification, err := Verify(context.Background(), interrupted.Workspace, vault.MinIterations)
	if err != nil {
		t.Fatalf("Verify after resume: %v", err)
	}
	if verification.Checked != 2 {
		t.Errorf("verified %d entries, want 2", verification.Checked)
	}

	// Resuming again must not reseal the now empty workspace.
	_, err = Run(context.Background(), options)
	if KindOf(err) != KindSealed {
		t.Fatalf("second resume = %v, want %s", err, KindSealed)
	}
}

func TestRunKeepsEvidenceWithArtifactNames(t *testing.T) {
	options := baseOptions(t, t.TempDir())
	fake := newFake(t)
	fake.Remote["/sdcard"]["Download/photos.tar.gz"] = "user tarball"
	fake.Remote["/sdcard"]["Download/wallet.enc"] = "user ciphertext"
	fake.Remote["/sdcard"]["Android/acquisition.log"] = "app log"
	fake.Remote["/sdcard"]["Documents/decryption_key_2019.txt"] = "someone else's key"
	options.Link = fake
	options.Shredder = shred.Plain{}

	summary, err := Run(context.Background(), options)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	entries, err := ledger.ReadFile(summary.Context.Path(casefile.LedgerFile))
	if err != nil {
		t.Fatal(err)
	}
	hashed := make(map[string]bool)
	for _, entry := range entries {
		hashed[entry.Path] = true
	}
	for _, path := range []string{
		"logical/sdcard/Download/photos.tar.gz",
		"logical/sdcard/Download/wallet.enc",
		"logical/sdcard/Android/acquisition.log",
		"logical/sdcard/Documents/decryption_key_2019.txt",
	} {
		if !hashed[path] {
			t.Errorf("%s missing from the ledger", path)
		}
	}

	verification, err := Verify(context.Background(), summary.Context.Workspace, vault.MinIterations)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if verification.Checked != summary.HashedFiles {
		t.Errorf("verified %d entries, want %d", verification.Checked, summary.HashedFiles)
	}
}

// recordingShredder notes every path it destroys.
type recordingShredder struct {
	removed []string
}

func (r *recordingShredder) Name() string { return "recording" }

func (r *recordingShredder) Remove(path string) error {
	r.removed = append(r.removed, path)
	return os.RemoveAll(path)
}

func TestRunRoutesAcquisitionRemovalsThroughShredder(t *testing.T) {
	options := baseOptions(t, t.TempDir())
	fake := newFake(t)
	// The chat package streams nothing usable, so its extraction is
	// discarded.
	fake.Streams["run-as com.example.chat tar -cf - ."] = []byte("not a tar archive")
	options.Link = fake
	shredder := &recordingShredder{}
	options.Shredder = shredder

	summary, err := Run(context.Background(), options)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	discarded := summary.Context.Path(acquire.AppDataDir, "com.example.chat")
	if !slices.Contains(shredder.removed, discarded) {
		t.Errorf("shredder removed %v, want %s among them", shredder.removed, discarded)
	}
}

func TestCheckEncryptedOutputRemovesKey(t *testing.T) {
	directory := t.TempDir()
	encrypted := filepath.Join(directory, "evidence_1.tar.gz.enc")
	key := filepath.Join(directory, "decryption_key_1.txt")
	testutil.WriteFile(t, directory, "evidence_1.tar.gz.enc", "")
	testutil.WriteFile(t, directory, "decryption_key_1.txt", "key")

	if _, err := checkEncryptedOutput(encrypted, key); KindOf(err) != KindMissingOutput {
		t.Fatalf("checkEncryptedOutput = %v, want %s", err, KindMissingOutput)
	}
	if names := testutil.EntryNames(t, directory); len(names) != 0 {
		t.Errorf("left behind %v", names)
	}

	testutil.WriteFile(t, directory, "decryption_key_1.txt", "key")
	if _, err := checkEncryptedOutput(encrypted, key); KindOf(err) != KindMissingOutput {
		t.Fatalf("checkEncryptedOutput = %v, want %s", err, KindMissingOutput)
	}
	if _, err := os.Stat(key); !errors.Is(err, os.ErrNotExist) {
		t.Error("key file kept without an encrypted archive")
	}

	testutil.WriteFile(t, directory, "evidence_1.tar.gz.enc", "ciphertext")
	size, err := checkEncryptedOutput(encrypted, key)
	if err != nil || size != int64(len("ciphertext")) {
		t.Errorf("checkEncryptedOutput = %d, %v", size, err)
	}
}

func TestRunCancelledKeepsWorkspace(t *testing.T) {
	root := t.TempDir()
	options := baseOptions(t, root)
	options.Link = newFake(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := Run(ctx, options)
	if KindOf(err) != KindAcquisition {
		t.Fatalf("Run = %v, want %s", err, KindAcquisition)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error chain lacks context.Canceled: %v", err)
	}
	if _, statErr := os.Stat(summary.Context.Workspace); statErr != nil {
		t.Errorf("workspace removed: %v", statErr)
	}
}

func TestVerifyDetectsTamperedArchive(t *testing.T) {
	options := baseOptions(t, t.TempDir())
	options.Link = newFake(t)
	options.Shredder = shred.Plain{}
	summary, err := Run(context.Background(), options)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	file, err := os.OpenFile(summary.EncryptedPath, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		t.Fatal(err)
	}
	file.Write(make([]byte, 16))
	file.Close()

	if _, err := Verify(context.Background(), summary.Context.Workspace, vault.MinIterations); KindOf(err) != KindVerify {
		t.Errorf("Verify = %v, want %s", err, KindVerify)
	}
}
