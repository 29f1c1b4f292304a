// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package casework

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/custodyworks/custody/lib/acquire"
	"github.com/custodyworks/custody/lib/archive"
	"github.com/custodyworks/custody/lib/casefile"
	"github.com/custodyworks/custody/lib/clock"
	"github.com/custodyworks/custody/lib/custody"
	"github.com/custodyworks/custody/lib/device"
	"github.com/custodyworks/custody/lib/ledger"
	"github.com/custodyworks/custody/lib/runlog"
	"github.com/custodyworks/custody/lib/shred"
	"github.com/custodyworks/custody/lib/vault"
)

// Options configure a run.
type Options struct {
	// EvidenceRoot holds the workspaces. It must exist.
	EvidenceRoot string

	Inputs casefile.Inputs

	// Resume seals the most recently modified workspace instead of
	// acquiring from a device.
	Resume bool

	// Link talks to the device. When nil and not resuming, Run
	// discovers a device with ADB through Runner.
	Link   device.Link
	ADB    string
	Runner device.Runner

	Acquisition acquire.Options
	Vault       vault.Vault

	// Shredder destroys plaintext. Nil means shred.Plain.
	Shredder shred.Shredder

	// Clock stamps the workspace and the custody record. Nil means the
	// real clock.
	Clock clock.Clock

	// Logger is the console logger. Once the workspace exists every
	// record also goes to its acquisition.log.
	Logger *slog.Logger
}

// Summary describes a sealed workspace.
type Summary struct {
	Context      casefile.Context
	Resumed      bool
	Stages       []acquire.Result
	HashedFiles  int
	LedgerBLAKE3 string

	EncryptedPath   string
	EncryptedSHA256 string
	KeyPath         string
	Shredder        string
	Duration        time.Duration
}

// Run acquires and seals one workspace.
func Run(ctx context.Context, options Options) (*Summary, error) {
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Shredder == nil {
		options.Shredder = shred.Plain{}
	}
	if options.Acquisition.Remove == nil {
		options.Acquisition.Remove = options.Shredder.Remove
	}
	if options.Runner == nil {
		options.Runner = device.ExecRunner{}
	}
	if options.ADB == "" {
		options.ADB = "adb"
	}
	start := options.Clock.Now()

	caseContext, link, identify, err := openWorkspace(ctx, options)
	if err != nil {
		return nil, err
	}

	log, err := runlog.Open(caseContext.Path(casefile.LogFile), options.Logger.Handler())
	if err != nil {
		return nil, fatal(KindWorkspace, err)
	}
	defer log.Close()
	logger := log.Logger().With("case", caseContext.CaseID, "device", caseContext.DeviceID)

	logger.Info("run starting",
		"workspace", caseContext.Workspace,
		"model", caseContext.DeviceModel,
		"investigator", caseContext.InvestigatorName,
		"investigator_id", caseContext.InvestigatorID,
		"job", caseContext.JobID,
		"resume", options.Resume,
	)

	run := &sealer{
		options:     options,
		caseContext: caseContext,
		logger:      logger,
		summary: &Summary{
			Context:  caseContext,
			Resumed:  options.Resume,
			Stages:   []acquire.Result{identify},
			Shredder: options.Shredder.Name(),
		},
	}

	results, err := acquire.New(link, caseContext, options.Acquisition, logger).Run(ctx)
	run.summary.Stages = append(run.summary.Stages, results...)
	if err != nil {
		logger.Error("acquisition aborted, workspace kept for resume", "error", err)
		return run.summary, fatal(KindAcquisition, err)
	}

	if err := run.seal(ctx); err != nil {
		logger.Error("run failed", "error", err)
		return run.summary, err
	}

	run.summary.Duration = options.Clock.Now().Sub(start)
	logger.Info("evidence sealed",
		"encrypted", run.summary.EncryptedPath,
		"sha256", run.summary.EncryptedSHA256,
		"key_file", run.summary.KeyPath,
		"hashed_files", run.summary.HashedFiles,
	)
	return run.summary, nil
}

// openWorkspace performs IDENTIFY and creates or resumes the
// workspace. Nothing is created on failure.
func openWorkspace(ctx context.Context, options Options) (casefile.Context, device.Link, acquire.Result, error) {
	identify := acquire.Result{Stage: acquire.StageIdentify, Policy: acquire.Mandatory}

	if options.Resume {
		caseContext, err := casefile.Resume(options.EvidenceRoot, options.Inputs)
		if errors.Is(err, casefile.ErrNoWorkspace) {
			return casefile.Context{}, nil, identify, fatal(KindNoWorkspace, err)
		}
		if err != nil {
			return casefile.Context{}, nil, identify, fatal(KindWorkspace, err)
		}
		if err := checkUnsealed(caseContext); err != nil {
			return casefile.Context{}, nil, identify, err
		}
		identify.Outcome = device.Skipped("resuming " + caseContext.Workspace)
		return caseContext, nil, identify, nil
	}

	started := time.Now()
	link := options.Link
	if link == nil {
		attached, err := acquire.Identify(ctx, options.Runner, options.ADB)
		if err != nil {
			return casefile.Context{}, nil, identify, fatal(KindNoDevice, err)
		}
		link = device.NewADB(options.Runner, options.ADB, attached.Serial)
	}
	model := device.Model(ctx, link)

	caseContext, err := casefile.Create(options.EvidenceRoot, options.Inputs, link.Serial(), model, options.Clock.Now())
	if err != nil {
		return casefile.Context{}, nil, identify, fatal(KindWorkspace, err)
	}
	identify.Outcome = device.Succeeded(fmt.Sprintf("%s (%s)", link.Serial(), model))
	identify.Duration = time.Since(started)
	return caseContext, link, identify, nil
}

// checkUnsealed refuses a workspace whose plaintext is already gone.
// Resealing it would replace the real archive with an empty one.
func checkUnsealed(caseContext casefile.Context) error {
	if _, err := os.Stat(caseContext.Path(caseContext.EncryptedName())); err != nil {
		return nil
	}
	residue, err := shred.Residue(caseContext.Workspace, caseContext.Retained())
	if err != nil {
		return fatal(KindWorkspace, err)
	}
	if len(residue) == 0 {
		return fatal(KindSealed, fmt.Errorf("%s", caseContext.Workspace))
	}
	return nil
}

type sealer struct {
	options     Options
	caseContext casefile.Context
	logger      *slog.Logger
	summary     *Summary
}

func (s *sealer) seal(ctx context.Context) error {
	caseContext := s.caseContext
	shredder := s.options.Shredder

	// A resumed workspace may carry artifacts from a seal that failed
	// part way; the plaintext they were made from is still here. Its
	// reports are rewritten below and must not reach the ledger.
	stale := []string{caseContext.ArchiveName(), caseContext.EncryptedName(), caseContext.KeyFileName()}
	s.removeStale(append(stale, custody.ReportFiles...)...)

	entries, err := ledger.HashAll(ctx, caseContext.Workspace, ledger.DefaultExcludes)
	if err != nil {
		return fatal(KindLedger, err)
	}
	integrity, err := ledger.Create(caseContext.Path(casefile.LedgerFile), entries)
	if err != nil {
		return fatal(KindLedger, err)
	}
	s.summary.HashedFiles = integrity.SnapshotLen()
	s.summary.LedgerBLAKE3 = integrity.Digest()
	s.logger.Info("integrity ledger written", "files", integrity.SnapshotLen(), "blake3", integrity.Digest())

	record := custody.Build(caseContext, integrity.Entries(), s.options.Clock.Now())
	if err := custody.Write(record, caseContext.Workspace); err != nil {
		return fatal(KindCustodyRecord, err)
	}
	s.logger.Info("custody record written", "listing", record.Hashes.Heading())

	builder := archive.Builder{Remove: shredder.Remove}
	staging, err := builder.Stage(ctx, caseContext.Workspace, caseContext.StagingName())
	if err != nil {
		return fatal(KindArchive, err)
	}
	archivePath := caseContext.Path(caseContext.ArchiveName())
	if err := builder.Pack(ctx, staging, archivePath); err != nil {
		return fatal(KindArchive, err)
	}
	s.logger.Info("archive packed", "archive", caseContext.ArchiveName())

	encryptedPath, keyPath, err := s.encrypt(ctx, archivePath)
	if err != nil {
		return err
	}

	digest, err := ledger.HashFile(encryptedPath)
	if err != nil {
		return fatal(KindLedger, err)
	}
	if err := integrity.AppendFinal(ledger.Entry{Path: caseContext.EncryptedName(), Digest: digest}); err != nil {
		return fatal(KindLedger, err)
	}
	s.summary.EncryptedPath = encryptedPath
	s.summary.EncryptedSHA256 = digest
	s.summary.KeyPath = keyPath
	s.logger.Info("final ledger entry appended", "path", caseContext.EncryptedName(), "sha256", digest)

	if err := shred.DestroyPlaintext(caseContext.Workspace, caseContext.Retained(), custody.ReportFiles, shredder); err != nil {
		return fatal(KindCleanup, err)
	}
	s.logger.Info("plaintext destroyed", "shredder", shredder.Name(), "retained", caseContext.Retained())
	return nil
}

// encrypt seals archivePath. The plaintext archive is destroyed
// whether or not encryption succeeds.
func (s *sealer) encrypt(ctx context.Context, archivePath string) (string, string, error) {
	caseContext := s.caseContext
	encryptedPath := caseContext.Path(caseContext.EncryptedName())
	keyPath := caseContext.Path(caseContext.KeyFileName())

	defer func() {
		if err := s.options.Shredder.Remove(archivePath); err != nil {
			s.logger.Error("destroying plaintext archive", "path", archivePath, "error", err)
		}
	}()

	key, err := vault.GenerateKey()
	if err != nil {
		return "", "", fatal(KindKey, err)
	}
	defer key.Close()

	banner := vault.Banner{
		Archive:    caseContext.EncryptedName(),
		Cipher:     s.options.Vault.Cipher,
		Iterations: max(s.options.Vault.Iterations, vault.MinIterations),
	}
	if banner.Cipher == "" {
		banner.Cipher = vault.CipherOpenSSL
	}
	if err := vault.PersistKey(key, keyPath, banner); err != nil {
		return "", "", fatal(KindKey, err)
	}
	s.logger.Info("key file written", "path", keyPath)

	if err := s.options.Vault.Encrypt(ctx, archivePath, encryptedPath, key); err != nil {
		// A key without its archive is useless.
		os.Remove(keyPath)
		if errors.Is(err, vault.ErrEmptyOutput) {
			return "", "", fatal(KindMissingOutput, err)
		}
		return "", "", fatal(KindEncryption, err)
	}

	size, err := checkEncryptedOutput(encryptedPath, keyPath)
	if err != nil {
		return "", "", err
	}
	s.logger.Info("archive encrypted", "path", encryptedPath, "cipher", banner.Cipher, "bytes", size)
	return encryptedPath, keyPath, nil
}

// checkEncryptedOutput returns the size of the encrypted archive. A
// missing or empty archive is fatal, and the key file written for it
// is removed along with whatever output exists.
func checkEncryptedOutput(encryptedPath, keyPath string) (int64, error) {
	info, err := os.Stat(encryptedPath)
	if err == nil && info.Size() > 0 {
		return info.Size(), nil
	}
	os.Remove(encryptedPath)
	os.Remove(keyPath)
	return 0, fatal(KindMissingOutput, fmt.Errorf("%s", encryptedPath))
}

func (s *sealer) removeStale(names ...string) {
	for _, name := range names {
		path := s.caseContext.Path(name)
		if _, err := os.Lstat(path); err != nil {
			continue
		}
		s.logger.Warn("removing artifact of an earlier incomplete seal", "path", path)
		if err := s.options.Shredder.Remove(path); err != nil {
			s.logger.Error("removing stale artifact", "path", path, "error", err)
		}
	}
}
