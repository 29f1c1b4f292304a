// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/custodyworks/custody/cmd/custody/cli"
	"github.com/custodyworks/custody/lib/acquire"
	"github.com/custodyworks/custody/lib/casefile"
	"github.com/custodyworks/custody/lib/casework"
	"github.com/custodyworks/custody/lib/config"
	"github.com/custodyworks/custody/lib/device"
	"github.com/custodyworks/custody/lib/shred"
	"github.com/custodyworks/custody/lib/vault"
)

type acquireFlags struct {
	configPath   string
	evidenceRoot string
	inputs       casefile.Inputs
	resume       bool
	timeout      time.Duration
	verbose      bool
}

func acquireCommand() *cli.Command {
	var flags acquireFlags
	return &cli.Command{
		Name:    "acquire",
		Summary: "Acquire evidence from the attached device and seal it",
		Description: `Acquire evidence from the first ready device reported by adb, or with
--resume seal the most recently modified workspace without a device.

Case details not given as flags are prompted for when stdin is a
terminal. Interrupting the run leaves the workspace for --resume.`,
		Usage: "custody acquire [flags]",
		Examples: []cli.Example{
			{
				Description: "Acquire from the attached device",
				Command:     "custody acquire --case-id CASE-2026-0142 --investigator 'R. Okafor' --investigator-id INV-7",
			},
			{
				Description: "Seal the workspace of an interrupted run",
				Command:     "custody acquire --resume --case-id CASE-2026-0142",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("acquire", pflag.ContinueOnError)
			flagSet.StringVar(&flags.configPath, "config", "", "configuration file (default $"+config.EnvConfig+")")
			flagSet.StringVar(&flags.evidenceRoot, "evidence-root", "", "directory holding case workspaces (overrides configuration)")
			flagSet.StringVar(&flags.inputs.CaseID, "case-id", "", "case identifier")
			flagSet.StringVar(&flags.inputs.InvestigatorName, "investigator", "", "investigator name")
			flagSet.StringVar(&flags.inputs.InvestigatorID, "investigator-id", "", "investigator identifier")
			flagSet.StringVar(&flags.inputs.JobID, "job-id", "", "job identifier")
			flagSet.BoolVar(&flags.resume, "resume", false, "seal the most recent workspace instead of acquiring")
			flagSet.DurationVar(&flags.timeout, "timeout", 0, "abandon the run after this long (0 = no limit)")
			flagSet.BoolVarP(&flags.verbose, "verbose", "v", false, "log debug detail to the console")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			return runAcquire(&flags)
		},
	}
}

func runAcquire(flags *acquireFlags) error {
	logger := cli.NewCommandLogger(flags.verbose)

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	if flags.evidenceRoot != "" {
		cfg.Paths.EvidenceRoot = flags.evidenceRoot
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	lock, err := casefile.LockRoot(cfg.Paths.EvidenceRoot)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	prompter := cli.NewPrompter()
	for _, field := range []struct {
		label string
		value *string
	}{
		{"Case ID", &flags.inputs.CaseID},
		{"Investigator name", &flags.inputs.InvestigatorName},
		{"Investigator ID", &flags.inputs.InvestigatorID},
		{"Job ID", &flags.inputs.JobID},
	} {
		if err := prompter.Ask(field.label, field.value); err != nil {
			return err
		}
	}

	adb := cfg.Acquisition.ADB
	if !flags.resume {
		adb, err = cfg.BinaryPath(cfg.Acquisition.ADB)
		if err != nil {
			return err
		}
	}

	shredder, err := shred.Probe(cfg.Paths.EvidenceRoot, cfg.Cleanup.SecureDelete, cfg.Cleanup.OverwritePasses, logger)
	if err != nil {
		return err
	}
	logger.Debug("secure delete selected", "shredder", shredder.Name())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if flags.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flags.timeout)
		defer cancel()
	}

	runner := device.ExecRunner{}
	summary, runErr := casework.Run(ctx, casework.Options{
		EvidenceRoot: cfg.Paths.EvidenceRoot,
		Inputs:       flags.inputs,
		Resume:       flags.resume,
		ADB:          adb,
		Runner:       runner,
		Acquisition: acquire.Options{
			LogicalPaths:   cfg.Acquisition.LogicalPaths,
			SystemPaths:    cfg.Acquisition.SystemPaths,
			AppDataWorkers: cfg.Acquisition.AppDataWorkers,
			Compression:    cfg.Acquisition.ImageCompression,
			CarvingTools:   cfg.Acquisition.CarvingTools,
			LookupTool:     cfg.BinaryPath,
			Runner:         runner,
		},
		Vault: vault.Vault{
			Cipher:     vault.Cipher(cfg.Vault.Cipher),
			Iterations: cfg.Vault.Iterations,
		},
		Shredder: shredder,
		Logger:   logger,
	})
	if summary != nil {
		terminal := term.IsTerminal(int(os.Stdout.Fd()))
		width := 0
		if terminal {
			width, _, _ = term.GetSize(int(os.Stdout.Fd()))
		}
		renderSummary(os.Stdout, summary, runErr, terminal, width)
	}
	return runErr
}
