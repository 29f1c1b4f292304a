// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/custodyworks/custody/lib/casefile"
	"github.com/custodyworks/custody/lib/device"
)

// StageName identifies a pipeline stage.
type StageName string

const (
	StageIdentify      StageName = "IDENTIFY"
	StageProfile       StageName = "PROFILE"
	StageLogicalPull   StageName = "LOGICAL_PULL"
	StageSystemPull    StageName = "SYSTEM_PULL"
	StageAppData       StageName = "APP_DATA"
	StageDeviceBackup  StageName = "DEVICE_BACKUP"
	StagePhysicalImage StageName = "PHYSICAL_IMAGE"
	StageCarve         StageName = "CARVE"
)

// Policy says whether a stage failure ends the run.
type Policy string

const (
	Mandatory  Policy = "MANDATORY"
	BestEffort Policy = "BEST_EFFORT"
)

// Workspace subdirectories written by the stages.
const (
	LogicalDir  = "logical"
	SystemDir   = "system"
	AppDataDir  = "app_data"
	BackupDir   = "backup"
	PhysicalDir = "physical"
	CarvingDir  = "carving"
	CarvedDir   = "carved"
)

// Result records one stage's outcome.
type Result struct {
	Stage    StageName
	Policy   Policy
	Outcome  device.Outcome
	Duration time.Duration
}

// Options tune the stages.
type Options struct {
	// LogicalPaths are pulled into logical/.
	LogicalPaths []string

	// SystemPaths are pulled into system/.
	SystemPaths []string

	// AppDataWorkers bounds concurrent package collection. Values
	// below 1 mean 1.
	AppDataWorkers int

	// Compression is gzip, zstd or lz4.
	Compression string

	// CarvingTools are tried in order during CARVE.
	CarvingTools []string

	// LookupTool resolves a host tool name to a path. A nil
	// LookupTool finds nothing.
	LookupTool func(name string) (string, error)

	// Runner executes host carving tools.
	Runner device.Runner

	// Remove destroys plaintext a stage discards: partial pulls and
	// images, failed app extractions and the decompressed carving
	// image. Nil means os.RemoveAll.
	Remove func(path string) error
}

// Pipeline runs the stages after IDENTIFY for one case.
type Pipeline struct {
	link        device.Link
	caseContext casefile.Context
	options     Options
	logger      *slog.Logger
}

// New returns a pipeline for caseContext. link is nil when resuming
// an existing workspace.
func New(link device.Link, caseContext casefile.Context, options Options, logger *slog.Logger) *Pipeline {
	if options.AppDataWorkers < 1 {
		options.AppDataWorkers = 1
	}
	if options.Compression == "" {
		options.Compression = "gzip"
	}
	if options.Runner == nil {
		options.Runner = device.ExecRunner{}
	}
	return &Pipeline{
		link:        link,
		caseContext: caseContext,
		options:     options,
		logger:      logger,
	}
}

// remove destroys path with options.Remove, falling back to a plain
// removal so nothing is left behind when the shredder fails.
func (p *Pipeline) remove(path string) {
	if p.options.Remove != nil {
		err := p.options.Remove(path)
		if err == nil {
			return
		}
		p.logger.Warn("secure removal failed, removing plainly", "path", path, "error", err)
	}
	if err := os.RemoveAll(path); err != nil {
		p.logger.Error("removing discarded plaintext", "path", path, "error", err)
	}
}

type stage struct {
	name     StageName
	policy   Policy
	onDevice bool
	run      func(context.Context) device.Outcome
}

func (p *Pipeline) stages() []stage {
	return []stage{
		{StageProfile, BestEffort, true, p.profile},
		{StageLogicalPull, BestEffort, true, p.logicalPull},
		{StageSystemPull, BestEffort, true, p.systemPull},
		{StageAppData, BestEffort, true, p.appData},
		{StageDeviceBackup, BestEffort, true, p.deviceBackup},
		{StagePhysicalImage, BestEffort, true, p.physicalImage},
		{StageCarve, BestEffort, false, p.carve},
	}
}

// Stages lists every stage name in execution order, IDENTIFY first.
func Stages() []StageName {
	names := []StageName{StageIdentify}
	for _, stage := range (&Pipeline{}).stages() {
		names = append(names, stage.name)
	}
	return names
}

// ErrStageFailed wraps the failure of a mandatory stage.
var ErrStageFailed = errors.New("mandatory stage failed")

// Run executes the stages in order. It returns early only when ctx is
// done or a mandatory stage fails; best-effort failures are recorded
// in the results.
func (p *Pipeline) Run(ctx context.Context) ([]Result, error) {
	stages := p.stages()
	var results []Result

	for index, stage := range stages {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("acquisition abandoned", "before_stage", stage.name, "error", err)
			return results, fmt.Errorf("before stage %s: %w", stage.name, err)
		}

		p.logger.Info("stage starting", "stage", stage.name, "index", index+1, "total", len(stages))
		start := time.Now()

		var outcome device.Outcome
		if stage.onDevice && p.link == nil {
			outcome = device.Skipped("resuming existing workspace, no device link")
		} else {
			outcome = stage.run(ctx)
		}

		result := Result{
			Stage:    stage.name,
			Policy:   stage.policy,
			Outcome:  outcome,
			Duration: time.Since(start),
		}
		results = append(results, result)
		p.logResult(result)

		if stage.policy == Mandatory && outcome.Status == device.StatusFailed {
			return results, fmt.Errorf("%w: %s: %s", ErrStageFailed, stage.name, outcome)
		}
	}

	p.logger.Info("acquisition complete", "stages", len(results))
	return results, nil
}

func (p *Pipeline) logResult(result Result) {
	attributes := []any{
		"stage", result.Stage,
		"status", result.Outcome.Status,
		"duration", result.Duration.Round(time.Millisecond),
	}
	if result.Outcome.Detail != "" {
		attributes = append(attributes, "detail", result.Outcome.Detail)
	}
	switch result.Outcome.Status {
	case device.StatusFailed, device.StatusPartial:
		if result.Outcome.Err != nil {
			attributes = append(attributes, "error", result.Outcome.Err)
		}
		p.logger.Warn("stage finished", attributes...)
	default:
		p.logger.Info("stage finished", attributes...)
	}
}

// logTarget logs the outcome of one target inside a stage.
func (p *Pipeline) logTarget(stage StageName, target string, outcome device.Outcome) {
	switch outcome.Status {
	case device.StatusSuccess:
		p.logger.Info("collected", "stage", stage, "target", target)
	case device.StatusSkipped:
		p.logger.Info("skipped", "stage", stage, "target", target, "reason", outcome.Detail)
	default:
		p.logger.Warn("collection failed", "stage", stage, "target", target,
			"status", outcome.Status, "error", outcome.Err)
	}
}
