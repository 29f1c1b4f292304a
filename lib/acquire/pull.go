// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package acquire

import (
	"context"
	"os"

	"github.com/custodyworks/custody/lib/device"
)

func (p *Pipeline) logicalPull(ctx context.Context) device.Outcome {
	return p.pullAll(ctx, StageLogicalPull, p.options.LogicalPaths, LogicalDir)
}

func (p *Pipeline) systemPull(ctx context.Context) device.Outcome {
	return p.pullAll(ctx, StageSystemPull, p.options.SystemPaths, SystemDir)
}

// pullAll pulls each remote path into the named workspace directory.
// Each path is independent.
func (p *Pipeline) pullAll(ctx context.Context, stage StageName, remotes []string, directory string) device.Outcome {
	if len(remotes) == 0 {
		return device.Skipped("no paths configured")
	}
	local := p.caseContext.Path(directory)
	if err := os.MkdirAll(local, 0o755); err != nil {
		return device.Failed(local, err)
	}

	outcomes := make([]device.Outcome, 0, len(remotes))
	for _, remote := range remotes {
		outcome := p.link.Pull(ctx, remote, local)
		p.logTarget(stage, remote, outcome)
		outcomes = append(outcomes, outcome)
	}
	return device.Combine(outcomes)
}

// deviceBackup requests a full adb backup. A declined request leaves
// an empty file, which is removed.
func (p *Pipeline) deviceBackup(ctx context.Context) device.Outcome {
	directory := p.caseContext.Path(BackupDir)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return device.Failed(directory, err)
	}
	path := p.caseContext.Path(BackupDir, "backup.ab")

	p.logger.Info("requesting device backup, confirm on the device screen", "path", path)
	outcome := p.link.RequestBackup(ctx, path)
	if !outcome.OK() {
		p.remove(path)
		os.Remove(directory)
	}
	return outcome
}
