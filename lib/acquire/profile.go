// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package acquire

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodyworks/custody/lib/casefile"
	"github.com/custodyworks/custody/lib/device"
)

// profileCommands are captured into device_info/, one file each.
var profileCommands = []struct {
	file string
	args []string
}{
	{"getprop.txt", []string{"getprop"}},
	{"packages.txt", []string{"pm", "list", "packages", "-f"}},
	{"mounts.txt", []string{"mount"}},
	{"disk_usage.txt", []string{"df", "-h"}},
	{"date.txt", []string{"date"}},
	{"battery.txt", []string{"dumpsys", "battery"}},
	{"settings_system.txt", []string{"settings", "list", "system"}},
	{"settings_secure.txt", []string{"settings", "list", "secure"}},
	{"settings_global.txt", []string{"settings", "list", "global"}},
}

func (p *Pipeline) profile(ctx context.Context) device.Outcome {
	directory := p.caseContext.Path(casefile.DeviceInfo)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return device.Failed(directory, err)
	}

	var outcomes []device.Outcome
	for _, command := range profileCommands {
		result := p.link.Shell(ctx, command.args...)
		outcome := result.Outcome
		if outcome.OK() {
			path := filepath.Join(directory, command.file)
			if err := os.WriteFile(path, []byte(result.Stdout), 0o644); err != nil {
				outcome = device.Failed(command.file, fmt.Errorf("writing %s: %w", path, err))
			}
		}
		p.logTarget(StageProfile, command.file, outcome)
		outcomes = append(outcomes, outcome)
	}
	return device.Combine(outcomes)
}
