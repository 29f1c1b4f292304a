// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/custodyworks/custody/lib/device"
)

// packagePattern matches Android application ids. Anything else is
// refused before it becomes a directory name.
var packagePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(\.[A-Za-z0-9_]+)+$`)

// ParsePackages extracts ids from "pm list packages" output, sorted
// and deduplicated.
func ParsePackages(output string) []string {
	var packages []string
	for line := range strings.Lines(output) {
		name, found := strings.CutPrefix(strings.TrimSpace(line), "package:")
		if !found || name == "" {
			continue
		}
		packages = append(packages, name)
	}
	slices.Sort(packages)
	return slices.Compact(packages)
}

// appData collects the private data of every third-party package that
// permits run-as. Packages are collected by a bounded pool; one
// package's failure never touches another. Per-package results are
// logged afterwards in package order so the log does not depend on
// scheduling.
func (p *Pipeline) appData(ctx context.Context) device.Outcome {
	listing := p.link.Shell(ctx, "pm", "list", "packages", "-3")
	if !listing.Outcome.OK() {
		return device.Failed("listing user packages", listing.Outcome.Err)
	}
	packages := ParsePackages(listing.Stdout)
	if len(packages) == 0 {
		return device.Skipped("no user-installed packages")
	}

	root := p.caseContext.Path(AppDataDir)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return device.Failed(root, err)
	}

	outcomes := make([]device.Outcome, len(packages))
	var group errgroup.Group
	group.SetLimit(p.options.AppDataWorkers)
	for index, name := range packages {
		group.Go(func() error {
			outcomes[index] = p.collectPackage(ctx, name)
			return nil
		})
	}
	group.Wait()

	for index, name := range packages {
		outcome := outcomes[index]
		if outcome.Status == device.StatusSkipped {
			p.logger.Debug("skipped", "stage", StageAppData, "target", name, "reason", outcome.Detail)
			continue
		}
		p.logTarget(StageAppData, name, outcome)
	}

	combined := device.Combine(outcomes)
	if combined.Status == device.StatusSkipped {
		return device.Skipped("no package permits run-as")
	}
	return combined
}

// collectPackage probes run-as and, when it is available, streams a
// tar of the package's data directory into app_data/<package>/.
func (p *Pipeline) collectPackage(ctx context.Context, name string) device.Outcome {
	if !packagePattern.MatchString(name) {
		return device.Failed(name, fmt.Errorf("refusing unusual package id %q", name))
	}
	probe := p.link.Shell(ctx, "run-as", name, "id")
	if !probe.Outcome.OK() {
		return device.Skipped("run-as unavailable")
	}

	target := p.caseContext.Path(AppDataDir, name)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return device.Failed(name, err)
	}

	reader, writer := io.Pipe()
	streamed := make(chan device.Outcome, 1)
	go func() {
		outcome := p.link.Stream(ctx, writer, "run-as", name, "tar", "-cf", "-", ".")
		if outcome.OK() {
			writer.Close()
		} else {
			writer.CloseWithError(streamError(outcome))
		}
		streamed <- outcome
	}()

	files, extractErr := ExtractTar(reader, target)
	if extractErr == nil {
		// Drain the end-of-archive padding so the stream finishes.
		_, extractErr = io.Copy(io.Discard, reader)
	}
	reader.CloseWithError(errExtractionStopped)
	outcome := <-streamed

	switch {
	case outcome.OK() && extractErr == nil:
		return device.Succeeded(fmt.Sprintf("%d files", files))
	case files > 0:
		return device.Partial(fmt.Sprintf("%d files before failure", files), firstError(outcome, extractErr))
	default:
		p.remove(target)
		return device.Failed(name, firstError(outcome, extractErr))
	}
}

var errExtractionStopped = errors.New("extraction stopped")

func streamError(outcome device.Outcome) error {
	if outcome.Err != nil {
		return outcome.Err
	}
	return errors.New(outcome.String())
}

func firstError(outcome device.Outcome, extractErr error) error {
	if !outcome.OK() {
		return streamError(outcome)
	}
	return extractErr
}
