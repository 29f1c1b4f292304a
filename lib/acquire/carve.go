// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package acquire

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodyworks/custody/lib/device"
)

// carvers maps a carving tool to its argument list for an image and an
// output directory. Tools that insist on creating their own output
// directory get a path that does not exist yet.
var carvers = map[string]func(image, output string) []string{
	"foremost": func(image, output string) []string {
		return []string{"-Q", "-i", image, "-o", output}
	},
	"scalpel": func(image, output string) []string {
		return []string{"-o", output, image}
	},
	"photorec": func(image, output string) []string {
		return []string{"/log", "/d", filepath.Join(output, "recup_dir"), "/cmd", image,
			"partition_none,fileopt,everything,enable,search"}
	},
	"bulk_extractor": func(image, output string) []string {
		return []string{"-o", output, image}
	},
}

// carversNeedingDirectory create files inside an existing directory
// rather than creating it.
var carversNeedingDirectory = map[string]bool{"photorec": true}

// FindImage returns the compressed physical image in workspace, if any.
func FindImage(workspace string) (string, Codec, bool) {
	matches, _ := filepath.Glob(filepath.Join(workspace, PhysicalDir, ImageBase+".*"))
	for _, match := range matches {
		if strings.HasSuffix(match, ".sha256") {
			continue
		}
		if codec, ok := CodecForFile(match); ok {
			return match, codec, true
		}
	}
	return "", Codec{}, false
}

type carvingTool struct {
	name string
	path string
}

func (p *Pipeline) availableCarvers() []carvingTool {
	var tools []carvingTool
	for _, name := range p.options.CarvingTools {
		if _, known := carvers[name]; !known {
			p.logger.Warn("no invocation known for carving tool", "tool", name)
			continue
		}
		if p.options.LookupTool == nil {
			continue
		}
		path, err := p.options.LookupTool(name)
		if err != nil {
			p.logger.Info("carving tool not installed", "tool", name)
			continue
		}
		tools = append(tools, carvingTool{name: name, path: path})
	}
	return tools
}

// carve decompresses the physical image and runs each installed
// carving tool over it. The decompressed copy is always removed.
func (p *Pipeline) carve(ctx context.Context) device.Outcome {
	imagePath, codec, ok := FindImage(p.caseContext.Workspace)
	if !ok {
		return device.Skipped("no physical image")
	}
	tools := p.availableCarvers()
	if len(tools) == 0 {
		return device.Skipped("no carving tools installed")
	}

	workDirectory := p.caseContext.Path(CarvingDir)
	defer p.remove(workDirectory)

	rawImage := filepath.Join(workDirectory, ImageBase)
	if err := decompressImage(ctx, imagePath, rawImage, codec); err != nil {
		return device.Failed("decompressing image", err)
	}

	outcomes := make([]device.Outcome, 0, len(tools))
	for _, tool := range tools {
		if err := ctx.Err(); err != nil {
			outcomes = append(outcomes, device.Failed(tool.name, err))
			break
		}
		outcome := p.runCarver(ctx, tool, rawImage)
		p.logTarget(StageCarve, tool.name, outcome)
		outcomes = append(outcomes, outcome)
	}
	return device.Combine(outcomes)
}

func (p *Pipeline) runCarver(ctx context.Context, tool carvingTool, rawImage string) device.Outcome {
	output := p.caseContext.Path(CarvedDir, tool.name)
	parent := output
	if !carversNeedingDirectory[tool.name] {
		parent = filepath.Dir(output)
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return device.Failed(tool.name, err)
	}

	args := carvers[tool.name](rawImage, output)
	exitStatus, stderr, err := p.options.Runner.Run(ctx, io.Discard, tool.path, args...)
	switch {
	case err != nil:
		return device.Failed(tool.name, err)
	case exitStatus != 0:
		return device.Failed(tool.name, fmt.Errorf("exit status %d (stderr: %s)", exitStatus, stderr))
	default:
		return device.Succeeded(output)
	}
}

func decompressImage(ctx context.Context, source, destination string, codec Codec) error {
	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return err
	}
	input, err := os.Open(source)
	if err != nil {
		return err
	}
	defer input.Close()

	decompressor, err := codec.Reader(input)
	if err != nil {
		return fmt.Errorf("opening %s: %w", source, err)
	}
	defer decompressor.Close()

	output, err := os.OpenFile(destination, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(output, contextReader{ctx: ctx, reader: decompressor}); err != nil {
		output.Close()
		return fmt.Errorf("decompressing %s: %w", source, err)
	}
	return output.Close()
}

// contextReader stops a long copy once ctx is done.
type contextReader struct {
	ctx    context.Context
	reader io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.reader.Read(p)
}
