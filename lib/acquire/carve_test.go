// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package acquire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/custodyworks/custody/lib/casefile"
	"github.com/custodyworks/custody/lib/device"
)

// carvingRunner pretends to be a carving tool: it checks the raw
// image and writes one recovered file into the output directory.
type carvingRunner struct {
	mu          sync.Mutex
	invocations [][]string
	imageSeen   []byte
	failTool    string
}

func (r *carvingRunner) Run(ctx context.Context, stdout io.Writer, name string, args ...string) (int, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invocations = append(r.invocations, append([]string{name}, args...))

	if filepath.Base(name) == r.failTool {
		return 1, "carving failed", nil
	}
	var image, output string
	for index, arg := range args {
		switch arg {
		case "-i":
			image = args[index+1]
		case "-o":
			output = args[index+1]
		}
	}
	if image == "" {
		image = args[len(args)-1]
	}
	data, err := os.ReadFile(image)
	if err != nil {
		return 1, err.Error(), nil
	}
	r.imageSeen = data
	if err := os.MkdirAll(output, 0o755); err != nil {
		return 1, err.Error(), nil
	}
	os.WriteFile(filepath.Join(output, "00000001.jpg"), []byte("carved"), 0o644)
	return 0, "", nil
}

func lookupOnly(names ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		for _, candidate := range names {
			if candidate == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", fmt.Errorf("%s not found", name)
	}
}

func writeCompressedImage(t *testing.T, caseContext casefile.Context, raw []byte) {
	t.Helper()
	codec, err := CodecByName("gzip")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(caseContext.Path(PhysicalDir), 0o755); err != nil {
		t.Fatal(err)
	}
	var buffer bytes.Buffer
	writer, err := codec.Writer(&buffer)
	if err != nil {
		t.Fatal(err)
	}
	writer.Write(raw)
	writer.Close()
	if err := os.WriteFile(caseContext.Path(PhysicalDir, ImageBase+".gz"), buffer.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(caseContext.Path(PhysicalDir, ImageBase+".gz.sha256"), []byte("digest"), 0o644)
}

func TestCarve(t *testing.T) {
	caseContext := testContext(t)
	raw := []byte("raw userdata with JFIF markers")
	writeCompressedImage(t, caseContext, raw)

	runner := &carvingRunner{}
	pipeline := New(nil, caseContext, Options{
		CarvingTools: []string{"foremost", "scalpel", "photorec", "bulk_extractor"},
		LookupTool:   lookupOnly("foremost", "bulk_extractor"),
		Runner:       runner,
	}, discardLogger())

	outcome := pipeline.carve(context.Background())
	if !outcome.OK() {
		t.Fatalf("carve() = %v", outcome)
	}
	if len(runner.invocations) != 2 {
		t.Fatalf("ran %d tools, want 2", len(runner.invocations))
	}
	if runner.invocations[0][0] != "/usr/bin/foremost" || runner.invocations[1][0] != "/usr/bin/bulk_extractor" {
		t.Errorf("unexpected invocations: %v", runner.invocations)
	}
	if !bytes.Equal(runner.imageSeen, raw) {
		t.Errorf("tools saw %q, want the decompressed image", runner.imageSeen)
	}
	for _, tool := range []string{"foremost", "bulk_extractor"} {
		if _, err := os.Stat(caseContext.Path(CarvedDir, tool, "00000001.jpg")); err != nil {
			t.Errorf("%s output missing: %v", tool, err)
		}
	}
	if _, err := os.Stat(caseContext.Path(CarvingDir)); !errors.Is(err, os.ErrNotExist) {
		t.Error("decompressed image left behind")
	}
}

// recordingRemover stands in for the secure shredder and notes what
// reached it, including the raw image bytes it was handed.
type recordingRemover struct {
	mu       sync.Mutex
	removed  []string
	rawImage []byte
	fail     bool
}

func (r *recordingRemover) Remove(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, path)
	if data, err := os.ReadFile(filepath.Join(path, ImageBase)); err == nil {
		r.rawImage = data
	}
	if r.fail {
		return errors.New("overwrite failed")
	}
	return os.RemoveAll(path)
}

func TestCarveDestroysRawImageThroughRemove(t *testing.T) {
	caseContext := testContext(t)
	raw := []byte("raw userdata")
	writeCompressedImage(t, caseContext, raw)

	remover := &recordingRemover{}
	outcome := New(nil, caseContext, Options{
		CarvingTools: []string{"foremost"},
		LookupTool:   lookupOnly("foremost"),
		Runner:       &carvingRunner{},
		Remove:       remover.Remove,
	}, discardLogger()).carve(context.Background())
	if !outcome.OK() {
		t.Fatalf("carve() = %v", outcome)
	}
	if len(remover.removed) != 1 || remover.removed[0] != caseContext.Path(CarvingDir) {
		t.Fatalf("Remove called for %v, want the carving directory", remover.removed)
	}
	if !bytes.Equal(remover.rawImage, raw) {
		t.Errorf("Remove saw image %q, want the decompressed image", remover.rawImage)
	}
	if _, err := os.Stat(caseContext.Path(CarvingDir)); !errors.Is(err, os.ErrNotExist) {
		t.Error("decompressed image left behind")
	}
}

func TestCarveFallsBackWhenRemoveFails(t *testing.T) {
	caseContext := testContext(t)
	writeCompressedImage(t, caseContext, []byte("raw"))

	remover := &recordingRemover{fail: true}
	New(nil, caseContext, Options{
		CarvingTools: []string{"foremost"},
		LookupTool:   lookupOnly("foremost"),
		Runner:       &carvingRunner{},
		Remove:       remover.Remove,
	}, discardLogger()).carve(context.Background())
	if len(remover.removed) != 1 {
		t.Errorf("Remove called for %v", remover.removed)
	}
	if _, err := os.Stat(caseContext.Path(CarvingDir)); !errors.Is(err, os.ErrNotExist) {
		t.Error("decompressed image left behind after a failed secure removal")
	}
}

func TestCarvePartialWhenOneToolFails(t *testing.T) {
	caseContext := testContext(t)
	writeCompressedImage(t, caseContext, []byte("raw"))

	runner := &carvingRunner{failTool: "scalpel"}
	outcome := New(nil, caseContext, Options{
		CarvingTools: []string{"foremost", "scalpel"},
		LookupTool:   lookupOnly("foremost", "scalpel"),
		Runner:       runner,
	}, discardLogger()).carve(context.Background())
	if outcome.Status != device.StatusPartial {
		t.Errorf("carve() = %v, want PARTIAL", outcome)
	}
}

func TestCarveSkippedWithoutTools(t *testing.T) {
	caseContext := testContext(t)
	writeCompressedImage(t, caseContext, []byte("raw"))

	runner := &carvingRunner{}
	outcome := New(nil, caseContext, Options{
		CarvingTools: []string{"foremost", "scalpel", "photorec", "bulk_extractor"},
		LookupTool:   lookupOnly(),
		Runner:       runner,
	}, discardLogger()).carve(context.Background())
	if outcome.Status != device.StatusSkipped {
		t.Errorf("carve() = %v, want SKIPPED", outcome)
	}
	if len(runner.invocations) != 0 {
		t.Errorf("tools ran: %v", runner.invocations)
	}
	if _, err := os.Stat(caseContext.Path(CarvingDir)); !errors.Is(err, os.ErrNotExist) {
		t.Error("image decompressed with no tool to use it")
	}
}

func TestCarveSkippedWithoutImage(t *testing.T) {
	outcome := New(nil, testContext(t), Options{
		CarvingTools: []string{"foremost"},
		LookupTool:   lookupOnly("foremost"),
		Runner:       &carvingRunner{},
	}, discardLogger()).carve(context.Background())
	if outcome.Status != device.StatusSkipped {
		t.Errorf("carve() = %v, want SKIPPED", outcome)
	}
}

// A run with no carving tools still reaches DONE with CARVE skipped.
func TestRunCompletesWithoutCarvingTools(t *testing.T) {
	caseContext := testContext(t)
	fake := rootedFake(bytes.Repeat([]byte{0xAB}, 8192))
	results, err := New(fake, caseContext, Options{
		CarvingTools: []string{"foremost", "scalpel", "photorec", "bulk_extractor"},
		LookupTool:   lookupOnly(),
	}, discardLogger()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	last := results[len(results)-1]
	if last.Stage != StageCarve || last.Outcome.Status != device.StatusSkipped {
		t.Errorf("last result = %s %s, want CARVE SKIPPED", last.Stage, last.Outcome.Status)
	}
	image := results[len(results)-2]
	if image.Stage != StagePhysicalImage || !image.Outcome.OK() {
		t.Errorf("physical image = %v, want SUCCESS", image.Outcome)
	}
}
