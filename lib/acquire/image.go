// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package acquire

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/custodyworks/custody/lib/device"
)

// ImageBase is the file name of the physical image before the codec
// extension.
const ImageBase = "userdata.img"

// blockDevicePattern restricts what may be interpolated into the dd
// command handed to su.
var blockDevicePattern = regexp.MustCompile(`^/dev/block/[A-Za-z0-9._/-]+$`)

// userdataLookups are tried in order to resolve the userdata
// partition. They are fixed strings run under su -c.
var userdataLookups = []string{
	"readlink -f /dev/block/by-name/userdata",
	"readlink -f /dev/block/bootdevice/by-name/userdata",
	"find /dev/block/platform -name userdata -print -quit",
}

// ValidBlockDevice reports whether path is safe to pass to dd.
func ValidBlockDevice(path string) bool {
	return blockDevicePattern.MatchString(path) && !strings.Contains(path, "..")
}

func (p *Pipeline) resolveUserdata(ctx context.Context) (string, bool) {
	for _, lookup := range userdataLookups {
		result := p.link.Shell(ctx, "su", "-c", lookup)
		if !result.Outcome.OK() {
			continue
		}
		candidate, _, _ := strings.Cut(strings.TrimSpace(result.Stdout), "\n")
		candidate = strings.TrimSpace(candidate)
		if ValidBlockDevice(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// physicalImage images the userdata partition through su and dd,
// compressing on the host. The SHA-256 of the compressed bytes is
// written beside the image. Without root or a resolvable partition the
// stage is SKIPPED.
func (p *Pipeline) physicalImage(ctx context.Context) device.Outcome {
	if !p.link.IsRooted(ctx) {
		return device.Skipped("device is not rooted")
	}
	blockDevice, ok := p.resolveUserdata(ctx)
	if !ok {
		return device.Skipped("userdata block device not found")
	}
	codec, err := CodecByName(p.options.Compression)
	if err != nil {
		return device.Failed("selecting compression", err)
	}

	directory := p.caseContext.Path(PhysicalDir)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return device.Failed(directory, err)
	}
	imagePath := filepath.Join(directory, ImageBase+codec.Extension)
	p.logger.Info("imaging block device", "device", blockDevice, "image", imagePath, "compression", codec.Name)

	digest, size, outcome := p.streamImage(ctx, blockDevice, imagePath, codec)
	if !outcome.OK() {
		p.remove(imagePath)
		os.Remove(directory)
		return outcome
	}

	sidecar := imagePath + ".sha256"
	line := digest + "  " + filepath.Base(imagePath) + "\n"
	if err := os.WriteFile(sidecar, []byte(line), 0o644); err != nil {
		return device.Partial("image written but digest sidecar failed", err)
	}
	return device.Succeeded(fmt.Sprintf("%s: %d compressed bytes, sha256 %s", blockDevice, size, digest))
}

func (p *Pipeline) streamImage(ctx context.Context, blockDevice, imagePath string, codec Codec) (string, int64, device.Outcome) {
	file, err := os.OpenFile(imagePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", 0, device.Failed(imagePath, err)
	}
	defer file.Close()

	hash := sha256.New()
	counter := &byteCounter{}
	compressor, err := codec.Writer(io.MultiWriter(file, hash, counter))
	if err != nil {
		return "", 0, device.Failed("creating compressor", err)
	}

	command := "dd if=" + blockDevice + " bs=4M 2>/dev/null"
	outcome := p.link.Stream(ctx, compressor, "su", "-c", command)
	if !outcome.OK() {
		compressor.Close()
		return "", 0, outcome
	}
	if err := compressor.Close(); err != nil {
		return "", 0, device.Failed("finishing compression", err)
	}
	if err := file.Sync(); err != nil {
		return "", 0, device.Failed(imagePath, err)
	}
	if err := file.Close(); err != nil {
		return "", 0, device.Failed(imagePath, err)
	}
	return hex.EncodeToString(hash.Sum(nil)), counter.n, outcome
}

type byteCounter struct {
	n int64
}

func (c *byteCounter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
