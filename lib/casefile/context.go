// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package casefile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// TimestampLayout formats the run timestamp in workspace and artifact
// names.
const TimestampLayout = "20060102_150405"

// Fixed names inside a workspace.
const (
	LedgerFile   = "hashes.txt"
	MetadataFile = "metadata.json"
	LogFile      = "acquisition.log"
	DeviceInfo   = "device_info"
)

// ErrNoWorkspace is returned by Resume when the evidence root holds no
// workspace to resume.
var ErrNoWorkspace = errors.New("no existing case workspace to resume")

// Inputs are the investigator-supplied case identifiers. Any of them
// may be empty.
type Inputs struct {
	CaseID           string
	InvestigatorName string
	InvestigatorID   string
	JobID            string
}

// Context identifies one acquisition run. It is a value type: copies
// handed to components cannot affect the run's own.
type Context struct {
	CaseID           string
	InvestigatorName string
	InvestigatorID   string
	JobID            string
	DeviceID         string
	DeviceModel      string
	Timestamp        time.Time
	Workspace        string
}

// Stamp returns the run timestamp in TimestampLayout.
func (c Context) Stamp() string {
	return c.Timestamp.Format(TimestampLayout)
}

// Path joins name onto the workspace directory.
func (c Context) Path(name ...string) string {
	return filepath.Join(append([]string{c.Workspace}, name...)...)
}

// ArchiveName is the transient plaintext archive.
func (c Context) ArchiveName() string {
	return "evidence_" + c.Stamp() + ".tar.gz"
}

// EncryptedName is the sealed deliverable.
func (c Context) EncryptedName() string {
	return c.ArchiveName() + ".enc"
}

// KeyFileName holds the archive passphrase.
func (c Context) KeyFileName() string {
	return "decryption_key_" + c.Stamp() + ".txt"
}

// StagingName is the directory the archive is packed from.
func (c Context) StagingName() string {
	return "staging_" + c.Stamp()
}

// Retained lists the workspace entries that survive a completed run.
func (c Context) Retained() []string {
	return []string{
		c.EncryptedName(),
		c.KeyFileName(),
		LedgerFile,
		MetadataFile,
		LogFile,
	}
}

// WorkspaceName returns the directory name for a run. Characters that
// are awkward in a path, such as the colon in a network serial, become
// underscores.
func WorkspaceName(deviceID string, timestamp time.Time) string {
	return sanitize(deviceID) + "_" + timestamp.Format(TimestampLayout)
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]`)

func sanitize(deviceID string) string {
	cleaned := unsafeName.ReplaceAllString(deviceID, "_")
	cleaned = strings.Trim(cleaned, ".")
	if cleaned == "" {
		return "device"
	}
	return cleaned
}

// Create makes a new workspace under root and returns its context.
// The workspace directory must not already exist.
func Create(root string, inputs Inputs, deviceID, deviceModel string, now time.Time) (Context, error) {
	timestamp := now.Truncate(time.Second)
	workspace := filepath.Join(root, WorkspaceName(deviceID, timestamp))
	if err := os.Mkdir(workspace, 0o700); err != nil {
		return Context{}, fmt.Errorf("creating workspace %s: %w", workspace, err)
	}
	return Context{
		CaseID:           inputs.CaseID,
		InvestigatorName: inputs.InvestigatorName,
		InvestigatorID:   inputs.InvestigatorID,
		JobID:            inputs.JobID,
		DeviceID:         deviceID,
		DeviceModel:      deviceModel,
		Timestamp:        timestamp,
		Workspace:        workspace,
	}, nil
}

var workspacePattern = regexp.MustCompile(`^(.+)_(\d{8}_\d{6})$`)

// Resume selects the most recently modified workspace under root. The
// device id and timestamp come from the directory name, the model from
// the profile captured during the original run. Nothing is created.
func Resume(root string, inputs Inputs) (Context, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Context{}, ErrNoWorkspace
		}
		return Context{}, fmt.Errorf("reading evidence root %s: %w", root, err)
	}

	var (
		newest     string
		newestTime time.Time
		deviceID   string
		timestamp  time.Time
	)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		match := workspacePattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		parsed, err := time.ParseInLocation(TimestampLayout, match[2], time.Local)
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		// Ties break on name so selection is stable.
		if newest == "" || info.ModTime().After(newestTime) ||
			(info.ModTime().Equal(newestTime) && entry.Name() > newest) {
			newest = entry.Name()
			newestTime = info.ModTime()
			deviceID = match[1]
			timestamp = parsed
		}
	}
	if newest == "" {
		return Context{}, ErrNoWorkspace
	}

	workspace := filepath.Join(root, newest)
	return Context{
		CaseID:           inputs.CaseID,
		InvestigatorName: inputs.InvestigatorName,
		InvestigatorID:   inputs.InvestigatorID,
		JobID:            inputs.JobID,
		DeviceID:         deviceID,
		DeviceModel:      recordedModel(workspace),
		Timestamp:        timestamp,
		Workspace:        workspace,
	}, nil
}

// recordedModel reads ro.product.model from the getprop dump written
// during profiling.
func recordedModel(workspace string) string {
	data, err := os.ReadFile(filepath.Join(workspace, DeviceInfo, "getprop.txt"))
	if err != nil {
		return "unknown"
	}
	for line := range strings.Lines(string(data)) {
		key, value, found := strings.Cut(strings.TrimSpace(line), ": ")
		if found && key == "[ro.product.model]" {
			model := strings.Trim(value, "[]")
			if model != "" {
				return model
			}
		}
	}
	return "unknown"
}
