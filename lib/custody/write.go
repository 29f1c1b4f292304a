// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package custody

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodyworks/custody/lib/casefile"
	"github.com/custodyworks/custody/lib/codec"
)

// Report files. They are archived with the evidence and then destroyed.
const (
	ReportMarkdown = "custody_report.md"
	ReportHTML     = "custody_report.html"
	RecordCBOR     = "custody_record.cbor"
)

// ReportFiles lists the plaintext report files Write produces.
var ReportFiles = []string{ReportMarkdown, ReportHTML, RecordCBOR}

// EncodeCBOR encodes the record with core deterministic CBOR, so equal
// records always produce identical bytes.
func EncodeCBOR(record Record) ([]byte, error) {
	return codec.Marshal(record)
}

// DecodeCBOR is the inverse of EncodeCBOR.
func DecodeCBOR(data []byte) (Record, error) {
	var record Record
	err := codec.Unmarshal(data, &record)
	return record, err
}

// Write renders the record into workspace. On any failure every file
// it wrote is removed and the error returned; the caller treats that
// as fatal.
func Write(record Record, workspace string) (err error) {
	metadata, err := json.MarshalIndent(record.Metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	page, err := HTML(record)
	if err != nil {
		return err
	}
	encoded, err := EncodeCBOR(record)
	if err != nil {
		return fmt.Errorf("encoding custody record: %w", err)
	}

	outputs := []struct {
		name string
		data []byte
	}{
		{casefile.MetadataFile, append(metadata, '\n')},
		{ReportMarkdown, Markdown(record)},
		{ReportHTML, page},
		{RecordCBOR, encoded},
	}

	var written []string
	defer func() {
		if err != nil {
			for _, path := range written {
				os.Remove(path)
			}
		}
	}()
	for _, output := range outputs {
		path := filepath.Join(workspace, output.name)
		created, err := writeSynced(path, output.data)
		if created {
			written = append(written, path)
		}
		if err != nil {
			return fmt.Errorf("writing %s: %w", output.name, err)
		}
	}
	return nil
}

// writeSynced writes and fsyncs path. created reports whether the
// file was opened, and so needs removing if the write failed.
func writeSynced(path string, data []byte) (created bool, err error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return false, err
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return true, err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return true, err
	}
	return true, file.Close()
}

// ReadMetadata loads a metadata.json.
func ReadMetadata(path string) (Metadata, error) {
	var metadata Metadata
	data, err := os.ReadFile(path)
	if err != nil {
		return metadata, err
	}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("parsing %s: %w", path, err)
	}
	if metadata.CaseID == "" && metadata.DeviceID == "" {
		return metadata, errors.New("metadata record has neither case nor device id")
	}
	return metadata, nil
}
