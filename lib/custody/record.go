// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package custody

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"github.com/custodyworks/custody/lib/casefile"
	"github.com/custodyworks/custody/lib/ledger"
	"github.com/custodyworks/custody/lib/version"
)

// FullListingLimit is the largest ledger listed in full. Larger
// ledgers are sampled.
const FullListingLimit = 200

// SampleSize is the number of entries shown for a sampled ledger.
const SampleSize = 10

// InitialAcquisition is the action of the first timeline event.
const InitialAcquisition = "Initial Evidence Acquisition"

// Metadata is the retained metadata record.
type Metadata struct {
	CaseID           string `json:"case_id" cbor:"case_id"`
	InvestigatorName string `json:"investigator_name" cbor:"investigator_name"`
	InvestigatorID   string `json:"investigator_id" cbor:"investigator_id"`
	JobID            string `json:"job_id" cbor:"job_id"`
	DeviceID         string `json:"device_id" cbor:"device_id"`
	DeviceModel      string `json:"device_model" cbor:"device_model"`
	Timestamp        string `json:"timestamp" cbor:"timestamp"`
	TotalHashedFiles int    `json:"total_hashed_files" cbor:"total_hashed_files"`
	LedgerBLAKE3     string `json:"ledger_blake3" cbor:"ledger_blake3"`
	ToolVersion      string `json:"tool_version" cbor:"tool_version"`
}

// Event is one custody timeline entry.
type Event struct {
	Time   time.Time `json:"time" cbor:"time"`
	Action string    `json:"action" cbor:"action"`
	Actor  string    `json:"actor" cbor:"actor"`
	Detail string    `json:"detail" cbor:"detail"`
}

// Listing is the hash table shown in the report.
type Listing struct {
	Complete bool           `cbor:"complete"`
	Total    int            `cbor:"total"`
	Entries  []ledger.Entry `cbor:"entries"`
}

// Heading titles the listing.
func (l Listing) Heading() string {
	if l.Complete {
		return fmt.Sprintf("All File Hashes (%d total)", l.Total)
	}
	return fmt.Sprintf("Sample Hashes (%d of %d)", len(l.Entries), l.Total)
}

// Signature is left blank for the investigator to complete on paper.
type Signature struct {
	Name   string `cbor:"name"`
	Signed bool   `cbor:"signed"`
}

// Record is the complete chain-of-custody record.
type Record struct {
	Metadata    Metadata  `cbor:"metadata"`
	GeneratedAt time.Time `cbor:"generated_at"`
	Timeline    []Event   `cbor:"timeline"`
	Hashes      Listing   `cbor:"hashes"`
	Signature   Signature `cbor:"signature"`
}

// Build derives the record. It does no I/O.
func Build(caseContext casefile.Context, snapshot []ledger.Entry, now time.Time) Record {
	digest := blake3.Sum256(ledger.Format(snapshot))

	listing := Listing{Complete: true, Total: len(snapshot)}
	shown := snapshot
	if len(snapshot) > FullListingLimit {
		listing.Complete = false
		shown = snapshot[:SampleSize]
	}
	listing.Entries = append([]ledger.Entry(nil), shown...)

	actor := caseContext.InvestigatorName
	if caseContext.InvestigatorID != "" {
		actor = fmt.Sprintf("%s (%s)", actor, caseContext.InvestigatorID)
	}

	return Record{
		Metadata: Metadata{
			CaseID:           caseContext.CaseID,
			InvestigatorName: caseContext.InvestigatorName,
			InvestigatorID:   caseContext.InvestigatorID,
			JobID:            caseContext.JobID,
			DeviceID:         caseContext.DeviceID,
			DeviceModel:      caseContext.DeviceModel,
			Timestamp:        caseContext.Timestamp.Format(time.RFC3339),
			TotalHashedFiles: len(snapshot),
			LedgerBLAKE3:     hex.EncodeToString(digest[:]),
			ToolVersion:      version.Tool(),
		},
		GeneratedAt: now,
		Timeline: []Event{{
			Time:   now,
			Action: InitialAcquisition,
			Actor:  actor,
			Detail: fmt.Sprintf("Acquired %d files from device %s (%s)", len(snapshot), caseContext.DeviceID, caseContext.DeviceModel),
		}},
		Hashes:    listing,
		Signature: Signature{Name: caseContext.InvestigatorName},
	}
}
