// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package custody

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Watermark is stamped diagonally across the HTML report.
const Watermark = "FORENSIC EVIDENCE - CONFIDENTIAL"

// Markdown renders the human-readable report.
func Markdown(record Record) []byte {
	var buffer bytes.Buffer
	metadata := record.Metadata

	buffer.WriteString("# Chain of Custody Report\n\n")
	buffer.WriteString("| Field | Value |\n|---|---|\n")
	row(&buffer, "Case ID", metadata.CaseID)
	row(&buffer, "Investigator", metadata.InvestigatorName)
	row(&buffer, "Investigator ID", metadata.InvestigatorID)
	row(&buffer, "Job ID", metadata.JobID)
	row(&buffer, "Device ID", metadata.DeviceID)
	row(&buffer, "Device Model", metadata.DeviceModel)
	row(&buffer, "Acquisition Time", metadata.Timestamp)
	row(&buffer, "Report Generated", record.GeneratedAt.Format(time.RFC3339))
	row(&buffer, "Total Hashed Files", fmt.Sprint(metadata.TotalHashedFiles))
	row(&buffer, "Tool Version", metadata.ToolVersion)

	buffer.WriteString("\n## Custody Timeline\n\n")
	buffer.WriteString("| Time | Action | Actor | Detail |\n|---|---|---|---|\n")
	for _, event := range record.Timeline {
		fmt.Fprintf(&buffer, "| %s | %s | %s | %s |\n",
			event.Time.Format(time.RFC3339), cell(event.Action), cell(event.Actor), cell(event.Detail))
	}

	fmt.Fprintf(&buffer, "\n## %s\n\n", record.Hashes.Heading())
	if len(record.Hashes.Entries) > 0 {
		buffer.WriteString("| SHA-256 | File |\n|---|---|\n")
		for _, entry := range record.Hashes.Entries {
			fmt.Fprintf(&buffer, "| `%s` | %s |\n", entry.Digest, cell(entry.Path))
		}
	}
	if !record.Hashes.Complete {
		fmt.Fprintf(&buffer, "\nThe complete list of %d hashes is in hashes.txt.\n", record.Hashes.Total)
	}

	buffer.WriteString("\n## Ledger Digest\n\n")
	fmt.Fprintf(&buffer, "BLAKE3 of hashes.txt before sealing: `%s`\n", metadata.LedgerBLAKE3)

	buffer.WriteString("\n## Signature\n\n")
	fmt.Fprintf(&buffer, "Investigator: %s\n\n", cell(record.Signature.Name))
	buffer.WriteString("Signature: ______________________________\n\n")
	buffer.WriteString("Date: ______________________________\n")
	return buffer.Bytes()
}

func row(buffer *bytes.Buffer, field, value string) {
	fmt.Fprintf(buffer, "| %s | %s |\n", field, cell(value))
}

// cell keeps free text from breaking a table row.
func cell(value string) string {
	if value == "" {
		return "-"
	}
	replacer := strings.NewReplacer(`\`, `\\`, "|", `\|`, "\r", " ", "\n", " ")
	return replacer.Replace(value)
}

const htmlStyle = `body { font-family: sans-serif; margin: 2em; position: relative; }
table { border-collapse: collapse; margin-bottom: 1.5em; }
th, td { border: 1px solid #999; padding: 0.3em 0.6em; text-align: left; }
code { font-size: 0.85em; }
body::before {
  content: %q;
  position: fixed; top: 45%%; left: 5%%;
  font-size: 4em; color: rgba(200, 0, 0, 0.12);
  transform: rotate(-30deg); pointer-events: none; z-index: -1;
}
`

// HTML renders the Markdown report as a standalone page. Raw HTML in
// field values is not passed through.
func HTML(record Record) ([]byte, error) {
	markdown := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var body bytes.Buffer
	if err := markdown.Convert(Markdown(record), &body); err != nil {
		return nil, fmt.Errorf("rendering report: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>Chain of Custody: %s</title>\n", html.EscapeString(record.Metadata.CaseID))
	fmt.Fprintf(&page, "<style>\n"+htmlStyle+"</style>\n", Watermark)
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}
