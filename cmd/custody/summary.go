// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"github.com/custodyworks/custody/lib/casework"
	"github.com/custodyworks/custody/lib/device"
)

var statusColors = map[device.Status]lipgloss.Color{
	device.StatusSuccess: lipgloss.Color("2"),
	device.StatusPartial: lipgloss.Color("3"),
	device.StatusSkipped: lipgloss.Color("8"),
	device.StatusFailed:  lipgloss.Color("1"),
}

// renderSummary prints the end-of-run report. Colour is only used on a
// terminal; piped output stays plain text. Stage lines are cut to
// width when it is positive.
func renderSummary(w io.Writer, summary *casework.Summary, runErr error, terminal bool, width int) {
	profile := termenv.Ascii
	if terminal {
		profile = termenv.ANSI256
	}
	renderer := lipgloss.NewRenderer(w, termenv.WithProfile(profile))
	renderer.SetColorProfile(profile)

	heading := renderer.NewStyle().Bold(true)
	label := renderer.NewStyle().Width(18).Foreground(lipgloss.Color("12"))
	stageName := renderer.NewStyle().Width(16)
	detail := renderer.NewStyle().Faint(true)

	var out strings.Builder
	caseContext := summary.Context
	out.WriteString(heading.Render("Acquisition summary") + "\n")
	field := func(name, value string) {
		if value != "" {
			out.WriteString(label.Render(name) + value + "\n")
		}
	}
	field("Case", caseContext.CaseID)
	field("Investigator", strings.TrimSpace(caseContext.InvestigatorName+" "+bracketed(caseContext.InvestigatorID)))
	field("Device", strings.TrimSpace(caseContext.DeviceID+" "+bracketed(caseContext.DeviceModel)))
	field("Workspace", caseContext.Workspace)

	out.WriteString("\n" + heading.Render("Stages") + "\n")
	for _, result := range summary.Stages {
		status := renderer.NewStyle().Width(9).Foreground(statusColors[result.Outcome.Status])
		line := "  " + stageName.Render(string(result.Stage)) + status.Render(string(result.Outcome.Status))
		if result.Outcome.Detail != "" {
			line += detail.Render(result.Outcome.Detail)
		}
		if width > 0 {
			line = ansi.Truncate(line, width, "…")
		}
		out.WriteString(line + "\n")
	}

	out.WriteString("\n")
	if runErr != nil {
		failure := renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
		out.WriteString(failure.Render("NOT SEALED") + "  " + runErr.Error() + "\n")
		if casework.KindOf(runErr) == casework.KindAcquisition || casework.KindOf(runErr) == casework.KindEncryption {
			out.WriteString("Plaintext is kept in the workspace; run 'custody acquire --resume' to seal it.\n")
		}
		fmt.Fprint(w, out.String())
		return
	}

	sealed := renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	out.WriteString(sealed.Render("SEALED") + "\n")
	field("Hashed files", fmt.Sprintf("%d", summary.HashedFiles))
	field("Encrypted archive", summary.EncryptedPath)
	field("SHA-256", summary.EncryptedSHA256)
	field("Key file", summary.KeyPath)
	field("Plaintext removal", summary.Shredder)
	field("Duration", summary.Duration.Round(time.Second).String())
	warning := renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	out.WriteString("\n" + warning.Render("Store the key file apart from the encrypted archive.") + "\n")
	fmt.Fprint(w, out.String())
}

func bracketed(value string) string {
	if value == "" {
		return ""
	}
	return "(" + value + ")"
}
