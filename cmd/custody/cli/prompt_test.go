// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrompterAsk(t *testing.T) {
	var output bytes.Buffer
	prompter := NewPrompterFrom(strings.NewReader("CASE-9\n  Dana Reyes \n"), &output, true)

	caseID, investigator, preset := "", "", "JOB-1"
	for _, field := range []struct {
		label string
		value *string
	}{
		{"Case ID", &caseID},
		{"Job ID", &preset},
		{"Investigator name", &investigator},
	} {
		if err := prompter.Ask(field.label, field.value); err != nil {
			t.Fatalf("Ask(%s): %v", field.label, err)
		}
	}

	if caseID != "CASE-9" || investigator != "Dana Reyes" || preset != "JOB-1" {
		t.Errorf("got case=%q investigator=%q job=%q", caseID, investigator, preset)
	}
	if strings.Contains(output.String(), "Job ID") {
		t.Error("prompted for a value that was already set")
	}
}

func TestPrompterNonInteractive(t *testing.T) {
	prompter := NewPrompterFrom(strings.NewReader("ignored\n"), &bytes.Buffer{}, false)
	var value string
	if err := prompter.Ask("Case ID", &value); err != nil {
		t.Fatal(err)
	}
	if value != "" {
		t.Errorf("value = %q, want empty", value)
	}
}

func TestPrompterEOF(t *testing.T) {
	prompter := NewPrompterFrom(strings.NewReader("last"), &bytes.Buffer{}, true)
	var value string
	if err := prompter.Ask("Case ID", &value); err != nil {
		t.Fatal(err)
	}
	if value != "last" {
		t.Errorf("value = %q, want %q", value, "last")
	}
}
