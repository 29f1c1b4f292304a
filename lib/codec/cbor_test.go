// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

type sampleEvent struct {
	Action string    `cbor:"action"`
	Actor  string    `cbor:"actor,omitempty"`
	Time   time.Time `cbor:"time"`
	Count  int       `cbor:"count"`
}

func TestMarshalDeterministic(t *testing.T) {
	event := sampleEvent{
		Action: "Initial Evidence Acquisition",
		Actor:  "R. Okafor (INV-7)",
		Time:   time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		Count:  42,
	}

	first, err := Marshal(event)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 10 {
		again, err := Marshal(event)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("Marshal is not deterministic")
		}
	}
}

func TestMapKeysSorted(t *testing.T) {
	data, err := Marshal(map[string]int{"zeta": 1, "alpha": 2, "mid": 3})
	if err != nil {
		t.Fatal(err)
	}
	diagnostic, err := Diagnose(data)
	if err != nil {
		t.Fatal(err)
	}
	mid := strings.Index(diagnostic, `"mid"`)
	zeta := strings.Index(diagnostic, `"zeta"`)
	alpha := strings.Index(diagnostic, `"alpha"`)
	if mid < 0 || !(mid < zeta && zeta < alpha) {
		t.Errorf("diagnostic = %s, want length-first key order", diagnostic)
	}
}

func TestTimeEncodesAsText(t *testing.T) {
	instant := time.Date(2026, 5, 1, 10, 0, 0, 123, time.UTC)
	data, err := Marshal(sampleEvent{Time: instant})
	if err != nil {
		t.Fatal(err)
	}
	diagnostic, err := Diagnose(data)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(diagnostic, `"2026-05-01T10:00:00.000000123Z"`) {
		t.Errorf("time not encoded as RFC 3339 text: %s", diagnostic)
	}

	var decoded sampleEvent
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if !decoded.Time.Equal(instant) {
		t.Errorf("time = %v, want %v", decoded.Time, instant)
	}
}

func TestUnmarshalRejectsDuplicateKeys(t *testing.T) {
	// {"count": 1, "count": 2}
	data := []byte{0xa2, 0x65, 'c', 'o', 'u', 'n', 't', 0x01, 0x65, 'c', 'o', 'u', 'n', 't', 0x02}
	var decoded sampleEvent
	if err := Unmarshal(data, &decoded); err == nil {
		t.Error("Unmarshal accepted a duplicate map key")
	}
}
