// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"fmt"
)

// Status classifies the result of a best-effort operation.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusPartial Status = "PARTIAL"
	StatusSkipped Status = "SKIPPED"
	StatusFailed  Status = "FAILED"
)

// Outcome is the structured result of a device or tool operation.
// Err carries the underlying cause for FAILED and PARTIAL outcomes and
// is nil otherwise.
type Outcome struct {
	Status Status
	Detail string
	Err    error
}

// Succeeded returns a SUCCESS outcome.
func Succeeded(detail string) Outcome {
	return Outcome{Status: StatusSuccess, Detail: detail}
}

// Skipped returns a SKIPPED outcome. Skipping is not a failure.
func Skipped(detail string) Outcome {
	return Outcome{Status: StatusSkipped, Detail: detail}
}

// Partial returns a PARTIAL outcome.
func Partial(detail string, err error) Outcome {
	return Outcome{Status: StatusPartial, Detail: detail, Err: err}
}

// Failed returns a FAILED outcome.
func Failed(detail string, err error) Outcome {
	return Outcome{Status: StatusFailed, Detail: detail, Err: err}
}

// OK reports whether the outcome is SUCCESS.
func (o Outcome) OK() bool {
	return o.Status == StatusSuccess
}

func (o Outcome) String() string {
	switch {
	case o.Err != nil && o.Detail != "":
		return fmt.Sprintf("%s: %s: %v", o.Status, o.Detail, o.Err)
	case o.Err != nil:
		return fmt.Sprintf("%s: %v", o.Status, o.Err)
	case o.Detail != "":
		return fmt.Sprintf("%s: %s", o.Status, o.Detail)
	default:
		return string(o.Status)
	}
}

// Combine folds the outcomes of independent sub-steps into one stage
// outcome. All successful is SUCCESS, all skipped (or none at all) is
// SKIPPED, nothing successful is FAILED, and any mixture is PARTIAL.
func Combine(outcomes []Outcome) Outcome {
	var succeeded, partial, skipped, failed int
	var firstErr error
	for _, outcome := range outcomes {
		switch outcome.Status {
		case StatusSuccess:
			succeeded++
		case StatusPartial:
			partial++
		case StatusSkipped:
			skipped++
		default:
			failed++
		}
		if firstErr == nil && outcome.Err != nil {
			firstErr = outcome.Err
		}
	}

	total := len(outcomes)
	detail := fmt.Sprintf("%d of %d succeeded", succeeded, total)
	switch {
	case skipped == total:
		return Skipped(fmt.Sprintf("%d of %d skipped", skipped, total))
	case succeeded+skipped == total:
		return Succeeded(detail)
	case succeeded == 0 && partial == 0:
		return Failed(detail, firstErr)
	default:
		return Partial(detail, firstErr)
	}
}
