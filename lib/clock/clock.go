// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts the wall clock so that run timestamps,
// workspace names and custody timeline events are deterministic in
// tests. Production code injects Real(); tests inject Fixed or a
// Stepping clock.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// Real returns a Clock backed by time.Now.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Fixed returns a Clock that always reports instant.
func Fixed(instant time.Time) Clock { return fixedClock{instant: instant} }

type fixedClock struct {
	instant time.Time
}

func (c fixedClock) Now() time.Time { return c.instant }

// Stepping returns a Clock that starts at initial and advances by step
// on every call to Now. Useful when a test needs distinct, ordered
// timestamps (log lines, workspace modification order).
func Stepping(initial time.Time, step time.Duration) *SteppingClock {
	return &SteppingClock{next: initial, step: step}
}

// SteppingClock is safe for concurrent use.
type SteppingClock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

// Now returns the current instant and advances the clock.
func (c *SteppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	current := c.next
	c.next = c.next.Add(c.step)
	return current
}
