// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"fmt"
	"time"
)

const (
	// DefaultAwayTimeout is how long a present report stays present
	// with nothing newer.
	DefaultAwayTimeout = 10 * time.Second

	// DefaultOfflineTimeout is how long any report keeps the employee
	// from being shown offline.
	DefaultOfflineTimeout = 60 * time.Second
)

// Policy holds the two staleness windows. Both are measured from
// server receipt time.
type Policy struct {
	AwayTimeout    time.Duration `json:"away_timeout"`
	OfflineTimeout time.Duration `json:"offline_timeout"`
}

// DefaultPolicy returns the 10s / 60s windows.
func DefaultPolicy() Policy {
	return Policy{
		AwayTimeout:    DefaultAwayTimeout,
		OfflineTimeout: DefaultOfflineTimeout,
	}
}

// Validate rejects windows that would make Away unreachable or
// negative.
func (p Policy) Validate() error {
	if p.AwayTimeout <= 0 {
		return fmt.Errorf("away timeout must be positive, got %s", p.AwayTimeout)
	}
	if p.OfflineTimeout <= p.AwayTimeout {
		return fmt.Errorf("offline timeout (%s) must exceed away timeout (%s)",
			p.OfflineTimeout, p.AwayTimeout)
	}
	return nil
}

// Derive computes the status implied by latest at now. ok is false
// when the employee has no events at all.
//
// An age equal to a window is still inside it. A receipt time after
// now (another instance's clock running ahead) counts as age zero.
func (p Policy) Derive(latest Event, ok bool, now time.Time) Status {
	if !ok {
		return StatusOffline
	}
	age := now.Sub(latest.ReceivedAt)
	if age < 0 {
		age = 0
	}
	if age > p.OfflineTimeout {
		return StatusOffline
	}
	if latest.Status == ReportAway {
		return StatusAway
	}
	if age > p.AwayTimeout {
		return StatusAway
	}
	return StatusPresent
}

// NextChange returns the instant after which Derive would return a
// different status for latest, or the zero time if it never will
// (already offline).
func (p Policy) NextChange(latest Event, ok bool, now time.Time) time.Time {
	switch p.Derive(latest, ok, now) {
	case StatusPresent:
		return latest.ReceivedAt.Add(p.AwayTimeout)
	case StatusAway:
		return latest.ReceivedAt.Add(p.OfflineTimeout)
	}
	return time.Time{}
}
