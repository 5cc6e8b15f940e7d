// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used by the
// presence service.
//
// Presence status is a pure function of event receipt times and the
// wall clock at query time, so every component that reads "now" takes
// a [Clock] instead of calling time.Now. Production code passes
// [Real]; tests pass [Fake] and move time explicitly:
//
//	c := clock.Fake(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
//	tracker := presence.NewTracker(presence.TrackerConfig{Clock: c, ...})
//	tracker.RecordHeartbeat(ctx, key, presence.ReportPresent, time.Time{})
//	c.Advance(11 * time.Second) // past the away window
//
// Tickers and After channels on a FakeClock fire only from Advance,
// which keeps sweeper and agent tests free of real sleeps.
package clock
