// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package statuswatch turns derived presence into a stream of status
// changes.
//
// Status is never stored: it is computed from the latest event and the
// current time whenever someone asks. Two things can therefore move an
// employee's status. A new event moves it immediately, and the tracker
// publishes that change itself. Time passing moves it silently, since
// nothing is written when a present report ages into away. The
// [Sweeper] finds those silent moves by re-deriving every company's
// statuses on a ticker and diffing against its previous sweep.
//
// Both sources feed a [Broadcaster], which fans changes out to
// per-company subscribers with non-blocking sends. A subscriber that
// falls behind loses events and is flagged through
// [Subscription.Lagged]; it should re-read the full status list.
package statuswatch
