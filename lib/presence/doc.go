// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package presence tracks employee devices and derives whether each
// employee is present, away, or offline.
//
// # Lifecycle
//
// An [Employee] is provisioned with an activation key and no hardware
// binding (state invited). The desktop agent exchanges the key for a
// binding with [Tracker.Activate]; from then on the key authenticates
// heartbeats. The hardware id never changes once set. Deactivating an
// employee retires the key without deleting anything.
//
// # Derivation
//
// There is no stored "current status". Every heartbeat and check-in is
// appended as an immutable [Event] stamped with the server's receipt
// time, and [Policy.Derive] computes the status from the newest event
// and the clock at query time:
//
//   - no event, or the newest is older than OfflineTimeout: offline
//   - newest reports away: away
//   - newest reports present but is older than AwayTimeout: away
//   - otherwise: present
//
// Client timestamps are kept on the event for audit only. Ordering and
// staleness always use ReceivedAt, so an agent with a wrong or forged
// clock cannot extend its own presence.
//
// # Tenancy
//
// Every employee belongs to one company for life. Dashboard operations
// take the caller's company id and fail with [ErrTenantViolation]
// rather than return or touch another company's rows. Agent operations
// are keyed by activation key, which already identifies one employee.
//
// # Concurrency
//
// A Tracker holds no per-employee state, so any number of handler
// goroutines or processes may share one [Store]. Concurrent events for
// the same employee are all kept; the newest by receipt time wins at
// read time.
package presence
