// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package presenceagent is the desktop side of presence tracking.
//
// [Runner] drives the agent lifecycle against the service API through
// [Client]: activate the key against this machine's hardware id,
// confirm the check-in is valid, record the start of the shift, then
// heartbeat on a fixed interval with whatever a [SignalSource]
// reports.
//
// Errors are classified with [presence.Retriable]. Unavailability is
// retried with exponential backoff. A key the service no longer
// recognizes, or one bound to other hardware, stops the agent: only an
// administrator can fix that. ErrNotActivated mid-run means the
// binding was lost, and the runner activates again.
package presenceagent
