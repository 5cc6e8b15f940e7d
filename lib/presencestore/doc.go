// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package presencestore implements [presence.Store] on three backends:
//
//   - [Memory]: maps behind a mutex. For tests and single-process
//     demos; nothing survives a restart.
//   - [SQLite]: a WAL-mode database through lib/sqlitepool. The
//     default for a single service instance.
//   - [Postgres]: database/sql with the pgx driver. Use this when
//     several service instances share one store.
//
// All three keep the same observable behavior, which the shared
// conformance suite in this package's tests checks. Times are stored
// as Unix nanoseconds so that receipt times round-trip exactly and
// ordering ties fall through to the sequence column.
//
// Every uniqueness rule is enforced by the backend itself (a UNIQUE
// constraint or the memory store's lock), never by a read followed by
// a write in the caller. Two service instances activating the same key
// from different hardware at the same moment therefore produce one
// success and one [presence.ErrHardwareMismatch] or
// [presence.ErrAlreadyBound].
//
// [Open] picks a backend from a [Config].
package presencestore
