// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens the presence service's embedded SQLite
// database.
//
// It is a thin layer over zombiezen.com/go/sqlite: a fixed-size
// [sqlitex.Pool] whose connections all receive the same pragmas, plus
// forward-only schema migrations keyed on PRAGMA user_version.
// Callers Take a connection, run SQL with sqlitex.Execute, and Put the
// connection back. Connections are not safe for concurrent use.
//
// # Pragmas
//
//   - journal_mode=WAL: readers never block the single writer.
//   - synchronous=NORMAL: committed transactions survive a process
//     crash. An OS crash may lose the last few heartbeats, which the
//     next heartbeat replaces.
//   - busy_timeout=5000: concurrent heartbeat writers queue for the
//     write lock instead of failing with SQLITE_BUSY.
//   - foreign_keys=OFF: the store enforces its own invariants.
//   - cache_size=-8192, temp_store=MEMORY.
//
// # Migrations
//
// [Config].Migrations is an ordered list of SQL scripts. Script i
// brings the database from user_version i to i+1. Every connection
// runs pending scripts inside an IMMEDIATE transaction on first use,
// so concurrent first connections serialize and each script applies
// exactly once. Scripts are never edited after release; new schema
// changes append a new script.
package sqlitepool
