// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for the presence
// packages.
//
// [RequireReceive], [RequireNoReceive], and [RequireClosed] wrap the
// select-with-deadline pattern so that tests never block forever on a
// channel. They are the only place in the test suite where real
// wall-clock timeouts appear; everything else runs on lib/clock's fake
// clock.
//
// [SocketDir] creates a short directory under /tmp for Unix sockets,
// whose paths are limited to 108 bytes. t.TempDir() paths can exceed
// that.
//
// [UniqueID] generates identifiers that do not collide across tests
// sharing one database.
//
// All helpers call t.Fatalf on failure rather than returning errors.
package testutil
