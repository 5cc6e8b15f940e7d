// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

var uniqueCounter atomic.Uint64

// runPrefix separates identifiers from different test processes that
// share a database, such as repeated Postgres integration runs.
var runPrefix = fmt.Sprintf("%d-%d", os.Getpid(), time.Now().UnixNano()) //nolint:realclock run disambiguation

// UniqueID returns a string of the form "prefix-RUN-N" where N
// increases monotonically within the process.
//
//	company := testutil.UniqueID("acme")  // "acme-4711-1700000000-1"
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%s-%d", prefix, runPrefix, uniqueCounter.Add(1))
}
