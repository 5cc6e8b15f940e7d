// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package hwinfo

import (
	"os"
	"runtime"
)

// Probe falls back to the host name on platforms without machine-id
// or DMI.
func Probe() Identity {
	hostname, _ := os.Hostname()
	return Identity{NodeName: hostname, Machine: runtime.GOARCH}
}
