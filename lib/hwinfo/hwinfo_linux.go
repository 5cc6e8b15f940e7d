// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hwinfo

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// Probe reads identity sources from the running system. It never
// fails: unreadable sources leave their field empty.
func Probe() Identity {
	return probeFrom("/", "/proc", "/sys")
}

// probeFrom is the testable implementation of Probe. It accepts root
// paths so tests can point at synthetic filesystems.
func probeFrom(root, procRoot, sysRoot string) Identity {
	identity := Identity{
		MachineID: ReadSysfsString(filepath.Join(root, "etc/machine-id")),
	}
	if identity.MachineID == "" {
		identity.MachineID = ReadSysfsString(filepath.Join(root, "var/lib/dbus/machine-id"))
	}
	identity.ProductUUID = ReadSysfsString(filepath.Join(sysRoot, "class/dmi/id/product_uuid"))
	identity.CPUModel = readCPUModel(filepath.Join(procRoot, "cpuinfo"))

	var utsname unix.Utsname
	if err := unix.Uname(&utsname); err == nil {
		identity.NodeName = unix.ByteSliceToString(utsname.Nodename[:])
		identity.Machine = unix.ByteSliceToString(utsname.Machine[:])
	}
	return identity
}

// readCPUModel extracts the first "model name" line from /proc/cpuinfo.
func readCPUModel(path string) string {
	file, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "model name") {
			parts := strings.SplitN(line, ":", 2)
			if len(parts) == 2 {
				return strings.TrimSpace(parts[1])
			}
		}
	}
	return ""
}

// ReadSysfsString reads a file and trims whitespace. Returns "" on
// error.
func ReadSysfsString(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
