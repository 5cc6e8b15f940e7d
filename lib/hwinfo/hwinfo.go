// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package hwinfo derives a stable hardware identifier for the presence
// agent. An activation key is bound to this identifier on first use,
// so it must survive reboots and agent reinstalls but differ between
// machines.
//
// Sources, in order of preference:
//
//   - /etc/machine-id (systemd), falling back to /var/lib/dbus/machine-id
//   - /sys/class/dmi/id/product_uuid (needs root on most distributions)
//   - uname(2) node name and machine, plus the CPU model
//
// The chosen value is hashed with BLAKE3 so the raw machine id never
// leaves the host.
package hwinfo

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/zeebo/blake3"
)

// Source names where an Identity's primary value came from.
type Source string

const (
	SourceMachineID   Source = "machine-id"
	SourceProductUUID Source = "product-uuid"
	SourceUname       Source = "uname"
)

// ErrNoIdentity is returned when no source produced a usable value.
var ErrNoIdentity = errors.New("hwinfo: no hardware identity source available")

// Identity is what Probe found. Empty fields were unreadable.
type Identity struct {
	MachineID   string
	ProductUUID string
	NodeName    string
	Machine     string
	CPUModel    string
}

// placeholderUUIDs are DMI values that firmware vendors ship unset.
var placeholderUUIDs = map[string]bool{
	"00000000-0000-0000-0000-000000000000": true,
	"ffffffff-ffff-ffff-ffff-ffffffffffff": true,
	"03000200-0400-0500-0006-000700080009": true,
}

// Primary returns the preferred identity value and its source.
func (i Identity) Primary() (string, Source, error) {
	if id := strings.TrimSpace(i.MachineID); id != "" && strings.Trim(id, "0") != "" {
		return id, SourceMachineID, nil
	}
	if id := strings.ToLower(strings.TrimSpace(i.ProductUUID)); id != "" && !placeholderUUIDs[id] {
		return id, SourceProductUUID, nil
	}
	if i.NodeName != "" {
		return strings.Join([]string{i.NodeName, i.Machine, i.CPUModel}, "|"), SourceUname, nil
	}
	return "", "", ErrNoIdentity
}

// HardwareID hashes the primary value into the opaque identifier sent
// to the service: "hw-" followed by 32 hex characters.
func (i Identity) HardwareID() (string, Source, error) {
	value, source, err := i.Primary()
	if err != nil {
		return "", "", err
	}
	hasher := blake3.New()
	hasher.WriteString("presence-hardware-id\x00")
	hasher.WriteString(string(source))
	hasher.WriteString("\x00")
	hasher.WriteString(value)
	return "hw-" + hex.EncodeToString(hasher.Sum(nil)[:16]), source, nil
}

// HardwareID probes this machine and returns its hashed identifier.
func HardwareID() (string, Source, error) {
	return Probe().HardwareID()
}
