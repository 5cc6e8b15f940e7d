// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presenceagent

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/bureau-foundation/presence/lib/presence"
)

// SignalSource reports whether the employee is at the machine. How it
// decides (camera, input idle time, a manual toggle) is its own
// business.
type SignalSource interface {
	Signal(ctx context.Context) (presence.ReportedStatus, error)
}

// StaticSignal always reports the same status.
type StaticSignal presence.ReportedStatus

func (s StaticSignal) Signal(context.Context) (presence.ReportedStatus, error) {
	return presence.ReportedStatus(s), nil
}

// FileSignal reads the status from a file that an external detector
// rewrites ("present" or "away", surrounding whitespace ignored).
type FileSignal struct {
	Path string

	// Missing is reported while the file does not exist. Empty means
	// present.
	Missing presence.ReportedStatus
}

func (f FileSignal) Signal(context.Context) (presence.ReportedStatus, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		if f.Missing == "" {
			return presence.ReportPresent, nil
		}
		return f.Missing, nil
	}
	if err != nil {
		return "", fmt.Errorf("reading presence signal: %w", err)
	}
	return presence.ParseReportedStatus(string(data))
}
