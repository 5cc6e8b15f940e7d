// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestCodeRoundTrip(t *testing.T) {
	for _, entry := range codeTable {
		wrapped := fmt.Errorf("handler: %w", entry.err)
		code := Code(wrapped)
		if code != entry.code {
			t.Errorf("Code(%v) = %q, want %q", entry.err, code, entry.code)
		}
		back := ErrorForCode(code, "detail")
		if !errors.Is(back, entry.err) {
			t.Errorf("ErrorForCode(%q) = %v, does not match %v", code, back, entry.err)
		}
	}
	if Code(errors.New("boom")) != CodeInternal {
		t.Error("unrecognized error should map to internal")
	}
	if err := ErrorForCode("made_up", ""); err == nil || err.Error() != "made_up" {
		t.Errorf("ErrorForCode(unknown) = %v", err)
	}
}

func TestRetriable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{unavailable("append", errors.New("disk full")), true},
		{errors.New("connection reset"), true},
		{context.Canceled, false},
		{ErrUnknownKey, false},
		{ErrHardwareMismatch, false},
		{fmt.Errorf("wrapped: %w", ErrNotActivated), false},
	}
	for _, test := range tests {
		if got := Retriable(test.err); got != test.want {
			t.Errorf("Retriable(%v) = %v, want %v", test.err, got, test.want)
		}
	}
}
