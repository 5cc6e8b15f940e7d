// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presenceagent

import "time"

// backoff doubles from initial up to max.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{initial: initial, max: max, current: initial}
}

// next returns the wait before the next attempt and advances.
func (b *backoff) next() time.Duration {
	wait := b.current
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return wait
}

func (b *backoff) reset() { b.current = b.initial }
