// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Liftlab Systems

package link

import (
	"time"

	"github.com/liftlab/liftpilot/pkg/sec3000h"
)

// DefaultDuplicateWindow is how long an identical register write is treated
// as a retransmission rather than fresh data.
const DefaultDuplicateWindow = 800 * time.Millisecond

// duplicateFilter remembers the last value seen per register and its arrival
// time. A repeat of the same value inside the window is a duplicate; a
// differing value or an expired window clears the memo.
type duplicateFilter struct {
	window time.Duration
	seen   map[sec3000h.Register]lastWrite
}

type lastWrite struct {
	value uint16
	at    time.Time
}

func newDuplicateFilter(window time.Duration) *duplicateFilter {
	if window <= 0 {
		window = DefaultDuplicateWindow
	}
	return &duplicateFilter{
		window: window,
		seen:   make(map[sec3000h.Register]lastWrite),
	}
}

// IsDuplicate records the write and reports whether it repeats the previous
// value for the same register within the window.
func (f *duplicateFilter) IsDuplicate(register sec3000h.Register, value uint16, now time.Time) bool {
	prev, ok := f.seen[register]
	f.seen[register] = lastWrite{value: value, at: now}
	if !ok {
		return false
	}
	return prev.value == value && now.Sub(prev.at) < f.window
}
