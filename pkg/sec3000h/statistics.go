// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Liftlab Systems

package sec3000h

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Counters is a point-in-time copy of one link session's telegram counts
// and rates.
type Counters struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	TotalTelegrams uint64
	ValidTelegrams uint64
	ChecksumErrors uint64
	DecodeErrors   uint64
	Duplicates     uint64
	AcksSent       uint64
	Timeouts       uint64

	// Rates (calculated)
	TelegramRate float64 // telegrams/sec
	ErrorRate    float64 // errors/sec
}

// Statistics tracks telegram counts for one link session. The link reader
// goroutine updates it while display code reads it, so all access goes
// through the mutex; readers take a Counters copy via Snapshot.
type Statistics struct {
	mu sync.Mutex
	c  Counters
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{c: Counters{StartTime: now, LastUpdateTime: now}}
}

// Update records one decode outcome.
func (s *Statistics) Update(decodeErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.TotalTelegrams++
	if decodeErr != nil {
		var de *DecodeError
		if errors.As(decodeErr, &de) && de.Kind == ChecksumMismatch {
			s.c.ChecksumErrors++
		} else {
			s.c.DecodeErrors++
		}
	} else {
		s.c.ValidTelegrams++
	}
	s.c.LastUpdateTime = time.Now()
}

// RecordDuplicate counts a telegram suppressed by the duplicate filter.
func (s *Statistics) RecordDuplicate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.Duplicates++
}

// RecordAckSent counts an ACK response written to the line.
func (s *Statistics) RecordAckSent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.AcksSent++
}

// RecordTimeout counts a send that never saw its ACK.
func (s *Statistics) RecordTimeout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.Timeouts++
}

// Snapshot returns a copy of the counters with the rates recomputed.
func (s *Statistics) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.c
	elapsed := time.Since(c.StartTime).Seconds()
	if elapsed > 0 {
		c.TelegramRate = float64(c.TotalTelegrams) / elapsed
		c.ErrorRate = float64(c.ChecksumErrors+c.DecodeErrors+c.Timeouts) / elapsed
	}
	return c
}

// String returns a formatted statistics summary.
func (s *Statistics) String() string {
	return s.Snapshot().String()
}

// String formats the counters the way the status commands print them.
func (c Counters) String() string {
	var validPercent float64
	if c.TotalTelegrams > 0 {
		validPercent = float64(c.ValidTelegrams) * 100.0 / float64(c.TotalTelegrams)
	}

	elapsed := time.Since(c.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Telegrams: %8d\n", c.TotalTelegrams)
	result += fmt.Sprintf("Valid Telegrams: %8d (%.1f%%)\n", c.ValidTelegrams, validPercent)
	if c.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d\n", c.ChecksumErrors)
	}
	if c.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d\n", c.DecodeErrors)
	}
	if c.Duplicates > 0 {
		result += fmt.Sprintf("Duplicates:      %8d\n", c.Duplicates)
	}
	if c.Timeouts > 0 {
		result += fmt.Sprintf("ACK Timeouts:    %8d\n", c.Timeouts)
	}
	result += fmt.Sprintf("Telegram Rate:   %8.1f tel/sec\n", c.TelegramRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", c.ErrorRate)
	result += "================================\n"

	return result
}

// Reset clears all counters.
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.c = Counters{StartTime: now, LastUpdateTime: now}
}
