// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Liftlab Systems

package sec3000h

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestStatistics_CountsOutcomes(t *testing.T) {
	s := NewStatistics()

	s.Update(nil)
	s.Update(nil)
	s.Update(&DecodeError{Kind: ChecksumMismatch})
	s.Update(errors.New("line noise"))
	s.RecordDuplicate()
	s.RecordAckSent()
	s.RecordTimeout()

	c := s.Snapshot()
	if c.TotalTelegrams != 4 {
		t.Errorf("TotalTelegrams = %d, want 4", c.TotalTelegrams)
	}
	if c.ValidTelegrams != 2 {
		t.Errorf("ValidTelegrams = %d, want 2", c.ValidTelegrams)
	}
	if c.ChecksumErrors != 1 {
		t.Errorf("ChecksumErrors = %d, want 1", c.ChecksumErrors)
	}
	if c.DecodeErrors != 1 {
		t.Errorf("DecodeErrors = %d, want 1", c.DecodeErrors)
	}
	if c.Duplicates != 1 || c.AcksSent != 1 || c.Timeouts != 1 {
		t.Errorf("Duplicates/AcksSent/Timeouts = %d/%d/%d, want 1/1/1",
			c.Duplicates, c.AcksSent, c.Timeouts)
	}
}

// The reader goroutine updates the counters while display code formats them,
// so concurrent Update and String must be safe.
func TestStatistics_ConcurrentUpdateAndRead(t *testing.T) {
	s := NewStatistics()
	const perWriter = 200

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				s.Update(nil)
				s.RecordAckSent()
			}
		}()
	}

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for i := 0; i < 200; i++ {
			_ = s.String()
			_ = s.Snapshot()
		}
	}()

	wg.Wait()
	<-readDone

	c := s.Snapshot()
	if c.TotalTelegrams != 4*perWriter {
		t.Errorf("TotalTelegrams = %d, want %d", c.TotalTelegrams, 4*perWriter)
	}
	if c.AcksSent != 4*perWriter {
		t.Errorf("AcksSent = %d, want %d", c.AcksSent, 4*perWriter)
	}
}

func TestStatistics_Reset(t *testing.T) {
	s := NewStatistics()
	s.Update(nil)
	s.RecordTimeout()
	s.Reset()

	c := s.Snapshot()
	if c.TotalTelegrams != 0 || c.Timeouts != 0 {
		t.Errorf("counters survived reset: %+v", c)
	}
}

func TestStatistics_StringMentionsOnlyNonZeroErrors(t *testing.T) {
	s := NewStatistics()
	s.Update(nil)

	out := s.String()
	if strings.Contains(out, "Checksum Errors") {
		t.Errorf("clean session should not report checksum errors:\n%s", out)
	}

	s.Update(&DecodeError{Kind: ChecksumMismatch})
	out = s.String()
	if !strings.Contains(out, "Checksum Errors") {
		t.Errorf("checksum error missing from summary:\n%s", out)
	}
}
