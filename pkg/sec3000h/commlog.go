// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Liftlab Systems

package sec3000h

import (
	"sync"
	"time"
)

// Direction labels which side of the link produced a log entry.
type Direction string

// Log entry directions.
const (
	DirSend    Direction = "send"
	DirReceive Direction = "receive"
	DirSystem  Direction = "system"
)

// Outcome labels how the logged exchange ended.
type Outcome string

// Log entry outcomes.
const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
	OutcomeTimeout Outcome = "timeout"
)

// LogEntry is one communication-log record.
type LogEntry struct {
	Timestamp time.Time `cbor:"1,keyasint" json:"timestamp"`
	Direction Direction `cbor:"2,keyasint" json:"direction"`
	RawHex    string    `cbor:"3,keyasint" json:"raw"`
	Outcome   Outcome   `cbor:"4,keyasint" json:"outcome"`
	Note      string    `cbor:"5,keyasint" json:"note"`
}

// DefaultLogCap bounds the communication-log ring.
const DefaultLogCap = 500

// Log is a bounded, concurrency-safe ring of communication-log entries.
// When full, appending evicts the oldest entry.
type Log struct {
	mu      sync.Mutex
	entries []LogEntry
	cap     int
}

// NewLog creates a log ring holding at most capacity entries. A capacity of
// zero or less uses DefaultLogCap.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultLogCap
	}
	return &Log{entries: make([]LogEntry, 0, capacity), cap: capacity}
}

// Append records one entry, evicting the oldest when the ring is full.
func (l *Log) Append(dir Direction, raw []byte, outcome Outcome, note string) {
	l.append(LogEntry{
		Timestamp: time.Now(),
		Direction: dir,
		RawHex:    HexDump(raw),
		Outcome:   outcome,
		Note:      note,
	})
}

// AppendEntry records a fully-formed entry (used by capture replay).
func (l *Log) AppendEntry(e LogEntry) {
	l.append(e)
}

func (l *Log) append(e LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) >= l.cap {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:len(l.entries)-1]
	}
	l.entries = append(l.entries, e)
}

// Len returns the number of retained entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Tail returns a copy of the most recent n entries, oldest first.
func (l *Log) Tail(n int) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]LogEntry, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}

// Entries returns a copy of every retained entry, oldest first.
func (l *Log) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
