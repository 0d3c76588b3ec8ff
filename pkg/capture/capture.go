// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Liftlab Systems

// Package capture persists communication-log entries as a stream of CBOR
// records, for later replay through the decoder and state machine.
package capture

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/liftlab/liftpilot/pkg/sec3000h"
)

// Writer appends log entries to a capture stream.
type Writer struct {
	w   io.Writer
	c   io.Closer
	enc *cbor.Encoder
}

// Create opens (or truncates) a capture file.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create capture file: %w", err)
	}
	w := NewWriter(f)
	w.c = f
	return w, nil
}

// NewWriter wraps an arbitrary stream.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, enc: cbor.NewEncoder(w)}
}

// Write appends one entry.
func (w *Writer) Write(e sec3000h.LogEntry) error {
	if err := w.enc.Encode(e); err != nil {
		return fmt.Errorf("encode capture entry: %w", err)
	}
	return nil
}

// Close closes the underlying file, if Writer owns one.
func (w *Writer) Close() error {
	if w.c == nil {
		return nil
	}
	return w.c.Close()
}

// Reader consumes a capture stream.
type Reader struct {
	r   io.Reader
	c   io.Closer
	dec *cbor.Decoder
}

// Open opens a capture file for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}
	r := NewReader(f)
	r.c = f
	return r, nil
}

// NewReader wraps an arbitrary stream.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, dec: cbor.NewDecoder(r)}
}

// Read returns the next entry, or io.EOF at the end of the stream.
func (r *Reader) Read() (sec3000h.LogEntry, error) {
	var e sec3000h.LogEntry
	if err := r.dec.Decode(&e); err != nil {
		if errors.Is(err, io.EOF) {
			return e, io.EOF
		}
		return e, fmt.Errorf("decode capture entry: %w", err)
	}
	return e, nil
}

// ReadAll drains the stream.
func (r *Reader) ReadAll() ([]sec3000h.LogEntry, error) {
	var entries []sec3000h.LogEntry
	for {
		e, err := r.Read()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return entries, err
		}
		entries = append(entries, e)
	}
}

// Close closes the underlying file, if Reader owns one.
func (r *Reader) Close() error {
	if r.c == nil {
		return nil
	}
	return r.c.Close()
}
