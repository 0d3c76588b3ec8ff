// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Liftlab Systems

package sec3000h

import (
	"fmt"
	"strconv"
	"time"
)

// DecodeErrorKind classifies telegram decode failures.
type DecodeErrorKind int

const (
	// TooShort means the input ends before a complete frame.
	TooShort DecodeErrorKind = iota
	// UnknownControl means the leading byte is not ENQ, ACK or NAK.
	UnknownControl
	// ChecksumMismatch means the trailer does not match the computed checksum.
	ChecksumMismatch
	// NonHexField means a station, command, register or value field holds
	// characters outside its alphabet.
	NonHexField
)

func (k DecodeErrorKind) String() string {
	switch k {
	case TooShort:
		return "frame too short"
	case UnknownControl:
		return "unknown control byte"
	case ChecksumMismatch:
		return "checksum mismatch"
	case NonHexField:
		return "non-hex field"
	default:
		return "decode error"
	}
}

// DecodeError reports why a byte sequence failed to decode as a telegram.
type DecodeError struct {
	Kind    DecodeErrorKind
	Message string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func decodeErrorf(kind DecodeErrorKind, format string, args ...interface{}) *DecodeError {
	return &DecodeError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Decode parses one complete frame from data. It is a pure function: no
// caller state is touched, and failure never consumes input. The returned
// telegram is valid only when the error is nil.
func Decode(data []byte) (Telegram, error) {
	if len(data) == 0 {
		return Telegram{}, decodeErrorf(TooShort, "empty input")
	}

	switch data[0] {
	case ControlACK, ControlNAK:
		if len(data) < ResponseFrameSize {
			return Telegram{}, decodeErrorf(TooShort, "response frame needs %d bytes, have %d", ResponseFrameSize, len(data))
		}
		station := string(data[1:5])
		if !allDigits(data[1:5]) {
			return Telegram{}, decodeErrorf(NonHexField, "station %q is not 4 decimal digits", station)
		}
		t := Telegram{control: data[0], station: station, timestamp: time.Now()}
		return t, nil

	case ControlENQ:
		if len(data) < EnqFrameSize {
			return Telegram{}, decodeErrorf(TooShort, "enq frame needs %d bytes, have %d", EnqFrameSize, len(data))
		}
		station := string(data[1:5])
		if !allDigits(data[1:5]) {
			return Telegram{}, decodeErrorf(NonHexField, "station %q is not 4 decimal digits", station)
		}
		if data[5] != CommandWrite {
			return Telegram{}, decodeErrorf(NonHexField, "command byte 0x%02X is not 'W'", data[5])
		}
		register, err := parseHexField(data[6:10], "register")
		if err != nil {
			return Telegram{}, err
		}
		value, err := parseHexField(data[10:14], "value")
		if err != nil {
			return Telegram{}, err
		}
		want := ChecksumText(data[1:14])
		got := string(data[14:16])
		if got != want {
			return Telegram{}, decodeErrorf(ChecksumMismatch, "expected %s, got %s", want, got)
		}
		t := Telegram{
			control:   ControlENQ,
			station:   station,
			command:   CommandWrite,
			register:  Register(register),
			value:     value,
			timestamp: time.Now(),
		}
		return t, nil

	default:
		return Telegram{}, decodeErrorf(UnknownControl, "0x%02X", data[0])
	}
}

func allDigits(b []byte) bool {
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func parseHexField(b []byte, name string) (uint16, error) {
	v, err := strconv.ParseUint(string(b), 16, 16)
	if err != nil {
		return 0, decodeErrorf(NonHexField, "%s %q is not 4 hex digits", name, string(b))
	}
	return uint16(v), nil
}

// frameSize returns the expected wire length for a control byte, or 0 for an
// unknown control.
func frameSize(control byte) int {
	switch control {
	case ControlENQ:
		return EnqFrameSize
	case ControlACK, ControlNAK:
		return ResponseFrameSize
	default:
		return 0
	}
}

// Decoder accumulates a raw byte stream and extracts complete telegrams,
// resynchronizing on garbage by discarding one byte at a time until a valid
// frame boundary is found.
type Decoder struct {
	buf []byte
}

// NewDecoder creates a new stream decoder.
func NewDecoder() *Decoder {
	return &Decoder{buf: make([]byte, 0, EnqFrameSize*4)}
}

// Reset discards all buffered bytes.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
}

// Buffered returns the number of bytes waiting for a complete frame.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// DecodeByte feeds one byte into the decoder. It returns a completed
// telegram, or nil while a frame is still incomplete. A non-nil error means
// buffered bytes were dropped to resynchronize; the decoder remains usable.
func (d *Decoder) DecodeByte(b byte) (*Telegram, error) {
	d.buf = append(d.buf, b)
	return d.scan()
}

// Feed pushes a chunk of bytes and returns every telegram completed by it.
// Decode errors are collected rather than aborting the chunk.
func (d *Decoder) Feed(data []byte) ([]Telegram, []error) {
	var telegrams []Telegram
	var errs []error
	for _, b := range data {
		t, err := d.DecodeByte(b)
		if err != nil {
			errs = append(errs, err)
		}
		if t != nil {
			telegrams = append(telegrams, *t)
		}
	}
	return telegrams, errs
}

func (d *Decoder) scan() (*Telegram, error) {
	var firstErr error
	for len(d.buf) > 0 {
		size := frameSize(d.buf[0])
		if size == 0 {
			// Not a frame boundary; skip until one appears.
			d.buf = d.buf[1:]
			continue
		}
		if len(d.buf) < size {
			return nil, firstErr
		}
		t, err := Decode(d.buf[:size])
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			d.buf = d.buf[1:]
			continue
		}
		d.buf = append(d.buf[:0], d.buf[size:]...)
		return &t, firstErr
	}
	return nil, firstErr
}
