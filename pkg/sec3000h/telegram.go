// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Liftlab Systems

package sec3000h

import (
	"fmt"
	"time"
)

// Telegram represents one decoded protocol message. It is a value type;
// decoding never retains references into the input buffer.
type Telegram struct {
	control   byte
	station   string
	command   byte
	register  Register
	value     uint16
	timestamp time.Time
}

// NewEnq creates an ENQ write telegram for the given station, register and
// value. Station must be 4 decimal digits; the caller pre-validates ranges.
func NewEnq(station string, register Register, value uint16) Telegram {
	return Telegram{
		control:   ControlENQ,
		station:   station,
		command:   CommandWrite,
		register:  register,
		value:     value,
		timestamp: time.Now(),
	}
}

// NewAck creates an ACK response telegram addressed to station.
func NewAck(station string) Telegram {
	return Telegram{control: ControlACK, station: station, timestamp: time.Now()}
}

// NewNak creates a NAK response telegram addressed to station.
func NewNak(station string) Telegram {
	return Telegram{control: ControlNAK, station: station, timestamp: time.Now()}
}

// Control returns the telegram's control byte (ENQ, ACK or NAK).
func (t Telegram) Control() byte { return t.control }

// Station returns the 4-digit station address.
func (t Telegram) Station() string { return t.station }

// Command returns the command character ('W' for ENQ frames, zero otherwise).
func (t Telegram) Command() byte { return t.command }

// Register returns the data register number (ENQ frames only).
func (t Telegram) Register() Register { return t.register }

// Value returns the 16-bit payload value (ENQ frames only).
func (t Telegram) Value() uint16 { return t.value }

// Timestamp returns the telegram's decode or construction time.
func (t Telegram) Timestamp() time.Time { return t.timestamp }

// IsEnq reports whether the telegram is a write enquiry.
func (t Telegram) IsEnq() bool { return t.control == ControlENQ }

// Floor is a car position over the closed set {B1F, 1F, 2F, ...}. The zero
// value is not a valid floor; B1F is represented as -1.
type Floor int

// Basement is the single below-ground floor the protocol can express.
const Basement Floor = -1

// FloorFromValue decodes a register value into a Floor.
func FloorFromValue(v uint16) Floor {
	if v == ValueBasement {
		return Basement
	}
	return Floor(v)
}

// Value encodes the floor for the wire: B1F as 0xFFFF, floor n as n.
func (f Floor) Value() uint16 {
	if f == Basement {
		return ValueBasement
	}
	return uint16(f)
}

// String renders the floor the way the equipment labels it ("B1F", "3F").
func (f Floor) String() string {
	if f == Basement {
		return "B1F"
	}
	return fmt.Sprintf("%dF", int(f))
}

// ParseFloor parses a floor label such as "B1F" or "3F".
func ParseFloor(s string) (Floor, error) {
	if s == "B1F" {
		return Basement, nil
	}
	var n int
	if _, err := fmt.Sscanf(s, "%dF", &n); err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid floor %q", s)
	}
	return Floor(n), nil
}
