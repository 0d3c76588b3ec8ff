// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Liftlab Systems

package sec3000h

import "fmt"

// EncodeEnq builds the 16-byte wire form of a write telegram. The checksum
// covers everything after the leading control byte. Station must already be
// 4 decimal digits; malformed stations produce a malformed frame, not an
// error, so callers validate first.
func EncodeEnq(station string, register Register, value uint16) []byte {
	frame := make([]byte, 0, EnqFrameSize)
	frame = append(frame, ControlENQ)
	frame = append(frame, station...)
	frame = append(frame, CommandWrite)
	frame = append(frame, fmt.Sprintf("%04X", uint16(register))...)
	frame = append(frame, fmt.Sprintf("%04X", value)...)
	frame = append(frame, ChecksumText(frame[1:])...)
	return frame
}

// EncodeAck builds the 5-byte ACK response frame addressed to station.
func EncodeAck(station string) []byte {
	frame := make([]byte, 0, ResponseFrameSize)
	frame = append(frame, ControlACK)
	frame = append(frame, station...)
	return frame
}

// EncodeNak builds the 5-byte NAK response frame addressed to station.
func EncodeNak(station string) []byte {
	frame := make([]byte, 0, ResponseFrameSize)
	frame = append(frame, ControlNAK)
	frame = append(frame, station...)
	return frame
}

// Encode renders any telegram back to wire bytes.
func Encode(t Telegram) []byte {
	switch t.control {
	case ControlACK:
		return EncodeAck(t.station)
	case ControlNAK:
		return EncodeNak(t.station)
	default:
		return EncodeEnq(t.station, t.register, t.value)
	}
}
