// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Liftlab Systems

// Package sec3000h provides a Go implementation of the SEC-3000H serial
// protocol spoken between an elevator car controller and its automatic
// operation device.
//
// Telegrams are fixed-length ASCII-hex frames: a 16-byte ENQ write frame
// carrying a data register and value, and 5-byte ACK/NAK responses. This
// package provides telegram encoding/decoding, checksum validation, and
// payload formatting.
package sec3000h

// Control bytes
const (
	ControlENQ = 0x05
	ControlACK = 0x06
	ControlNAK = 0x15
)

// CommandWrite is the only command character the protocol defines.
const CommandWrite = 'W'

// Frame sizes. ENQ frames are control + station(4) + command + register(4) +
// value(4) + checksum(2); ACK/NAK frames are control + station(4).
const (
	EnqFrameSize      = 16
	ResponseFrameSize = 5
	StationSize       = 4
)

// Register identifies the semantic field carried by a telegram's value.
type Register uint16

// Data registers. 0x0001-0x0003 are periodic status from the car controller;
// 0x0010-0x0011 are commands from the operation device.
const (
	RegCurrentFloor Register = 0x0001
	RegTargetFloor  Register = 0x0002
	RegLoadWeight   Register = 0x0003
	RegFloorSetting Register = 0x0010
	RegDoorControl  Register = 0x0011
)

// Door control values for RegDoorControl telegrams.
const (
	DoorCmdStop  uint16 = 0x0000
	DoorCmdOpen  uint16 = 0x0001
	DoorCmdClose uint16 = 0x0002
)

// Well-known station addresses. The operation device is station 0001, the
// car controller station 0002.
const (
	StationOperationDevice = "0001"
	StationCarController   = "0002"
)

// Value encodings with special meaning.
const (
	// ValueBasement encodes floor B1F in floor-carrying registers.
	ValueBasement uint16 = 0xFFFF
	// ValueNoTarget in RegTargetFloor means the car has no destination.
	ValueNoTarget uint16 = 0x0000
)

// Decoder states (internal)
const (
	stateIdle = iota
	stateStation
	stateCommand
	stateRegister
	stateValue
	stateChecksum
)
