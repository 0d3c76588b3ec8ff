// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Liftlab Systems

package sec3000h

import (
	"fmt"
	"strings"
)

// FormatTelegram formats a telegram into a human-readable line, the way the
// raw_log command prints traffic.
func FormatTelegram(t Telegram) string {
	timestamp := t.timestamp.Format("15:04:05.000")
	switch t.control {
	case ControlACK:
		return fmt.Sprintf("[%s] ACK(06) station=%s", timestamp, t.station)
	case ControlNAK:
		return fmt.Sprintf("[%s] NAK(15) station=%s", timestamp, t.station)
	default:
		return fmt.Sprintf("[%s] ENQ(05) station=%s cmd=%c %s value=%04X",
			timestamp, t.station, t.command, DescribeRegister(t.register, t.value), t.value)
	}
}

// FormatRegisterName returns the register's mnemonic name.
func FormatRegisterName(r Register) string {
	switch r {
	case RegCurrentFloor:
		return "CURRENT_FLOOR"
	case RegTargetFloor:
		return "TARGET_FLOOR"
	case RegLoadWeight:
		return "LOAD_WEIGHT"
	case RegFloorSetting:
		return "FLOOR_SETTING"
	case RegDoorControl:
		return "DOOR_CONTROL"
	default:
		return "UNKNOWN"
	}
}

// DescribeRegister interprets a register/value pair as a short description
// suitable for logs and user display.
func DescribeRegister(r Register, value uint16) string {
	switch r {
	case RegCurrentFloor:
		return fmt.Sprintf("current floor: %s", FloorFromValue(value))
	case RegTargetFloor:
		if value == ValueNoTarget {
			return "target floor: none"
		}
		return fmt.Sprintf("target floor: %s", FloorFromValue(value))
	case RegLoadWeight:
		return fmt.Sprintf("load: %dkg", value)
	case RegFloorSetting:
		return fmt.Sprintf("floor setting: %s", FloorFromValue(value))
	case RegDoorControl:
		switch value {
		case DoorCmdOpen:
			return "door control: open"
		case DoorCmdClose:
			return "door control: close"
		default:
			return "door control: stop"
		}
	default:
		return fmt.Sprintf("register 0x%04X: %04X", uint16(r), value)
	}
}

// HexDump renders raw frame bytes as space-separated uppercase hex.
func HexDump(data []byte) string {
	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}
