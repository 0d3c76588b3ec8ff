// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Liftlab Systems

package sec3000h

import "fmt"

// Checksum computes the SEC-3000H additive checksum over the telegram body
// (every byte after the leading control byte, before the checksum trailer).
// The byte sum is accumulated into a 16-bit total; the result is the low
// byte plus the high byte, masked to 8 bits.
func Checksum(body []byte) uint8 {
	var total uint16
	for _, b := range body {
		total += uint16(b)
	}
	low := total & 0xFF
	high := (total >> 8) & 0xFF
	return uint8((low + high) & 0xFF)
}

// ChecksumText renders the checksum as the two uppercase hex digits that
// appear on the wire.
func ChecksumText(body []byte) string {
	return fmt.Sprintf("%02X", Checksum(body))
}
