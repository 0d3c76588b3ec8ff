// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Liftlab Systems

package elevator

import "errors"

var (
	// ErrDoorNotClosed rejects a floor change while the doors are anything
	// other than fully closed.
	ErrDoorNotClosed = errors.New("doors are not fully closed")

	// ErrLoadOutOfRange rejects a load weight outside the configured bound.
	ErrLoadOutOfRange = errors.New("load weight out of range")
)
