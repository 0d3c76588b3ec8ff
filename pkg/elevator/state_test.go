// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Liftlab Systems

package elevator

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftlab/liftpilot/pkg/sec3000h"
)

func newTestState(t *testing.T) (*State, *ManualClock) {
	t.Helper()
	clk := NewManualClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	s := New(Config{
		TravelTime: 3 * time.Second,
		DoorTime:   2 * time.Second,
		MaxLoadKg:  1000,
		Clock:      clk,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(s.Close)
	return s, clk
}

func TestRequestFloor_TravelCompletes(t *testing.T) {
	s, clk := newTestState(t)

	require.NoError(t, s.RequestFloor(sec3000h.Floor(3)))

	snap := s.Snapshot()
	require.NotNil(t, snap.TargetFloor)
	assert.Equal(t, sec3000h.Floor(3), *snap.TargetFloor)
	assert.True(t, snap.IsMoving)

	clk.Advance(3 * time.Second)

	snap = s.Snapshot()
	require.NotNil(t, snap.CurrentFloor)
	assert.Equal(t, sec3000h.Floor(3), *snap.CurrentFloor)
	assert.Nil(t, snap.TargetFloor)
	assert.False(t, snap.IsMoving)
}

func TestRequestFloor_RejectedWhileDoorNotClosed(t *testing.T) {
	s, clk := newTestState(t)

	require.NoError(t, s.RequestDoor(DoorActionOpen))
	err := s.RequestFloor(sec3000h.Floor(2))
	require.ErrorIs(t, err, ErrDoorNotClosed)
	assert.False(t, s.Snapshot().IsMoving)

	// Still rejected while open and while closing; accepted once closed.
	clk.Advance(2 * time.Second)
	require.ErrorIs(t, s.RequestFloor(sec3000h.Floor(2)), ErrDoorNotClosed)

	require.NoError(t, s.RequestDoor(DoorActionClose))
	require.ErrorIs(t, s.RequestFloor(sec3000h.Floor(2)), ErrDoorNotClosed)

	clk.Advance(2 * time.Second)
	require.NoError(t, s.RequestFloor(sec3000h.Floor(2)))
}

func TestRequestDoor_OpenCloseCycle(t *testing.T) {
	s, clk := newTestState(t)

	require.NoError(t, s.RequestDoor(DoorActionOpen))
	assert.Equal(t, DoorOpening, s.Snapshot().DoorState)

	clk.Advance(2 * time.Second)
	assert.Equal(t, DoorOpen, s.Snapshot().DoorState)

	require.NoError(t, s.RequestDoor(DoorActionClose))
	assert.Equal(t, DoorClosing, s.Snapshot().DoorState)

	clk.Advance(2 * time.Second)
	assert.Equal(t, DoorClosed, s.Snapshot().DoorState)
}

func TestRequestDoor_StopLeavesUnknown(t *testing.T) {
	s, clk := newTestState(t)

	require.NoError(t, s.RequestDoor(DoorActionOpen))
	require.NoError(t, s.RequestDoor(DoorActionStop))
	assert.Equal(t, DoorUnknown, s.Snapshot().DoorState)

	// The cancelled open timer must not settle the door later.
	clk.Advance(10 * time.Second)
	assert.Equal(t, DoorUnknown, s.Snapshot().DoorState)

	// Only an explicit command leaves Unknown.
	require.NoError(t, s.RequestDoor(DoorActionClose))
	clk.Advance(2 * time.Second)
	assert.Equal(t, DoorClosed, s.Snapshot().DoorState)
}

func TestRequestDoor_OpenCompletesPendingMovement(t *testing.T) {
	s, clk := newTestState(t)

	require.NoError(t, s.RequestFloor(sec3000h.Basement))
	require.NoError(t, s.RequestDoor(DoorActionOpen))

	snap := s.Snapshot()
	require.NotNil(t, snap.CurrentFloor)
	assert.Equal(t, sec3000h.Basement, *snap.CurrentFloor)
	assert.False(t, snap.IsMoving)
	assert.Equal(t, DoorOpening, snap.DoorState)

	// The original travel timer was cancelled; only the door settles.
	clk.Advance(3 * time.Second)
	assert.Equal(t, DoorOpen, s.Snapshot().DoorState)
}

func TestSetLoad_Bounds(t *testing.T) {
	s, _ := newTestState(t)

	require.NoError(t, s.SetLoad(0))
	require.NoError(t, s.SetLoad(1000))
	assert.Equal(t, 1000, s.Snapshot().LoadKg)

	require.ErrorIs(t, s.SetLoad(1001), ErrLoadOutOfRange)
	require.ErrorIs(t, s.SetLoad(-1), ErrLoadOutOfRange)
	assert.Equal(t, 1000, s.Snapshot().LoadKg)
}

func TestApplyTelegram_StatusRegisters(t *testing.T) {
	s, _ := newTestState(t)

	require.NoError(t, s.ApplyTelegram(sec3000h.RegCurrentFloor, sec3000h.ValueBasement))
	snap := s.Snapshot()
	require.NotNil(t, snap.CurrentFloor)
	assert.Equal(t, sec3000h.Basement, *snap.CurrentFloor)

	require.NoError(t, s.ApplyTelegram(sec3000h.RegTargetFloor, 5))
	snap = s.Snapshot()
	require.NotNil(t, snap.TargetFloor)
	assert.Equal(t, sec3000h.Floor(5), *snap.TargetFloor)
	assert.True(t, snap.IsMoving)

	require.NoError(t, s.ApplyTelegram(sec3000h.RegTargetFloor, sec3000h.ValueNoTarget))
	snap = s.Snapshot()
	assert.Nil(t, snap.TargetFloor)
	assert.False(t, snap.IsMoving)

	require.NoError(t, s.ApplyTelegram(sec3000h.RegLoadWeight, 420))
	assert.Equal(t, 420, s.Snapshot().LoadKg)
}

func TestApplyTelegram_CommandRegisters(t *testing.T) {
	s, clk := newTestState(t)

	require.NoError(t, s.ApplyTelegram(sec3000h.RegFloorSetting, 4))
	clk.Advance(3 * time.Second)
	snap := s.Snapshot()
	require.NotNil(t, snap.CurrentFloor)
	assert.Equal(t, sec3000h.Floor(4), *snap.CurrentFloor)

	require.NoError(t, s.ApplyTelegram(sec3000h.RegDoorControl, sec3000h.DoorCmdOpen))
	clk.Advance(2 * time.Second)
	assert.Equal(t, DoorOpen, s.Snapshot().DoorState)

	// Unrecognized door value -> Unknown.
	require.NoError(t, s.ApplyTelegram(sec3000h.RegDoorControl, 0x00FF))
	assert.Equal(t, DoorUnknown, s.Snapshot().DoorState)
}

func TestApplyTelegram_FloorSettingRejectedWhileOpen(t *testing.T) {
	s, clk := newTestState(t)

	require.NoError(t, s.RequestDoor(DoorActionOpen))
	clk.Advance(2 * time.Second)

	err := s.ApplyTelegram(sec3000h.RegFloorSetting, 2)
	require.ErrorIs(t, err, ErrDoorNotClosed)
	assert.False(t, s.Snapshot().IsMoving)
}

func TestSubscribe_NotificationsInMutationOrder(t *testing.T) {
	s, clk := newTestState(t)

	var doors []DoorState
	s.Subscribe(func(snap Snapshot) { doors = append(doors, snap.DoorState) })

	require.NoError(t, s.RequestDoor(DoorActionOpen))
	clk.Advance(2 * time.Second)
	require.NoError(t, s.RequestDoor(DoorActionClose))
	clk.Advance(2 * time.Second)

	assert.Equal(t, []DoorState{DoorOpening, DoorOpen, DoorClosing, DoorClosed}, doors)
}

func TestSubscribe_SnapshotIsDetached(t *testing.T) {
	s, _ := newTestState(t)

	var got Snapshot
	s.Subscribe(func(snap Snapshot) { got = snap })

	require.NoError(t, s.ApplyTelegram(sec3000h.RegCurrentFloor, 2))
	require.NotNil(t, got.CurrentFloor)

	// Mutating the delivered snapshot must not leak into the live state.
	*got.CurrentFloor = sec3000h.Floor(9)
	assert.Equal(t, sec3000h.Floor(2), *s.Snapshot().CurrentFloor)
}

func TestLastCommsAt_TracksMutations(t *testing.T) {
	s, clk := newTestState(t)

	assert.True(t, s.LastCommsAt().IsZero())

	require.NoError(t, s.SetLoad(100))
	first := s.LastCommsAt()
	assert.Equal(t, clk.Now(), first)

	clk.Advance(5 * time.Second)
	require.NoError(t, s.SetLoad(200))
	assert.True(t, s.LastCommsAt().After(first))
}

func TestSetLinkStatus_NoDuplicateNotifications(t *testing.T) {
	s, _ := newTestState(t)

	var count int
	s.Subscribe(func(Snapshot) { count++ })

	s.SetLinkStatus(LinkConnected)
	s.SetLinkStatus(LinkConnected)
	assert.Equal(t, 1, count)
	assert.Equal(t, LinkConnected, s.Snapshot().LinkStatus)
}
