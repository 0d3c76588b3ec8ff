// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Liftlab Systems

// Package elevator models a single elevator car: floor position, motion,
// door state and load, with safety-checked command operations and
// timer-driven transitions.
//
// All mutations are serialized behind one mutex. The door-closed-before-move
// interlock and the door/travel completion timers therefore never interleave
// inconsistently, whichever goroutine (link receive path, autopilot, CLI)
// drives them.
package elevator

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tiendc/go-deepcopy"

	"github.com/liftlab/liftpilot/pkg/sec3000h"
)

// DoorState is the position of the car doors.
type DoorState int

const (
	DoorClosed DoorState = iota
	DoorOpening
	DoorOpen
	DoorClosing
	// DoorUnknown is entered by a stop command or an unrecognized inbound
	// door value, and left only by an explicit open or close.
	DoorUnknown
)

func (d DoorState) String() string {
	switch d {
	case DoorClosed:
		return "closed"
	case DoorOpening:
		return "opening"
	case DoorOpen:
		return "open"
	case DoorClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// LinkStatus mirrors the serial link's connection state into the snapshot.
type LinkStatus int

const (
	LinkDisconnected LinkStatus = iota
	LinkConnecting
	LinkConnected
	LinkError
	LinkSimulated
)

func (s LinkStatus) String() string {
	switch s {
	case LinkConnecting:
		return "connecting"
	case LinkConnected:
		return "connected"
	case LinkError:
		return "error"
	case LinkSimulated:
		return "simulated"
	default:
		return "disconnected"
	}
}

// DoorAction is a door command.
type DoorAction int

const (
	DoorActionStop DoorAction = iota
	DoorActionOpen
	DoorActionClose
)

func (a DoorAction) String() string {
	switch a {
	case DoorActionOpen:
		return "open"
	case DoorActionClose:
		return "close"
	default:
		return "stop"
	}
}

// Snapshot is a point-in-time copy of the car state. Instances handed to
// subscribers are detached deep copies; mutating one has no effect on the
// live state.
type Snapshot struct {
	CurrentFloor *sec3000h.Floor `json:"current_floor"`
	TargetFloor  *sec3000h.Floor `json:"target_floor"`
	DoorState    DoorState       `json:"door_state"`
	IsMoving     bool            `json:"is_moving"`
	LoadKg       int             `json:"load_kg"`
	Passengers   int             `json:"passengers"`
	LinkStatus   LinkStatus      `json:"link_status"`
	LastCommsAt  *time.Time      `json:"last_comms_at"`
}

// Config carries the timing and bound parameters of the state machine.
type Config struct {
	// TravelTime is the fixed duration of any floor change, regardless of
	// distance.
	TravelTime time.Duration
	// DoorTime is the duration of a door open or close operation.
	DoorTime time.Duration
	// MaxLoadKg bounds SetLoad. Zero selects DefaultMaxLoadKg.
	MaxLoadKg int

	Clock  Clock
	Logger *slog.Logger
}

const (
	DefaultTravelTime = 3 * time.Second
	DefaultDoorTime   = 2 * time.Second
	DefaultMaxLoadKg  = 1000
)

// State is the authoritative model of one elevator car.
type State struct {
	mu   sync.Mutex
	cfg  Config
	clk  Clock
	log  *slog.Logger
	snap Snapshot

	moveTimer Timer
	doorTimer Timer

	subscribers []func(Snapshot)
}

// New creates an elevator State with doors closed, no position and no load.
func New(cfg Config) *State {
	if cfg.TravelTime <= 0 {
		cfg.TravelTime = DefaultTravelTime
	}
	if cfg.DoorTime <= 0 {
		cfg.DoorTime = DefaultDoorTime
	}
	if cfg.MaxLoadKg <= 0 {
		cfg.MaxLoadKg = DefaultMaxLoadKg
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &State{
		cfg: cfg,
		clk: cfg.Clock,
		log: cfg.Logger,
		snap: Snapshot{
			DoorState:  DoorClosed,
			LinkStatus: LinkDisconnected,
		},
	}
}

// Subscribe registers fn to be called with a detached snapshot after every
// successful mutation, in mutation order. fn runs on the mutating goroutine
// and must not call back into the State.
func (s *State) Subscribe(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Snapshot returns a detached copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copySnapshot()
}

// RequestFloor commands a floor change. It fails with ErrDoorNotClosed
// unless the doors are fully closed. Arrival is scheduled after the
// configured travel time.
func (s *State) RequestFloor(floor sec3000h.Floor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestFloorLocked(floor)
}

func (s *State) requestFloorLocked(floor sec3000h.Floor) error {
	if s.snap.DoorState != DoorClosed {
		return fmt.Errorf("%w (door is %s)", ErrDoorNotClosed, s.snap.DoorState)
	}
	if s.moveTimer != nil {
		s.moveTimer.Stop()
	}
	target := floor
	s.snap.TargetFloor = &target
	s.snap.IsMoving = true
	s.moveTimer = s.clk.AfterFunc(s.cfg.TravelTime, func() { s.arrive(target) })
	s.log.Info("floor requested", "floor", floor.String())
	s.touchLocked()
	s.notifyLocked()
	return nil
}

func (s *State) arrive(floor sec3000h.Floor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arriveLocked(floor)
	s.notifyLocked()
}

func (s *State) arriveLocked(floor sec3000h.Floor) {
	current := floor
	s.snap.CurrentFloor = &current
	s.snap.TargetFloor = nil
	s.snap.IsMoving = false
	s.moveTimer = nil
	s.log.Info("arrived", "floor", floor.String())
	s.touchLocked()
}

// RequestDoor commands the doors. Open and close enter the transitional
// state immediately and settle after the configured door time. Stop leaves
// the doors in DoorUnknown until a subsequent explicit open or close.
//
// An open command issued while the car is moving completes the pending
// movement first, so the doors never open between floors.
func (s *State) RequestDoor(action DoorAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestDoorLocked(action)
	return nil
}

func (s *State) requestDoorLocked(action DoorAction) {
	if s.doorTimer != nil {
		s.doorTimer.Stop()
		s.doorTimer = nil
	}
	switch action {
	case DoorActionOpen:
		if s.snap.IsMoving && s.snap.TargetFloor != nil {
			if s.moveTimer != nil {
				s.moveTimer.Stop()
			}
			s.arriveLocked(*s.snap.TargetFloor)
		}
		s.snap.DoorState = DoorOpening
		s.doorTimer = s.clk.AfterFunc(s.cfg.DoorTime, func() { s.settleDoor(DoorOpening, DoorOpen) })
	case DoorActionClose:
		s.snap.DoorState = DoorClosing
		s.doorTimer = s.clk.AfterFunc(s.cfg.DoorTime, func() { s.settleDoor(DoorClosing, DoorClosed) })
	default:
		s.snap.DoorState = DoorUnknown
	}
	s.log.Info("door command", "action", action.String())
	s.touchLocked()
	s.notifyLocked()
}

func (s *State) settleDoor(from, to DoorState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.DoorState != from {
		return
	}
	s.snap.DoorState = to
	s.doorTimer = nil
	s.touchLocked()
	s.notifyLocked()
}

// SetLoad updates the load weight. It fails with ErrLoadOutOfRange if kg is
// negative or exceeds the configured maximum.
func (s *State) SetLoad(kg int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLoadLocked(kg)
}

func (s *State) setLoadLocked(kg int) error {
	if kg < 0 || kg > s.cfg.MaxLoadKg {
		return fmt.Errorf("%w: %d kg (limit %d)", ErrLoadOutOfRange, kg, s.cfg.MaxLoadKg)
	}
	s.snap.LoadKg = kg
	s.touchLocked()
	s.notifyLocked()
	return nil
}

// SetPassengers records the simulated occupancy count shown in the snapshot.
func (s *State) SetPassengers(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 0 {
		n = 0
	}
	s.snap.Passengers = n
	s.notifyLocked()
}

// SetLinkStatus mirrors the link state into the snapshot.
func (s *State) SetLinkStatus(status LinkStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.LinkStatus == status {
		return
	}
	s.snap.LinkStatus = status
	s.notifyLocked()
}

// ApplyTelegram applies one received register write. Status registers update
// the snapshot directly; the command registers drive the motion and door
// machinery as if issued locally.
func (s *State) ApplyTelegram(register sec3000h.Register, value uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch register {
	case sec3000h.RegCurrentFloor:
		floor := sec3000h.FloorFromValue(value)
		s.snap.CurrentFloor = &floor
		s.touchLocked()
		s.notifyLocked()

	case sec3000h.RegTargetFloor:
		if value == sec3000h.ValueNoTarget {
			s.snap.TargetFloor = nil
			s.snap.IsMoving = false
		} else {
			floor := sec3000h.FloorFromValue(value)
			s.snap.TargetFloor = &floor
			s.snap.IsMoving = true
		}
		s.touchLocked()
		s.notifyLocked()

	case sec3000h.RegLoadWeight:
		if err := s.setLoadLocked(int(value)); err != nil {
			s.log.Warn("inbound load rejected", "kg", value, "error", err)
			return err
		}

	case sec3000h.RegFloorSetting:
		if err := s.requestFloorLocked(sec3000h.FloorFromValue(value)); err != nil {
			s.log.Warn("inbound floor setting rejected", "error", err)
			return err
		}

	case sec3000h.RegDoorControl:
		switch value {
		case sec3000h.DoorCmdOpen:
			s.requestDoorLocked(DoorActionOpen)
		case sec3000h.DoorCmdClose:
			s.requestDoorLocked(DoorActionClose)
		case sec3000h.DoorCmdStop:
			s.requestDoorLocked(DoorActionStop)
		default:
			s.log.Warn("unrecognized door value", "value", value)
			s.snap.DoorState = DoorUnknown
			s.touchLocked()
			s.notifyLocked()
		}

	default:
		s.log.Warn("unrecognized register", "register", fmt.Sprintf("0x%04X", uint16(register)))
	}
	return nil
}

// LastCommsAt returns the time of the last successful mutation, or the zero
// time if none has occurred.
func (s *State) LastCommsAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.LastCommsAt == nil {
		return time.Time{}
	}
	return *s.snap.LastCommsAt
}

// Close cancels any pending door or travel timer. The state is left as-is.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.moveTimer != nil {
		s.moveTimer.Stop()
		s.moveTimer = nil
	}
	if s.doorTimer != nil {
		s.doorTimer.Stop()
		s.doorTimer = nil
	}
}

func (s *State) touchLocked() {
	now := s.clk.Now()
	s.snap.LastCommsAt = &now
}

func (s *State) notifyLocked() {
	snap := s.copySnapshot()
	for _, fn := range s.subscribers {
		fn(snap)
	}
}

func (s *State) copySnapshot() Snapshot {
	var out Snapshot
	if err := deepcopy.Copy(&out, &s.snap); err != nil {
		// Snapshot contains only plain fields; a copy failure would be a
		// programming error.
		s.log.Error("snapshot copy failed", "error", err)
		return s.snap
	}
	return out
}
