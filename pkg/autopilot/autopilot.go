// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Liftlab Systems

// Package autopilot drives the elevator through a repeating unattended
// operation cycle: close doors, travel to the next floor in a fixed
// sequence, open doors, exchange simulated passengers, dwell, repeat.
//
// Commands are issued over the link send path and applied to the local
// elevator state, so the loop runs closed-loop whether or not hardware is
// present.
package autopilot

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/liftlab/liftpilot/pkg/elevator"
	"github.com/liftlab/liftpilot/pkg/sec3000h"
)

// Sender is the outbound command path, satisfied by *link.Manager.
type Sender interface {
	Send(sec3000h.Telegram) error
}

// DefaultSequence is the cyclic floor order.
var DefaultSequence = []sec3000h.Floor{
	sec3000h.Basement,
	sec3000h.Floor(1),
	sec3000h.Floor(2),
	sec3000h.Floor(3),
	sec3000h.Floor(4),
	sec3000h.Floor(5),
}

const (
	// DefaultPassengerWeightKg is the per-passenger weight used to derive
	// the load from the occupancy count.
	DefaultPassengerWeightKg = 60
	// DefaultMaxPassengers is the car's occupancy limit.
	DefaultMaxPassengers = 10

	defaultPollInterval = 100 * time.Millisecond
	defaultWaitGrace    = 2 * time.Second
)

// Config carries the pilot parameters. Zero fields select the defaults.
type Config struct {
	Timing   Timing
	Sequence []sec3000h.Floor
	// Station is the destination station for outbound commands.
	Station           string
	PassengerWeightKg int
	MaxPassengers     int
	// PollInterval paces the bounded waits for arrival and door settling.
	PollInterval time.Duration
	// WaitGrace is added to each step's nominal duration to form the wait
	// timeout. A step that overruns it is abandoned with a warning.
	WaitGrace time.Duration

	// Rand drives the passenger simulation. A fixed seed makes a run
	// reproducible.
	Rand   *rand.Rand
	Logger *slog.Logger
}

// Pilot walks the floor sequence until stopped.
type Pilot struct {
	cfg    Config
	log    *slog.Logger
	state  *elevator.State
	sender Sender
	rng    *rand.Rand

	mu        sync.Mutex
	running   bool
	stop      chan struct{}
	done      chan struct{}
	seqIndex  int
	occupancy int
}

// New creates a Pilot over the given state and send path.
func New(state *elevator.State, sender Sender, cfg Config) *Pilot {
	if normal, ok := PresetTiming("normal"); ok && cfg.Timing == (Timing{}) {
		cfg.Timing = normal
	}
	if len(cfg.Sequence) == 0 {
		cfg.Sequence = DefaultSequence
	}
	if cfg.Station == "" {
		cfg.Station = sec3000h.StationOperationDevice
	}
	if cfg.PassengerWeightKg <= 0 {
		cfg.PassengerWeightKg = DefaultPassengerWeightKg
	}
	if cfg.MaxPassengers <= 0 {
		cfg.MaxPassengers = DefaultMaxPassengers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.WaitGrace <= 0 {
		cfg.WaitGrace = defaultWaitGrace
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pilot{
		cfg:    cfg,
		log:    cfg.Logger,
		state:  state,
		sender: sender,
		rng:    cfg.Rand,
	}
}

// Running reports whether the cycle loop is active.
func (p *Pilot) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Occupancy returns the current simulated passenger count.
func (p *Pilot) Occupancy() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.occupancy
}

// Start launches the cycle loop. Starting a running pilot is a no-op.
func (p *Pilot) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		p.log.Info("autopilot already running")
		return
	}
	p.running = true
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	p.log.Info("autopilot started", "timing", p.cfg.Timing.Name)
	go p.run(p.stop, p.done)
}

// Stop halts the loop and waits for the current step to unwind. Stopping a
// stopped pilot is a no-op. The elevator state is left settled: an in-flight
// travel or door transition is waited out before Stop returns.
func (p *Pilot) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	stop, done := p.stop, p.done
	p.mu.Unlock()

	close(stop)
	<-done
	p.settle()
	p.log.Info("autopilot stopped")
}

// settle polls until no travel or door transition is in flight. The state's
// own timers complete the transition; the wait is bounded by the longest
// step plus the grace period.
func (p *Pilot) settle() {
	deadline := time.Now().Add(p.cfg.Timing.MovementTime + p.cfg.Timing.DoorCloseTime + p.cfg.WaitGrace)
	for time.Now().Before(deadline) {
		snap := p.state.Snapshot()
		if !snap.IsMoving &&
			snap.DoorState != elevator.DoorOpening &&
			snap.DoorState != elevator.DoorClosing {
			return
		}
		time.Sleep(p.cfg.PollInterval)
	}
	p.log.Warn("state never settled after stop")
}

func (p *Pilot) run(stop, done chan struct{}) {
	defer close(done)

	// Park at 1F before the first cycle.
	park := sec3000h.Floor(1)
	p.commandFloor(park, stop)
	if err := p.state.RequestFloor(park); err != nil {
		p.log.Warn("parking move rejected", "error", err)
	} else if !p.waitFor(stop, p.cfg.Timing.MovementTime, func(s elevator.Snapshot) bool {
		return !s.IsMoving && s.CurrentFloor != nil && *s.CurrentFloor == park
	}) {
		p.log.Warn("parking move never settled")
	}

	for {
		p.cycle(stop)
		if !p.sleep(p.cfg.Timing.CycleInterval, stop) {
			return
		}
	}
}

// cycle runs one stop of the sequence. Each wait is bounded; a timed-out
// step is abandoned with a warning and the cycle proceeds.
func (p *Pilot) cycle(stop chan struct{}) {
	target := p.nextTarget()
	p.log.Info("next target", "floor", target.String())

	// Doors must be fully closed before a floor change is accepted.
	p.commandDoor(elevator.DoorActionClose, stop)
	p.state.RequestDoor(elevator.DoorActionClose)
	if !p.waitFor(stop, p.cfg.Timing.DoorCloseTime, func(s elevator.Snapshot) bool {
		return s.DoorState == elevator.DoorClosed
	}) {
		p.log.Warn("doors never closed, abandoning step")
		return
	}

	p.commandFloor(target, stop)
	if err := p.state.RequestFloor(target); err != nil {
		p.log.Warn("floor request rejected", "floor", target.String(), "error", err)
		return
	}
	if !p.waitFor(stop, p.cfg.Timing.MovementTime, func(s elevator.Snapshot) bool {
		return !s.IsMoving && s.CurrentFloor != nil && *s.CurrentFloor == target
	}) {
		p.log.Warn("car never arrived", "floor", target.String())
		return
	}
	p.log.Info("arrived", "floor", target.String())

	p.commandDoor(elevator.DoorActionOpen, stop)
	p.state.RequestDoor(elevator.DoorActionOpen)
	if !p.waitFor(stop, p.cfg.Timing.DoorOpenTime, func(s elevator.Snapshot) bool {
		return s.DoorState == elevator.DoorOpen
	}) {
		p.log.Warn("doors never opened")
		return
	}

	p.exchangePassengers(stop)

	// Dwell with doors open while passengers move.
	p.sleep(p.cfg.Timing.PassengerTime, stop)
}

func (p *Pilot) nextTarget() sec3000h.Floor {
	p.mu.Lock()
	defer p.mu.Unlock()
	target := p.cfg.Sequence[p.seqIndex]
	p.seqIndex = (p.seqIndex + 1) % len(p.cfg.Sequence)
	return target
}

// exchangePassengers draws exiting passengers uniformly from the current
// occupancy and entering passengers uniformly from the remaining capacity,
// then derives the new load weight.
func (p *Pilot) exchangePassengers(stop chan struct{}) {
	p.mu.Lock()
	occupancy := p.occupancy
	exiting := p.rng.Intn(occupancy + 1)
	remaining := p.cfg.MaxPassengers - (occupancy - exiting)
	entering := p.rng.Intn(remaining + 1)
	occupancy = occupancy - exiting + entering
	p.occupancy = occupancy
	p.mu.Unlock()

	load := occupancy * p.cfg.PassengerWeightKg
	p.log.Info("passenger exchange",
		"exiting", exiting, "entering", entering,
		"occupancy", occupancy, "load_kg", load)

	p.sendCommand(sec3000h.RegLoadWeight, uint16(load), stop)
	p.state.SetPassengers(occupancy)
	if err := p.state.SetLoad(load); err != nil {
		p.log.Warn("load rejected", "kg", load, "error", err)
	}
}

func (p *Pilot) commandFloor(floor sec3000h.Floor, stop chan struct{}) {
	p.sendCommand(sec3000h.RegFloorSetting, floor.Value(), stop)
}

func (p *Pilot) commandDoor(action elevator.DoorAction, stop chan struct{}) {
	var value uint16
	switch action {
	case elevator.DoorActionOpen:
		value = sec3000h.DoorCmdOpen
	case elevator.DoorActionClose:
		value = sec3000h.DoorCmdClose
	default:
		value = sec3000h.DoorCmdStop
	}
	p.sendCommand(sec3000h.RegDoorControl, value, stop)
}

// sendCommand issues an ENQ over the link. Send failures are warnings: the
// local simulation continues regardless.
func (p *Pilot) sendCommand(register sec3000h.Register, value uint16, stop chan struct{}) {
	select {
	case <-stop:
		return
	default:
	}
	tg := sec3000h.NewEnq(p.cfg.Station, register, value)
	if err := p.sender.Send(tg); err != nil {
		p.log.Warn("send failed",
			"register", sec3000h.FormatRegisterName(register), "error", err)
	}
}

// waitFor polls the state until cond holds or the nominal duration plus the
// grace period elapses. It returns false on timeout or stop.
func (p *Pilot) waitFor(stop chan struct{}, nominal time.Duration, cond func(elevator.Snapshot) bool) bool {
	deadline := time.NewTimer(nominal + p.cfg.WaitGrace)
	defer deadline.Stop()
	tick := time.NewTicker(p.cfg.PollInterval)
	defer tick.Stop()

	for {
		if cond(p.state.Snapshot()) {
			return true
		}
		select {
		case <-stop:
			return false
		case <-deadline.C:
			return false
		case <-tick.C:
		}
	}
}

// sleep pauses for d, returning false if the pilot was stopped meanwhile.
func (p *Pilot) sleep(d time.Duration, stop chan struct{}) bool {
	if d <= 0 {
		select {
		case <-stop:
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-stop:
		return false
	case <-timer.C:
		return true
	}
}
