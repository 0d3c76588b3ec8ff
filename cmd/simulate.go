// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Liftlab Systems

package cmd

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/liftlab/liftpilot/pkg/autopilot"
	"github.com/liftlab/liftpilot/pkg/link"
	"github.com/liftlab/liftpilot/pkg/sec3000h"
)

var (
	simStartFloor string
	simRepeat     int
	simInterval   time.Duration
	simRetries    int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Act as the car controller broadcasting status",
	Long: `Play the car controller role (station 0002): cyclically broadcast a
movement scenario over the connection.

Each scenario picks a random destination and sends, in order: the current
floor, the target floor, the landing (target floor cleared), and the load
weight. Every ENQ waits for the peer's ACK and is retried on timeout.`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVar(&simStartFloor, "start-floor", "1F", "Starting floor (B1F..5F)")
	simulateCmd.Flags().IntVar(&simRepeat, "repeat", 5, "Times each status value is repeated")
	simulateCmd.Flags().DurationVar(&simInterval, "interval", time.Second, "Delay between repeated sends")
	simulateCmd.Flags().IntVar(&simRetries, "retries", 8, "Send attempts per telegram before giving up")
}

// carSimulator broadcasts the movement scenario until stopped.
type carSimulator struct {
	mgr     *link.Manager
	log     *slog.Logger
	rng     *rand.Rand
	floors  []sec3000h.Floor
	current sec3000h.Floor
	stop    chan struct{}
}

func (c *carSimulator) broadcast(register sec3000h.Register, value uint16) bool {
	tg := sec3000h.NewEnq(sec3000h.StationCarController, register, value)
	for attempt := 1; attempt <= simRetries; attempt++ {
		select {
		case <-c.stop:
			return false
		default:
		}
		err := c.mgr.Send(tg)
		if err == nil {
			return true
		}
		c.log.Warn("send failed",
			"register", sec3000h.FormatRegisterName(register),
			"attempt", attempt, "error", err)
	}
	c.log.Error("giving up on telegram",
		"register", sec3000h.FormatRegisterName(register))
	return false
}

// repeatStatus sends the same register value simRepeat times at simInterval,
// the way the hardware re-announces each status.
func (c *carSimulator) repeatStatus(register sec3000h.Register, value uint16, note string) bool {
	for i := 0; i < simRepeat; i++ {
		c.log.Info("status", "what", note, "n", fmt.Sprintf("%d/%d", i+1, simRepeat))
		if !c.broadcast(register, value) {
			return false
		}
		if !c.pause(simInterval) {
			return false
		}
	}
	return true
}

func (c *carSimulator) pause(d time.Duration) bool {
	select {
	case <-c.stop:
		return false
	case <-time.After(d):
		return true
	}
}

func (c *carSimulator) run() {
	for {
		// Random destination, never the current floor.
		var candidates []sec3000h.Floor
		for _, f := range c.floors {
			if f != c.current {
				candidates = append(candidates, f)
			}
		}
		target := candidates[c.rng.Intn(len(candidates))]
		c.log.Info("new scenario", "from", c.current.String(), "to", target.String())

		if !c.repeatStatus(sec3000h.RegCurrentFloor, c.current.Value(),
			"current floor "+c.current.String()) {
			return
		}
		if !c.pause(3 * time.Second) {
			return
		}

		if !c.repeatStatus(sec3000h.RegTargetFloor, target.Value(),
			"target floor "+target.String()) {
			return
		}
		if !c.pause(3 * time.Second) {
			return
		}

		// Landing: target floor cleared.
		if !c.repeatStatus(sec3000h.RegTargetFloor, sec3000h.ValueNoTarget, "landing") {
			return
		}
		c.current = target
		c.log.Info("landed", "floor", c.current.String())

		load := uint16(c.rng.Intn(11) * 60)
		if !c.repeatStatus(sec3000h.RegLoadWeight, load,
			fmt.Sprintf("load %d kg", load)) {
			return
		}

		if !c.pause(5 * time.Second) {
			return
		}
	}
}

func runSimulate(cmd *cobra.Command, args []string) error {
	start, err := sec3000h.ParseFloor(simStartFloor)
	if err != nil {
		return fmt.Errorf("invalid start floor %q: %w", simStartFloor, err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	dialer, err := newDialer()
	if err != nil {
		return err
	}
	mgr := link.NewManager(dialer, link.Config{
		Station: sec3000h.StationCarController,
		Logger:  logger,
	})
	mgr.OnTelegram(func(tg sec3000h.Telegram) {
		logger.Info("command received",
			"register", sec3000h.FormatRegisterName(tg.Register()),
			"detail", sec3000h.DescribeRegister(tg.Register(), tg.Value()))
	})
	if err := mgr.Open(); err != nil {
		return err
	}
	defer mgr.Close()

	fmt.Printf("Liftpilot - Car Controller Simulator\n")
	fmt.Printf("Connection: %s\n", dialer.Describe())
	fmt.Printf("Starting floor: %s\n", start.String())
	fmt.Printf("Press Ctrl+C to stop\n\n")

	sim := &carSimulator{
		mgr:     mgr,
		log:     logger,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		floors:  autopilot.DefaultSequence,
		current: start,
		stop:    make(chan struct{}),
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sim.run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	fmt.Printf("\nReceived %s, shutting down\n", sig)
	close(sim.stop)
	<-done
	return nil
}
