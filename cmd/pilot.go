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
	"github.com/liftlab/liftpilot/pkg/elevator"
	"github.com/liftlab/liftpilot/pkg/link"
	"github.com/liftlab/liftpilot/pkg/sec3000h"
)

var (
	pilotSpeed   string
	pilotConfig  string
	pilotMaxLoad int
	pilotSeed    int64
)

var pilotCmd = &cobra.Command{
	Use:   "pilot",
	Short: "Run the automatic operation cycle",
	Long: `Drive the elevator through the cyclic floor sequence B1F,1F,2F,3F,4F,5F:
close doors, travel, open doors, exchange simulated passengers, dwell, repeat.

Commands are sent over the configured connection and applied to the local
elevator model, so the cycle runs closed-loop with or without hardware.

Timing comes from a speed preset (--speed), optionally overlaid with a YAML
file (--config). A fixed --seed makes the passenger simulation reproducible.`,
	RunE: runPilot,
}

func init() {
	rootCmd.AddCommand(pilotCmd)
	pilotCmd.Flags().StringVar(&pilotSpeed, "speed", "normal",
		fmt.Sprintf("Timing preset %v", autopilot.PresetNames()))
	pilotCmd.Flags().StringVar(&pilotConfig, "config", "", "YAML timing override file")
	pilotCmd.Flags().IntVar(&pilotMaxLoad, "max-load", elevator.DefaultMaxLoadKg, "Maximum load weight (kg)")
	pilotCmd.Flags().Int64Var(&pilotSeed, "seed", 0, "Passenger simulation seed (0 = random)")
}

// linkStatus maps the link state into the elevator snapshot's enum.
func linkStatus(s link.State) elevator.LinkStatus {
	switch s {
	case link.StateConnecting:
		return elevator.LinkConnecting
	case link.StateConnected:
		return elevator.LinkConnected
	case link.StateError:
		return elevator.LinkError
	case link.StateSimulated:
		return elevator.LinkSimulated
	default:
		return elevator.LinkDisconnected
	}
}

func formatSnapshot(snap elevator.Snapshot) string {
	current, target := "--", "--"
	if snap.CurrentFloor != nil {
		current = snap.CurrentFloor.String()
	}
	if snap.TargetFloor != nil {
		target = snap.TargetFloor.String()
	}
	moving := "stopped"
	if snap.IsMoving {
		moving = "moving"
	}
	return fmt.Sprintf("floor=%s target=%s %s door=%s load=%dkg passengers=%d link=%s",
		current, target, moving, snap.DoorState, snap.LoadKg, snap.Passengers, snap.LinkStatus)
}

func runPilot(cmd *cobra.Command, args []string) error {
	timing, ok := autopilot.PresetTiming(pilotSpeed)
	if !ok {
		return fmt.Errorf("unknown speed preset %q (choose from %v)", pilotSpeed, autopilot.PresetNames())
	}
	if pilotConfig != "" {
		var err error
		timing, err = autopilot.LoadTimingFile(pilotConfig, timing)
		if err != nil {
			return err
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	state := elevator.New(elevator.Config{
		TravelTime: timing.MovementTime,
		DoorTime:   timing.DoorOpenTime,
		MaxLoadKg:  pilotMaxLoad,
		Logger:     logger,
	})
	defer state.Close()

	dialer, err := newDialer()
	if err != nil {
		return err
	}
	mgr := link.NewManager(dialer, link.Config{Station: stationAddr, Logger: logger})
	mgr.OnStateChange(func(s link.State) { state.SetLinkStatus(linkStatus(s)) })
	mgr.OnTelegram(func(tg sec3000h.Telegram) { state.ApplyTelegram(tg.Register(), tg.Value()) })
	if err := mgr.Open(); err != nil {
		return err
	}
	defer mgr.Close()

	var rng *rand.Rand
	if pilotSeed != 0 {
		rng = rand.New(rand.NewSource(pilotSeed))
	}
	pilot := autopilot.New(state, mgr, autopilot.Config{
		Timing:  timing,
		Station: stationAddr,
		Rand:    rng,
		Logger:  logger,
	})

	fmt.Printf("Liftpilot - Automatic Operation\n")
	fmt.Printf("Connection: %s\n", dialer.Describe())
	fmt.Printf("Timing: %s (%s)\n", timing.Name, timing.Description)
	fmt.Printf("Press Ctrl+C to stop\n\n")

	pilot.Start()
	defer pilot.Stop()

	statusTicker := time.NewTicker(timing.StatusInterval)
	defer statusTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-statusTicker.C:
			fmt.Println(formatSnapshot(state.Snapshot()))
			fmt.Print(mgr.Stats().String())
		case sig := <-sigCh:
			fmt.Printf("\nReceived %s, shutting down\n", sig)
			return nil
		}
	}
}
