// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Liftlab Systems

package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/liftlab/liftpilot/pkg/capture"
	"github.com/liftlab/liftpilot/pkg/elevator"
	"github.com/liftlab/liftpilot/pkg/sec3000h"
)

var replayTimescale float64

var replayCmd = &cobra.Command{
	Use:   "replay <capture-file>",
	Short: "Replay a captured session",
	Long: `Read a capture file written by 'raw_log --capture' and play it back:
decode the recorded frames, reconstruct the elevator state they describe and
print the session as it originally unfolded.

With --timescale 0 (the default) the replay runs as fast as possible; set it
to 1.0 for real time or any other factor to stretch or compress the pauses.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().Float64Var(&replayTimescale, "timescale", 0,
		"Pause between entries as a multiple of the recorded gaps (0 = no pauses)")
}

// parseHexDump reverses the space-separated hex rendering used in log entries.
func parseHexDump(s string) ([]byte, error) {
	return hex.DecodeString(strings.ReplaceAll(s, " ", ""))
}

func describeReplayed(tg sec3000h.Telegram) string {
	switch tg.Control() {
	case sec3000h.ControlACK:
		return fmt.Sprintf("ACK station=%s", tg.Station())
	case sec3000h.ControlNAK:
		return fmt.Sprintf("NAK station=%s", tg.Station())
	default:
		return fmt.Sprintf("ENQ station=%s %s", tg.Station(),
			sec3000h.DescribeRegister(tg.Register(), tg.Value()))
	}
}

func runReplay(cmd *cobra.Command, args []string) error {
	rd, err := capture.Open(args[0])
	if err != nil {
		return err
	}
	defer rd.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	state := elevator.New(elevator.Config{Logger: logger})
	defer state.Close()
	state.SetLinkStatus(elevator.LinkSimulated)

	dec := sec3000h.NewDecoder()
	stats := sec3000h.NewStatistics()

	var prev time.Time
	entries := 0
	for {
		entry, err := rd.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading capture: %w", err)
		}
		entries++

		if replayTimescale > 0 && !prev.IsZero() {
			gap := entry.Timestamp.Sub(prev)
			if gap > 0 {
				time.Sleep(time.Duration(float64(gap) * replayTimescale))
			}
		}
		prev = entry.Timestamp

		stamp := entry.Timestamp.Format("15:04:05.000")
		if entry.Direction != sec3000h.DirReceive {
			fmt.Printf("[%s] %-7s %s\n", stamp, entry.Direction, entry.Note)
			continue
		}

		raw, err := parseHexDump(entry.RawHex)
		if err != nil {
			fmt.Printf("[%s] receive (unreadable entry: %v)\n", stamp, err)
			continue
		}
		telegrams, errs := dec.Feed(raw)
		for _, err := range errs {
			stats.Update(err)
			fmt.Printf("[%s] decode error: %v\n", stamp, err)
		}
		for _, tg := range telegrams {
			stats.Update(nil)
			fmt.Printf("[%s] %s\n", stamp, describeReplayed(tg))
			if tg.IsEnq() {
				state.ApplyTelegram(tg.Register(), tg.Value())
			}
		}
	}

	fmt.Printf("\nReplayed %d entries\n", entries)
	fmt.Printf("Final state: %s\n", formatSnapshot(state.Snapshot()))
	fmt.Printf("%s\n", stats.String())
	return nil
}
