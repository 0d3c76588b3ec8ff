// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Liftlab Systems

package cmd

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/liftlab/liftpilot/pkg/capture"
	"github.com/liftlab/liftpilot/pkg/link"
	"github.com/liftlab/liftpilot/pkg/sec3000h"
)

var rawLogCapture string

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display decoded telegrams as they arrive",
	Long: `Continuously decode and display SEC-3000H telegrams from the connection.

Each telegram is shown with timestamp, station, register and decoded value.
Malformed input is reported and the decoder resynchronizes on the next frame.

With --capture, every telegram (and decode error) is additionally recorded
to a CBOR capture file that the replay command can play back.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().StringVar(&rawLogCapture, "capture", "", "Record traffic to a CBOR capture file")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	dialer, err := newDialer()
	if err != nil {
		return err
	}
	conn, err := dialer.Dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	var rec *capture.Writer
	if rawLogCapture != "" {
		rec, err = capture.Create(rawLogCapture)
		if err != nil {
			return err
		}
		defer rec.Close()
		fmt.Printf("Recording to %s\n", rawLogCapture)
	}

	fmt.Printf("Liftpilot - Raw Telegram Log\n")
	fmt.Printf("Connection: %s\n", dialer.Describe())
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := sec3000h.NewDecoder()
	buf := make([]byte, 128)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			// A closed WebSocket bridge never comes back; exit cleanly.
			if errors.Is(err, link.ErrTransportClosed) {
				log.Printf("Connection closed")
				return nil
			}
			log.Printf("Read error: %v", err)
			continue
		}

		for i := 0; i < n; i++ {
			tg, err := decoder.DecodeByte(buf[i])
			if err != nil {
				fmt.Printf("[ERROR] %v\n", err)
				record(rec, sec3000h.LogEntry{
					Timestamp: time.Now(),
					Direction: sec3000h.DirSystem,
					Outcome:   sec3000h.OutcomeError,
					Note:      err.Error(),
				})
				continue
			}
			if tg != nil {
				fmt.Println(sec3000h.FormatTelegram(*tg))
				note := "response"
				if tg.IsEnq() {
					note = sec3000h.DescribeRegister(tg.Register(), tg.Value())
				}
				record(rec, sec3000h.LogEntry{
					Timestamp: tg.Timestamp(),
					Direction: sec3000h.DirReceive,
					RawHex:    sec3000h.HexDump(sec3000h.Encode(*tg)),
					Outcome:   sec3000h.OutcomeSuccess,
					Note:      note,
				})
			}
		}
	}
}

func record(w *capture.Writer, e sec3000h.LogEntry) {
	if w == nil {
		return
	}
	if err := w.Write(e); err != nil {
		log.Printf("Capture write error: %v", err)
	}
}
