// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Liftlab Systems

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/liftlab/liftpilot/pkg/link"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Station addressing
	stationAddr string
)

var rootCmd = &cobra.Command{
	Use:   "liftpilot",
	Short: "SEC-3000H elevator protocol toolkit",
	Long: `Liftpilot - monitor, drive and simulate the SEC-3000H elevator serial protocol.

Provides commands for automatic operation (pilot), live status monitoring
(watch, raw_log), car-controller simulation (simulate) and capture replay.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 9600]
  WebSocket: --url ws://host/path [--username user]

The serial line always runs 8 data bits, even parity, 1 stop bit. When no
device can be opened, commands continue in simulated mode with log-only
sends instead of failing.

For WebSocket authentication, the password is read from the LIFTPILOT_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version: "1.2.0",
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", link.DefaultBaudRate, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVar(&stationAddr, "station", "0001", "Destination station address for outbound commands")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
