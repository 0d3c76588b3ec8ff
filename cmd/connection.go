// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Liftlab Systems

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/liftlab/liftpilot/pkg/link"
)

// GetPassword retrieves the WebSocket password from the environment or
// prompts the user. On a terminal the input is read without echo; piped
// stdin falls back to a plain line read.
func GetPassword() (string, error) {
	if pw := os.Getenv("LIFTPILOT_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	defer fmt.Fprintln(os.Stderr)

	fd := int(syscall.Stdin)
	if term.IsTerminal(fd) {
		passwordBytes, err := term.ReadPassword(fd)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(passwordBytes), nil
	}

	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return "", fmt.Errorf("no password on stdin")
	}
	return strings.TrimSpace(scanner.Text()), nil
}

// newDialer builds a link.Dialer from the connection flags. WebSocket takes
// precedence when both are given; with neither, a serial dialer for an empty
// port is returned, which fails to open and drops the link into simulated
// mode.
func newDialer() (link.Dialer, error) {
	if wsURL != "" {
		password := ""
		if wsUsername != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, err
			}
		}
		return link.WebSocketDialer{
			URL:           wsURL,
			Username:      wsUsername,
			Password:      password,
			SkipSSLVerify: wsNoSSLVerify,
		}, nil
	}
	return link.SerialDialer{Port: portName, Baud: baudRate}, nil
}

// openLink builds and opens a link Manager from the connection flags.
func openLink(cfg link.Config) (*link.Manager, error) {
	dialer, err := newDialer()
	if err != nil {
		return nil, err
	}
	mgr := link.NewManager(dialer, cfg)
	if err := mgr.Open(); err != nil {
		return nil, err
	}
	return mgr, nil
}
