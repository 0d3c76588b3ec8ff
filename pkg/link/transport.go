// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Liftlab Systems

package link

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
)

// Transport is a byte pipe to the car controller. Serial and WebSocket
// bridges both satisfy it.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer
}

// Dialer opens a Transport. The Manager redials through it after I/O errors.
type Dialer interface {
	Dial() (Transport, error)
	// Describe names the endpoint for logs.
	Describe() string
}

// DefaultBaudRate is the SEC-3000H line rate.
const DefaultBaudRate = 9600

// SerialDialer opens a serial port with the SEC-3000H line settings:
// 8 data bits, even parity, 1 stop bit.
type SerialDialer struct {
	Port string
	Baud int
}

func (d SerialDialer) Dial() (Transport, error) {
	baud := d.Baud
	if baud == 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.EvenParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(d.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", d.Port, err)
	}
	return &serialTransport{port: port}, nil
}

func (d SerialDialer) Describe() string {
	return fmt.Sprintf("serial: %s", d.Port)
}

type serialTransport struct {
	port serial.Port
}

func (s *serialTransport) Read(p []byte) (int, error)  { return s.port.Read(p) }
func (s *serialTransport) Write(p []byte) (int, error) { return s.port.Write(p) }
func (s *serialTransport) Close() error                { return s.port.Close() }

// ErrTransportClosed is returned when reading from a closed WebSocket transport.
var ErrTransportClosed = fmt.Errorf("websocket transport closed")

// WebSocketDialer connects to a serial-over-WebSocket bridge with optional
// HTTP Basic auth.
type WebSocketDialer struct {
	URL           string
	Username      string
	Password      string
	SkipSSLVerify bool
}

func (d WebSocketDialer) Dial() (Transport, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: d.SkipSSLVerify,
		}
	}

	headers := http.Header{}
	if d.Username != "" && d.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(d.Username + ":" + d.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, d.URL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return &websocketTransport{conn: conn}, nil
}

func (d WebSocketDialer) Describe() string {
	return fmt.Sprintf("WebSocket: %s", d.URL)
}

// wsConn is the slice of *websocket.Conn the transport needs.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// websocketTransport adapts message-oriented WebSocket I/O to a byte stream.
// A partially consumed inbound message is held as a pending reader until the
// next Read drains it.
type websocketTransport struct {
	conn    wsConn
	pending *bytes.Reader
	closed  bool
}

func (w *websocketTransport) Read(p []byte) (int, error) {
	if w.closed {
		return 0, ErrTransportClosed
	}

	for w.pending == nil || w.pending.Len() == 0 {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed = true
			return 0, err
		}
		// Telegrams travel as binary messages; skip anything else.
		if messageType == websocket.BinaryMessage {
			w.pending = bytes.NewReader(data)
		}
	}
	return w.pending.Read(p)
}

func (w *websocketTransport) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *websocketTransport) Close() error {
	return w.conn.Close()
}
