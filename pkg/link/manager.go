// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Liftlab Systems

// Package link owns the connection to the car controller: it frames the
// byte stream into telegrams, suppresses duplicate register writes,
// acknowledges inbound ENQs, and supervises reconnection after I/O errors.
//
// When the configured device cannot be opened the link degrades to a
// simulated mode in which every send succeeds as a log-only event, so the
// rest of the system runs without hardware present.
package link

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/liftlab/liftpilot/pkg/sec3000h"
)

// State is the link connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateError
	StateSimulated
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	case StateSimulated:
		return "simulated"
	default:
		return "disconnected"
	}
}

var (
	// ErrTimeout means no ACK arrived within the configured window.
	ErrTimeout = errors.New("timeout waiting for response")
	// ErrUnknownResponse means the peer answered an ENQ with something
	// other than an ACK.
	ErrUnknownResponse = errors.New("unexpected response")
	// ErrNotConnected rejects sends while the link is down.
	ErrNotConnected = errors.New("link not connected")
	// ErrClosed rejects operations on a closed Manager.
	ErrClosed = errors.New("link closed")
)

const (
	DefaultAckTimeout     = 3 * time.Second
	DefaultReconnectDelay = 5 * time.Second
)

// Handler receives each novel inbound telegram, in arrival order, on the
// link's reader goroutine.
type Handler func(sec3000h.Telegram)

// Config carries the link parameters. Zero fields select the defaults.
type Config struct {
	// Station is the local station address, used in log output.
	Station string
	// AckTimeout bounds the wait for an ACK after sending an ENQ.
	AckTimeout time.Duration
	// ReconnectDelay is the fixed backoff between reconnect attempts.
	ReconnectDelay time.Duration
	// DuplicateWindow is the re-delivery suppression window.
	DuplicateWindow time.Duration
	// DisableAutoAck turns off the automatic ACK reply to novel ENQs.
	DisableAutoAck bool

	Logger  *slog.Logger
	Stats   *sec3000h.Statistics
	CommLog *sec3000h.Log
}

// Manager owns exactly one transport and the framing, acknowledgement and
// reconnect machinery around it.
type Manager struct {
	cfg    Config
	dialer Dialer
	log    *slog.Logger
	stats  *sec3000h.Statistics
	clog   *sec3000h.Log

	handler Handler
	onState func(State)

	// respCh carries ACK/NAK telegrams from the reader to a pending Send.
	respCh chan sec3000h.Telegram
	dup    *duplicateFilter

	// sendMu serializes Send so at most one ENQ awaits a response.
	sendMu sync.Mutex
	// writeMu serializes raw writes between Send and the reader's ACKs.
	writeMu sync.Mutex

	mu             sync.Mutex
	state          State
	tr             Transport
	closed         bool
	reconnectTimer *time.Timer
	readerDone     chan struct{}
}

// NewManager creates a Manager that will connect through dialer.
func NewManager(dialer Dialer, cfg Config) *Manager {
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = DefaultAckTimeout
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Stats == nil {
		cfg.Stats = sec3000h.NewStatistics()
	}
	if cfg.CommLog == nil {
		cfg.CommLog = sec3000h.NewLog(sec3000h.DefaultLogCap)
	}
	return &Manager{
		cfg:    cfg,
		dialer: dialer,
		log:    cfg.Logger,
		stats:  cfg.Stats,
		clog:   cfg.CommLog,
		respCh: make(chan sec3000h.Telegram, 1),
		dup:    newDuplicateFilter(cfg.DuplicateWindow),
	}
}

// OnTelegram registers the handler for novel inbound telegrams. It must be
// called before Open.
func (m *Manager) OnTelegram(h Handler) { m.handler = h }

// OnStateChange registers a callback for link state transitions. It must be
// called before Open. The callback runs with internal locks held and must
// not call back into the Manager.
func (m *Manager) OnStateChange(fn func(State)) { m.onState = fn }

// State returns the current link state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stats returns the shared statistics counters.
func (m *Manager) Stats() *sec3000h.Statistics { return m.stats }

// CommLog returns the shared communication log ring.
func (m *Manager) CommLog() *sec3000h.Log { return m.clog }

// Open attempts to connect. If the endpoint cannot be opened the link enters
// simulated mode instead of failing; Open only returns an error after Close.
func (m *Manager) Open() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	tr, err := m.dialer.Dial()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		if tr != nil {
			tr.Close()
		}
		return ErrClosed
	}
	if err != nil {
		m.log.Warn("open failed, entering simulated mode",
			"endpoint", m.dialer.Describe(), "error", err)
		m.clog.Append(sec3000h.DirSystem, nil, sec3000h.OutcomeError,
			fmt.Sprintf("open failed (%v); simulated mode", err))
		m.setStateLocked(StateSimulated)
		return nil
	}
	m.tr = tr
	m.setStateLocked(StateConnected)
	m.clog.Append(sec3000h.DirSystem, nil, sec3000h.OutcomeSuccess,
		"connected: "+m.dialer.Describe())
	m.startReaderLocked()
	return nil
}

// Send writes the telegram. In simulated mode every send succeeds as a
// log-only event. For an ENQ over a live transport, Send waits for the
// peer's response: ACK is success, NAK or any other control byte is
// ErrUnknownResponse, silence is ErrTimeout.
func (m *Manager) Send(tg sec3000h.Telegram) error {
	m.sendMu.Lock()
	defer m.sendMu.Unlock()

	m.mu.Lock()
	state := m.state
	tr := m.tr
	m.mu.Unlock()

	raw := sec3000h.Encode(tg)

	switch state {
	case StateSimulated:
		m.clog.Append(sec3000h.DirSend, raw, sec3000h.OutcomeSuccess, "simulated")
		m.log.Debug("simulated send", "frame", sec3000h.HexDump(raw))
		return nil
	case StateConnected:
		// fall through to the real send
	default:
		return fmt.Errorf("%w (link is %s)", ErrNotConnected, state)
	}

	// Drop any stale response left from an abandoned send.
	select {
	case <-m.respCh:
	default:
	}

	if err := m.write(tr, raw); err != nil {
		m.clog.Append(sec3000h.DirSend, raw, sec3000h.OutcomeError, err.Error())
		m.handleIOError(tr, err)
		return fmt.Errorf("write failed: %w", err)
	}

	if !tg.IsEnq() {
		m.clog.Append(sec3000h.DirSend, raw, sec3000h.OutcomeSuccess, "")
		return nil
	}

	timer := time.NewTimer(m.cfg.AckTimeout)
	defer timer.Stop()

	select {
	case resp := <-m.respCh:
		switch resp.Control() {
		case sec3000h.ControlACK:
			m.clog.Append(sec3000h.DirSend, raw, sec3000h.OutcomeSuccess, "acknowledged")
			return nil
		case sec3000h.ControlNAK:
			m.clog.Append(sec3000h.DirSend, raw, sec3000h.OutcomeError, "NAK received")
			return fmt.Errorf("%w: NAK from station %s", ErrUnknownResponse, resp.Station())
		default:
			m.clog.Append(sec3000h.DirSend, raw, sec3000h.OutcomeError, "unexpected response")
			return fmt.Errorf("%w: control byte 0x%02X", ErrUnknownResponse, resp.Control())
		}
	case <-timer.C:
		m.stats.RecordTimeout()
		m.clog.Append(sec3000h.DirSend, raw, sec3000h.OutcomeTimeout, "no response")
		return fmt.Errorf("%w after %s", ErrTimeout, m.cfg.AckTimeout)
	}
}

// Close stops the reconnect timer, closes the transport and joins the
// reader. It is safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	tr := m.tr
	m.tr = nil
	done := m.readerDone
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()

	var err error
	if tr != nil {
		err = tr.Close()
	}
	if done != nil {
		<-done
	}
	return err
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.state = s
	m.log.Info("link state", "state", s.String())
	if m.onState != nil {
		m.onState(s)
	}
}

func (m *Manager) startReaderLocked() {
	done := make(chan struct{})
	m.readerDone = done
	go m.readLoop(m.tr, done)
}

func (m *Manager) write(tr Transport, raw []byte) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	_, err := tr.Write(raw)
	return err
}

func (m *Manager) readLoop(tr Transport, done chan struct{}) {
	defer close(done)

	dec := sec3000h.NewDecoder()
	buf := make([]byte, 256)
	for {
		n, err := tr.Read(buf)
		if n > 0 {
			telegrams, errs := dec.Feed(buf[:n])
			for _, derr := range errs {
				m.stats.Update(derr)
				m.log.Debug("frame dropped", "error", derr)
			}
			for _, tg := range telegrams {
				m.stats.Update(nil)
				m.handleTelegram(tr, tg)
			}
		}
		if err != nil {
			m.handleIOError(tr, err)
			return
		}
	}
}

func (m *Manager) handleTelegram(tr Transport, tg sec3000h.Telegram) {
	raw := sec3000h.Encode(tg)

	if !tg.IsEnq() {
		// ACK or NAK: hand to the pending Send if one is waiting.
		select {
		case m.respCh <- tg:
		default:
			m.log.Debug("unsolicited response", "frame", sec3000h.HexDump(raw))
		}
		return
	}

	if m.dup.IsDuplicate(tg.Register(), tg.Value(), time.Now()) {
		m.stats.RecordDuplicate()
		m.clog.Append(sec3000h.DirReceive, raw, sec3000h.OutcomeSuccess, "duplicate suppressed")
		return
	}

	m.clog.Append(sec3000h.DirReceive, raw, sec3000h.OutcomeSuccess,
		sec3000h.DescribeRegister(tg.Register(), tg.Value()))

	if !m.cfg.DisableAutoAck {
		ack := sec3000h.EncodeAck(tg.Station())
		if err := m.write(tr, ack); err != nil {
			m.clog.Append(sec3000h.DirSend, ack, sec3000h.OutcomeError, err.Error())
			m.handleIOError(tr, err)
			return
		}
		m.stats.RecordAckSent()
		m.clog.Append(sec3000h.DirSend, ack, sec3000h.OutcomeSuccess, "ack")
	}

	if m.handler != nil {
		m.handler(tg)
	}
}

// handleIOError tears down the faulted transport and schedules a reconnect.
// Stale calls referring to an already-replaced transport are ignored.
func (m *Manager) handleIOError(tr Transport, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.tr != tr {
		return
	}
	m.log.Warn("link I/O error", "error", err)
	m.clog.Append(sec3000h.DirSystem, nil, sec3000h.OutcomeError, err.Error())
	m.tr.Close()
	m.tr = nil
	m.setStateLocked(StateError)
	m.scheduleReconnectLocked()
}

func (m *Manager) scheduleReconnectLocked() {
	if m.reconnectTimer != nil {
		return
	}
	m.reconnectTimer = time.AfterFunc(m.cfg.ReconnectDelay, m.reconnect)
}

func (m *Manager) reconnect() {
	m.mu.Lock()
	m.reconnectTimer = nil
	if m.closed || m.state == StateConnected {
		m.mu.Unlock()
		return
	}
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	tr, err := m.dialer.Dial()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		if tr != nil {
			tr.Close()
		}
		return
	}
	if err != nil {
		m.log.Warn("reconnect failed", "endpoint", m.dialer.Describe(), "error", err)
		m.setStateLocked(StateError)
		m.scheduleReconnectLocked()
		return
	}
	m.tr = tr
	m.setStateLocked(StateConnected)
	m.clog.Append(sec3000h.DirSystem, nil, sec3000h.OutcomeSuccess,
		"reconnected: "+m.dialer.Describe())
	m.startReaderLocked()
}
