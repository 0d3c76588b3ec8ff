// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Liftlab Systems

package link

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftlab/liftpilot/pkg/sec3000h"
)

// funcDialer adapts a closure into a Dialer.
type funcDialer struct {
	dial func() (Transport, error)
}

func (d funcDialer) Dial() (Transport, error) { return d.dial() }
func (d funcDialer) Describe() string         { return "test endpoint" }

func quietConfig() Config {
	return Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// newPipedManager opens a Manager over one end of a net.Pipe and returns the
// peer end for the test to drive.
func newPipedManager(t *testing.T, cfg Config) (*Manager, net.Conn) {
	t.Helper()
	local, peer := net.Pipe()
	m := NewManager(funcDialer{dial: func() (Transport, error) { return local, nil }}, cfg)
	require.NoError(t, m.Open())
	require.Equal(t, StateConnected, m.State())
	t.Cleanup(func() {
		peer.Close()
		m.Close()
	})
	return m, peer
}

func readFrame(t *testing.T, peer net.Conn, size int) []byte {
	t.Helper()
	peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	frame := make([]byte, size)
	_, err := io.ReadFull(peer, frame)
	require.NoError(t, err)
	return frame
}

func TestOpen_FallsBackToSimulated(t *testing.T) {
	m := NewManager(funcDialer{dial: func() (Transport, error) {
		return nil, errors.New("no such device")
	}}, quietConfig())

	require.NoError(t, m.Open())
	assert.Equal(t, StateSimulated, m.State())

	// Simulated sends succeed immediately as log-only events.
	err := m.Send(sec3000h.NewEnq("0001", sec3000h.RegFloorSetting, 3))
	require.NoError(t, err)

	entries := m.CommLog().Entries()
	require.NotEmpty(t, entries)
	last := entries[len(entries)-1]
	assert.Equal(t, sec3000h.DirSend, last.Direction)
	assert.Equal(t, "simulated", last.Note)

	require.NoError(t, m.Close())
}

func TestSend_EnqAcknowledged(t *testing.T) {
	m, peer := newPipedManager(t, quietConfig())

	go func() {
		frame := make([]byte, sec3000h.EnqFrameSize)
		if _, err := io.ReadFull(peer, frame); err != nil {
			return
		}
		peer.Write(sec3000h.EncodeAck("0001"))
	}()

	err := m.Send(sec3000h.NewEnq("0001", sec3000h.RegDoorControl, sec3000h.DoorCmdOpen))
	require.NoError(t, err)
}

func TestSend_NakIsUnknownResponse(t *testing.T) {
	m, peer := newPipedManager(t, quietConfig())

	go func() {
		frame := make([]byte, sec3000h.EnqFrameSize)
		if _, err := io.ReadFull(peer, frame); err != nil {
			return
		}
		peer.Write(sec3000h.EncodeNak("0001"))
	}()

	err := m.Send(sec3000h.NewEnq("0001", sec3000h.RegFloorSetting, 2))
	require.ErrorIs(t, err, ErrUnknownResponse)
}

func TestSend_TimesOutWithoutResponse(t *testing.T) {
	cfg := quietConfig()
	cfg.AckTimeout = 50 * time.Millisecond
	m, peer := newPipedManager(t, cfg)

	go func() {
		frame := make([]byte, sec3000h.EnqFrameSize)
		io.ReadFull(peer, frame)
		// Never answer.
	}()

	err := m.Send(sec3000h.NewEnq("0001", sec3000h.RegFloorSetting, 4))
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, uint64(1), m.Stats().Snapshot().Timeouts)
}

func TestSend_RejectedWhileDisconnected(t *testing.T) {
	m := NewManager(funcDialer{dial: func() (Transport, error) {
		return nil, errors.New("unused")
	}}, quietConfig())

	err := m.Send(sec3000h.NewEnq("0001", sec3000h.RegFloorSetting, 1))
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestReceive_NovelEnqAckedAndDelivered(t *testing.T) {
	cfg := quietConfig()
	received := make(chan sec3000h.Telegram, 4)

	local, peer := net.Pipe()
	m := NewManager(funcDialer{dial: func() (Transport, error) { return local, nil }}, cfg)
	m.OnTelegram(func(tg sec3000h.Telegram) { received <- tg })
	require.NoError(t, m.Open())
	t.Cleanup(func() {
		peer.Close()
		m.Close()
	})

	_, err := peer.Write(sec3000h.EncodeEnq("0002", sec3000h.RegCurrentFloor, 3))
	require.NoError(t, err)

	// The link replies with an ACK addressed to the sender's station.
	ack := readFrame(t, peer, sec3000h.ResponseFrameSize)
	assert.Equal(t, sec3000h.EncodeAck("0002"), ack)

	select {
	case tg := <-received:
		assert.Equal(t, "0002", tg.Station())
		assert.Equal(t, sec3000h.RegCurrentFloor, tg.Register())
		assert.Equal(t, uint16(3), tg.Value())
	case <-time.After(2 * time.Second):
		t.Fatal("telegram not delivered")
	}
}

func TestReceive_DuplicateSuppressed(t *testing.T) {
	received := make(chan sec3000h.Telegram, 4)

	local, peer := net.Pipe()
	m := NewManager(funcDialer{dial: func() (Transport, error) { return local, nil }}, quietConfig())
	m.OnTelegram(func(tg sec3000h.Telegram) { received <- tg })
	require.NoError(t, m.Open())
	t.Cleanup(func() {
		peer.Close()
		m.Close()
	})

	frame := sec3000h.EncodeEnq("0002", sec3000h.RegLoadWeight, 120)
	_, err := peer.Write(frame)
	require.NoError(t, err)
	readFrame(t, peer, sec3000h.ResponseFrameSize)

	// Identical write inside the window: no second delivery, no second ACK.
	_, err = peer.Write(frame)
	require.NoError(t, err)

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("first telegram not delivered")
	}
	select {
	case tg := <-received:
		t.Fatalf("duplicate delivered: %v", tg)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, uint64(1), m.Stats().Snapshot().Duplicates)
}

func TestReceive_DifferingValueNotSuppressed(t *testing.T) {
	received := make(chan sec3000h.Telegram, 4)

	local, peer := net.Pipe()
	m := NewManager(funcDialer{dial: func() (Transport, error) { return local, nil }}, quietConfig())
	m.OnTelegram(func(tg sec3000h.Telegram) { received <- tg })
	require.NoError(t, m.Open())
	t.Cleanup(func() {
		peer.Close()
		m.Close()
	})

	peer.Write(sec3000h.EncodeEnq("0002", sec3000h.RegCurrentFloor, 2))
	readFrame(t, peer, sec3000h.ResponseFrameSize)
	peer.Write(sec3000h.EncodeEnq("0002", sec3000h.RegCurrentFloor, 3))
	readFrame(t, peer, sec3000h.ResponseFrameSize)

	for i := 0; i < 2; i++ {
		select {
		case <-received:
		case <-time.After(2 * time.Second):
			t.Fatalf("telegram %d not delivered", i+1)
		}
	}
}

func TestReceive_MalformedFrameDoesNotBlockLink(t *testing.T) {
	received := make(chan sec3000h.Telegram, 4)

	local, peer := net.Pipe()
	m := NewManager(funcDialer{dial: func() (Transport, error) { return local, nil }}, quietConfig())
	m.OnTelegram(func(tg sec3000h.Telegram) { received <- tg })
	require.NoError(t, m.Open())
	t.Cleanup(func() {
		peer.Close()
		m.Close()
	})

	// Garbage, then a corrupted frame, then a valid one.
	peer.Write([]byte{0x00, 0x7F, 0x42})
	bad := sec3000h.EncodeEnq("0002", sec3000h.RegCurrentFloor, 1)
	bad[14] = 'Z'
	peer.Write(bad)
	peer.Write(sec3000h.EncodeEnq("0002", sec3000h.RegCurrentFloor, 5))
	readFrame(t, peer, sec3000h.ResponseFrameSize)

	select {
	case tg := <-received:
		assert.Equal(t, uint16(5), tg.Value())
	case <-time.After(2 * time.Second):
		t.Fatal("valid telegram after garbage not delivered")
	}
}

func TestReconnect_AfterIOError(t *testing.T) {
	cfg := quietConfig()
	cfg.ReconnectDelay = 50 * time.Millisecond

	var mu sync.Mutex
	var dials int
	pipes := make([]net.Conn, 0, 2)

	dialer := funcDialer{dial: func() (Transport, error) {
		mu.Lock()
		defer mu.Unlock()
		dials++
		local, peer := net.Pipe()
		pipes = append(pipes, peer)
		return local, nil
	}}

	states := make(chan State, 16)
	m := NewManager(dialer, cfg)
	m.OnStateChange(func(s State) { states <- s })
	require.NoError(t, m.Open())
	t.Cleanup(func() { m.Close() })

	waitState := func(want State) {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			select {
			case s := <-states:
				if s == want {
					return
				}
			case <-deadline:
				t.Fatalf("never reached state %s", want)
			}
		}
	}
	waitState(StateConnected)

	// Kill the first transport: the link must report the error and then
	// come back on its own.
	mu.Lock()
	first := pipes[0]
	mu.Unlock()
	first.Close()

	waitState(StateError)
	waitState(StateConnected)

	mu.Lock()
	assert.Equal(t, 2, dials)
	mu.Unlock()
}

func TestClose_Idempotent(t *testing.T) {
	m, _ := newPipedManager(t, quietConfig())
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Equal(t, StateDisconnected, m.State())
	require.ErrorIs(t, m.Open(), ErrClosed)
}

// The status commands format statistics from their own goroutine while the
// link reader keeps counting inbound frames.
func TestStats_ReadableDuringTraffic(t *testing.T) {
	m, peer := newPipedManager(t, quietConfig())

	const frames = 50
	go func() {
		buf := make([]byte, sec3000h.ResponseFrameSize)
		for i := 0; i < frames; i++ {
			// Distinct values so the duplicate filter passes every frame.
			if _, err := peer.Write(sec3000h.EncodeEnq("0002", sec3000h.RegCurrentFloor, uint16(i%5))); err != nil {
				return
			}
			if _, err := io.ReadFull(peer, buf); err != nil {
				return
			}
		}
	}()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_ = m.Stats().String()
		if m.Stats().Snapshot().ValidTelegrams >= frames {
			break
		}
	}

	c := m.Stats().Snapshot()
	assert.Equal(t, uint64(frames), c.ValidTelegrams)
	assert.Equal(t, uint64(frames), c.AcksSent)
}

func TestDuplicateFilter_WindowExpires(t *testing.T) {
	f := newDuplicateFilter(100 * time.Millisecond)
	base := time.Now()

	assert.False(t, f.IsDuplicate(sec3000h.RegCurrentFloor, 3, base))
	assert.True(t, f.IsDuplicate(sec3000h.RegCurrentFloor, 3, base.Add(50*time.Millisecond)))
	assert.False(t, f.IsDuplicate(sec3000h.RegCurrentFloor, 3, base.Add(200*time.Millisecond)))

	// A differing value clears the memo even inside the window.
	assert.False(t, f.IsDuplicate(sec3000h.RegCurrentFloor, 4, base.Add(210*time.Millisecond)))
	assert.False(t, f.IsDuplicate(sec3000h.RegCurrentFloor, 3, base.Add(220*time.Millisecond)))

	// Registers are tracked independently.
	assert.False(t, f.IsDuplicate(sec3000h.RegLoadWeight, 3, base.Add(230*time.Millisecond)))
}
