// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Liftlab Systems

package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/liftlab/liftpilot/pkg/elevator"
	"github.com/liftlab/liftpilot/pkg/link"
	"github.com/liftlab/liftpilot/pkg/sec3000h"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live elevator status dashboard",
	Long: `Full-screen dashboard fed by inbound status telegrams.

Shows the current floor, target floor, door state, load and link state,
together with telegram statistics and a scrollable communication log.
Use the arrow keys or PgUp/PgDn to scroll the log, 'q' to quit.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// Messages
type watchTickMsg time.Time
type watchSnapshotMsg elevator.Snapshot
type watchLinkMsg link.State

type watchModel struct {
	connInfo  string
	snap      elevator.Snapshot
	linkState link.State
	stats     *sec3000h.Statistics
	counters  sec3000h.Counters
	clog      *sec3000h.Log
	logView   viewport.Model
	ready     bool
	width     int
	height    int
	quitting  bool
}

func watchTickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(
		watchTickCmd(),
		tea.EnterAltScreen,
	)
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		logHeight := m.height - 14
		if logHeight < 5 {
			logHeight = 5
		}
		if !m.ready {
			m.logView = viewport.New(m.width-4, logHeight)
			m.ready = true
		} else {
			m.logView.Width = m.width - 4
			m.logView.Height = logHeight
		}

	case watchTickMsg:
		m.counters = m.stats.Snapshot()
		if m.ready {
			atBottom := m.logView.AtBottom()
			m.logView.SetContent(m.renderLog())
			if atBottom {
				m.logView.GotoBottom()
			}
		}
		return m, watchTickCmd()

	case watchSnapshotMsg:
		m.snap = elevator.Snapshot(msg)

	case watchLinkMsg:
		m.linkState = link.State(msg)
	}

	var cmd tea.Cmd
	if m.ready {
		m.logView, cmd = m.logView.Update(msg)
	}
	return m, cmd
}

func (m watchModel) renderLog() string {
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	entries := m.clog.Tail(200)
	if len(entries) == 0 {
		return dimStyle.Render("(no traffic yet)")
	}

	var b strings.Builder
	for _, e := range entries {
		line := fmt.Sprintf("%s %-7s %s",
			e.Timestamp.Format("15:04:05.000"), e.Direction, e.Note)
		if e.Outcome == sec3000h.OutcomeSuccess {
			b.WriteString(dimStyle.Render(line))
		} else {
			b.WriteString(errStyle.Render(line + " [" + string(e.Outcome) + "]"))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m watchModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("LIFTPILOT - ELEVATOR STATUS"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Press 'q' to quit", m.connInfo)))
	s.WriteString("\n\n")

	// Elevator snapshot
	current, target := "--", "--"
	if m.snap.CurrentFloor != nil {
		current = m.snap.CurrentFloor.String()
	}
	if m.snap.TargetFloor != nil {
		target = m.snap.TargetFloor.String()
	}
	motion := "stopped"
	if m.snap.IsMoving {
		motion = "moving"
	}
	linkRender := valueStyle
	if m.linkState == link.StateError || m.linkState == link.StateDisconnected {
		linkRender = errorStyle
	}

	snapContent := strings.Builder{}
	snapContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Floor:"), valueStyle.Render(current),
		labelStyle.Render("Target:"), valueStyle.Render(target),
		labelStyle.Render("Motion:"), valueStyle.Render(motion),
	))
	snapContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		labelStyle.Render("Door:"), valueStyle.Render(m.snap.DoorState.String()),
		labelStyle.Render("Load:"), valueStyle.Render(fmt.Sprintf("%d kg", m.snap.LoadKg)),
		labelStyle.Render("Link:"), linkRender.Render(m.linkState.String()),
	))
	s.WriteString(boxStyle.Render(snapContent.String()))
	s.WriteString("\n\n")

	// Statistics
	var validPercent float64
	if m.counters.TotalTelegrams > 0 {
		validPercent = float64(m.counters.ValidTelegrams) * 100.0 / float64(m.counters.TotalTelegrams)
	}
	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Total:"), valueStyle.Render(fmt.Sprintf("%d", m.counters.TotalTelegrams)),
		labelStyle.Render("Valid:"), valueStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.counters.ValidTelegrams, validPercent)),
		labelStyle.Render("Duplicates:"), valueStyle.Render(fmt.Sprintf("%d", m.counters.Duplicates)),
	))
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		labelStyle.Render("Checksum Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.counters.ChecksumErrors)),
		labelStyle.Render("Timeouts:"), errorStyle.Render(fmt.Sprintf("%d", m.counters.Timeouts)),
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f tel/s", m.counters.TelegramRate)),
	))
	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Communication log
	s.WriteString(labelStyle.Render("Communication Log:"))
	s.WriteString("\n")
	if m.ready {
		s.WriteString(boxStyle.Width(m.width - 4).Render(m.logView.View()))
	}

	return s.String()
}

func runWatch(cmd *cobra.Command, args []string) error {
	// The TUI owns the terminal; keep package logging quiet.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	state := elevator.New(elevator.Config{Logger: logger})
	defer state.Close()

	dialer, err := newDialer()
	if err != nil {
		return err
	}
	mgr := link.NewManager(dialer, link.Config{Station: stationAddr, Logger: logger})

	m := watchModel{
		connInfo:  dialer.Describe(),
		snap:      state.Snapshot(),
		linkState: mgr.State(),
		stats:     mgr.Stats(),
		clog:      mgr.CommLog(),
	}
	p := tea.NewProgram(m)

	state.Subscribe(func(snap elevator.Snapshot) {
		p.Send(watchSnapshotMsg(snap))
	})
	mgr.OnStateChange(func(s link.State) {
		p.Send(watchLinkMsg(s))
	})
	mgr.OnTelegram(func(tg sec3000h.Telegram) {
		state.ApplyTelegram(tg.Register(), tg.Value())
	})

	if err := mgr.Open(); err != nil {
		return err
	}
	defer mgr.Close()

	_, err = p.Run()
	return err
}
