// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package cmd

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nchorder/chordctl/pkg/nchorder"
	"github.com/nchorder/chordctl/pkg/twiddler"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	maxLogEntries   = 100
	barStripWidth   = 32
	thumbGaugeWidth = 16
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// errorLogEntry is one line in the scrolling event log.
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// monitorModel is the Bubble Tea model for the touch monitor TUI
type monitorModel struct {
	sm       *streamManager
	connInfo string
	rate     int

	connected bool

	// Latest telemetry
	frame    *nchorder.TouchFrame
	diag     *nchorder.GPIODiagnostics
	diagTime time.Time
	stats    nchorder.StreamStats

	startTime time.Time
	errorLog  []errorLogEntry

	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type monitorTickMsg time.Time

// monitorBatchMsg carries the frames received since the last batch plus a
// stats snapshot taken when the batch was sent.
type monitorBatchMsg struct {
	frames []nchorder.TouchFrame
	stats  nchorder.StreamStats
}

type connectionLostMsg struct{}

type reconnectedMsg struct {
	connInfo string
}

type monitorLogErrMsg struct {
	err error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialMonitorModel(sm *streamManager, connInfo string, rate int) monitorModel {
	return monitorModel{
		sm:        sm,
		connInfo:  connInfo,
		rate:      rate,
		connected: true,
		startTime: time.Now(),
		width:     80,
		height:    24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m monitorModel) Init() tea.Cmd {
	return monitorTickCmd()
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case monitorTickMsg:
		// Redraw once a second so uptime and "last seen" ages advance
		// even when no frames arrive.
		return m, monitorTickCmd()

	case monitorBatchMsg:
		m.applyBatch(msg)
		return m, nil

	case connectionLostMsg:
		m.connected = false
		if monitorReconnect {
			m.addLogEntry("Connection lost, reconnecting...", true)
		} else {
			m.addLogEntry("Connection lost", true)
		}
		return m, nil

	case reconnectedMsg:
		m.connected = true
		m.connInfo = msg.connInfo
		m.stats = nchorder.StreamStats{}
		m.addLogEntry(fmt.Sprintf("Reconnected: %s", msg.connInfo), false)
		return m, nil

	case monitorLogErrMsg:
		m.addLogEntry(fmt.Sprintf("Log write failed: %v", msg.err), true)
		return m, nil
	}

	return m, nil
}

func (m monitorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "c":
		m.errorLog = nil
		return m, nil
	}

	return m, nil
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	s.WriteString(titleStyle.Render("NCHORDER MONITOR"))
	s.WriteString(" ")
	connStatus := fmt.Sprintf("%s @ %d Hz", m.connInfo, m.rate)
	if !m.connected {
		if monitorReconnect {
			connStatus = warningStyle.Render("RECONNECTING...")
		} else {
			connStatus = errorStyle.Render("DISCONNECTED")
		}
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | q=quit c=clear log", connStatus)))
	s.WriteString("\n\n")

	// Live frame panel
	s.WriteString(m.renderTouchPanel(statsLabelStyle, headerStyle, boxStyle))
	s.WriteString("\n\n")

	// Diagnostics panel, only when debug firmware has sent one
	if m.diag != nil {
		s.WriteString(m.renderDiagPanel(statsLabelStyle, statsValueStyle, boxStyle))
		s.WriteString("\n\n")
	}

	// Statistics bar
	s.WriteString(m.renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(m.renderEventLog(statsLabelStyle, warningStyle, boxStyle))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m monitorModel) renderTouchPanel(statsLabelStyle, headerStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("TOUCH"))
	s.WriteString("\n")

	if m.frame == nil {
		s.WriteString(headerStyle.Render("  (waiting for frames)"))
		return boxStyle.Width(m.width - 4).Render(s.String())
	}

	f := m.frame

	buttons := twiddler.ChordToButtons(f.Buttons)
	if len(buttons) == 0 {
		s.WriteString(fmt.Sprintf("Buttons: 0x%05X\n", f.Buttons))
	} else {
		s.WriteString(fmt.Sprintf("Buttons: 0x%05X  %s\n", f.Buttons, strings.Join(buttons, "+")))
	}

	s.WriteString(fmt.Sprintf("Thumb:   x=%-4d %s  y=%-4d %s  size=%d\n",
		f.ThumbX, gauge(int(f.ThumbX), 1800, thumbGaugeWidth),
		f.ThumbY, gauge(int(f.ThumbY), 1800, thumbGaugeWidth),
		f.ThumbSize))

	for i, bar := range f.Bars {
		s.WriteString(fmt.Sprintf("Bar %d:   %s", i, barStrip(bar)))
		if len(bar) > 0 {
			parts := make([]string, 0, len(bar))
			for _, t := range bar {
				parts = append(parts, fmt.Sprintf("pos=%d size=%d", t.Pos, t.Size))
			}
			s.WriteString("  " + strings.Join(parts, "; "))
		}
		s.WriteString("\n")
	}

	return boxStyle.Width(m.width - 4).Render(strings.TrimRight(s.String(), "\n"))
}

func (m monitorModel) renderDiagPanel(statsLabelStyle, statsValueStyle, boxStyle lipgloss.Style) string {
	d := m.diag

	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("GPIO DIAGNOSTICS"))
	s.WriteString(fmt.Sprintf(" | last %s ago\n", time.Since(m.diagTime).Round(time.Second)))

	s.WriteString(fmt.Sprintf("%s %s  %s %s\n",
		statsLabelStyle.Render("Callbacks:"), statsValueStyle.Render(fmt.Sprintf("%d", d.CallbackCount)),
		statsLabelStyle.Render("Debounce:"), statsValueStyle.Render(fmt.Sprintf("%d", d.DebounceCount))))
	s.WriteString(fmt.Sprintf("%s %s  %s %s\n",
		statsLabelStyle.Render("Raw buttons:"), statsValueStyle.Render(fmt.Sprintf("0x%08X", d.RawButtons)),
		statsLabelStyle.Render("Previous:"), statsValueStyle.Render(fmt.Sprintf("0x%08X", d.PrevRawState))))
	s.WriteString(fmt.Sprintf("%s %s  %s %s",
		statsLabelStyle.Render("Port P0:"), statsValueStyle.Render(fmt.Sprintf("0x%08X", d.RawPort0)),
		statsLabelStyle.Render("Port P1:"), statsValueStyle.Render(fmt.Sprintf("0x%08X", d.RawPort1))))

	return boxStyle.Width(m.width - 4).Render(s.String())
}

func (m monitorModel) renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle lipgloss.Style) string {
	uptime := time.Since(m.startTime).Round(time.Second)

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Uptime:"), statsValueStyle.Render(uptime.String()),
		statsLabelStyle.Render("Frames:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.FramesDecoded)),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f/s %.0f B/s", m.stats.FrameRate, m.stats.ByteRate)),
		statsLabelStyle.Render("Errors:"), func() string {
			if m.stats.DecodeErrors > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", m.stats.DecodeErrors))
			}
			return statsValueStyle.Render("0")
		}(),
		statsLabelStyle.Render("Resyncs:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.Resyncs)),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m monitorModel) renderEventLog(statsLabelStyle, warningStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyleLocal := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	logHeight := 8
	if len(m.errorLog) < logHeight {
		logHeight = len(m.errorLog)
	}

	startIdx := len(m.errorLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.errorLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyleLocal
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(timestamp),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

// gauge renders value against max as a fixed-width meter.
func gauge(value, max, width int) string {
	if value < 0 {
		value = 0
	}
	if value > max {
		value = max
	}
	filled := value * width / max
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

// barStrip marks each touch position along a capacitive bar.
func barStrip(touches []nchorder.BarTouch) string {
	cells := []byte(strings.Repeat(".", barStripWidth))
	for _, t := range touches {
		idx := int(t.Pos) * barStripWidth / 3200
		if idx >= barStripWidth {
			idx = barStripWidth - 1
		}
		cells[idx] = '*'
	}
	return "[" + string(cells) + "]"
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

// applyBatch folds a batch of frames into the model: the newest touch frame
// wins the display, diagnostic frames update their own panel, and counter
// increases since the previous snapshot become log entries.
func (m *monitorModel) applyBatch(msg monitorBatchMsg) {
	for i := range msg.frames {
		f := &msg.frames[i]
		if f.IsDiagnostic() {
			if d, ok := f.GPIODiagnostics(); ok {
				m.diag = &d
				m.diagTime = f.Time
			}
			continue
		}
		m.frame = f
	}

	prev := m.stats
	m.stats = msg.stats

	// Strictly-greater comparisons so the counter reset after a
	// reconnect does not fire spurious entries.
	if msg.stats.Resyncs > prev.Resyncs {
		m.addLogEntry(fmt.Sprintf("Resynced %d time(s), %d bytes skipped",
			msg.stats.Resyncs-prev.Resyncs, msg.stats.ResyncBytes-prev.ResyncBytes), false)
	}
	if msg.stats.DecodeErrors > prev.DecodeErrors {
		m.addLogEntry(fmt.Sprintf("%d frame decode error(s)",
			msg.stats.DecodeErrors-prev.DecodeErrors), true)
	}
	if msg.stats.FramesDropped > prev.FramesDropped {
		m.addLogEntry(fmt.Sprintf("%d frame(s) dropped, consumer too slow",
			msg.stats.FramesDropped-prev.FramesDropped), false)
	}
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.errorLog = append(m.errorLog, errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	if len(m.errorLog) > maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-maxLogEntries:]
	}
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}
