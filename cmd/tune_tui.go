// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nchorder/chordctl/pkg/nchorder"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

// Focus states
const (
	focusParamList = iota
	focusValueInput
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// paramItem is one tunable parameter plus its current device value
type paramItem struct {
	info  nchorder.ParamInfo
	value uint16
}

// Implement list.Item interface
func (i paramItem) Title() string { return i.info.Label }
func (i paramItem) Description() string {
	return fmt.Sprintf("%d  (range %d-%d, default %d)",
		i.value, i.info.Min, i.info.Max, i.info.Default)
}
func (i paramItem) FilterValue() string { return i.info.Name }

// tuneModel is the Bubble Tea model for the parameter tuner TUI
type tuneModel struct {
	dev      *nchorder.Device
	connInfo string

	paramList  list.Model
	valueInput textinput.Model

	focusedField int
	busy         bool

	errorLog []errorLogEntry

	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

// tuneResultMsg reports the outcome of a device write. param is zero for
// operations that are not a single-parameter write.
type tuneResultMsg struct {
	action string
	param  nchorder.Param
	value  uint16
	err    error
}

// tuneSettingsMsg carries a fresh full settings read.
type tuneSettingsMsg struct {
	settings nchorder.DeviceSettings
	note     string
	err      error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialTuneModel(dev *nchorder.Device, connInfo string, settings nchorder.DeviceSettings) tuneModel {
	ti := textinput.New()
	ti.Placeholder = "value"
	ti.CharLimit = 5
	ti.Width = 10

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	paramList := list.New(paramItems(settings), delegate, 44, 16)
	paramList.Title = "Parameters"
	paramList.SetShowStatusBar(false)
	paramList.SetShowHelp(false)
	paramList.SetFilteringEnabled(false)

	return tuneModel{
		dev:          dev,
		connInfo:     connInfo,
		paramList:    paramList,
		valueInput:   ti,
		focusedField: focusParamList,
		errorLog:     make([]errorLogEntry, 0),
		width:        80,
		height:       24,
	}
}

func paramItems(settings nchorder.DeviceSettings) []list.Item {
	items := make([]list.Item, 0, len(nchorder.Params))
	for _, info := range nchorder.Params {
		items = append(items, paramItem{info: info, value: settings.Get(info.ID)})
	}
	return items
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m tuneModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m tuneModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case tuneResultMsg:
		m.busy = false
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("%s failed: %v", msg.action, msg.err), true)
			return m, nil
		}
		m.addLogEntry(msg.action, false)
		if msg.param != 0 {
			cmds = append(cmds, m.setItemValue(msg.param, msg.value))
		}
		return m, tea.Batch(cmds...)

	case tuneSettingsMsg:
		m.busy = false
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Settings read failed: %v", msg.err), true)
			return m, nil
		}
		cmds = append(cmds, m.paramList.SetItems(paramItems(msg.settings)))
		m.addLogEntry(msg.note, false)
		return m, tea.Batch(cmds...)
	}

	// Update child components
	var cmd tea.Cmd
	if m.focusedField == focusValueInput {
		m.valueInput, cmd = m.valueInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	if m.focusedField == focusParamList {
		m.paramList, cmd = m.paramList.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *tuneModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab":
		return m.cycleFocus(1), nil

	case "shift+tab":
		return m.cycleFocus(-1), nil

	case "enter":
		return m.applyValue()

	case "s":
		if m.focusedField != focusValueInput {
			return m.startSave()
		}

	case "d":
		if m.focusedField != focusValueInput {
			return m.startResetDefaults()
		}

	case "r":
		if m.focusedField != focusValueInput {
			return m.startReload()
		}

	case "up", "k":
		if m.focusedField == focusParamList {
			m.paramList, _ = m.paramList.Update(msg)
		}

	case "down", "j":
		if m.focusedField == focusParamList {
			m.paramList, _ = m.paramList.Update(msg)
		}
	}

	// Pass through to focused component
	if m.focusedField == focusValueInput {
		var cmd tea.Cmd
		m.valueInput, cmd = m.valueInput.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *tuneModel) cycleFocus(delta int) *tuneModel {
	m.focusedField = (m.focusedField + delta + focusValueInput + 1) % (focusValueInput + 1)

	if m.focusedField == focusValueInput {
		m.valueInput.Focus()
	} else {
		m.valueInput.Blur()
	}

	return m
}

// applyValue validates the typed value against the selected parameter's
// range and fires the device write.
func (m *tuneModel) applyValue() (tea.Model, tea.Cmd) {
	if m.busy {
		m.addLogEntry("Still waiting for the previous command", true)
		return m, nil
	}

	item, ok := m.paramList.SelectedItem().(paramItem)
	if !ok {
		return m, nil
	}

	valueStr := m.valueInput.Value()
	if valueStr == "" {
		return m, nil
	}

	value, err := strconv.ParseUint(valueStr, 10, 16)
	if err != nil {
		m.addLogEntry(fmt.Sprintf("Invalid value: %s", valueStr), true)
		return m, nil
	}

	info := item.info
	if uint16(value) < info.Min || uint16(value) > info.Max {
		m.addLogEntry(fmt.Sprintf("%s must be between %d and %d", info.Name, info.Min, info.Max), true)
		return m, nil
	}

	m.busy = true
	m.valueInput.Reset()
	return m, setParamCmd(m.dev, info, uint16(value))
}

func (m *tuneModel) startSave() (tea.Model, tea.Cmd) {
	if m.busy {
		m.addLogEntry("Still waiting for the previous command", true)
		return m, nil
	}

	m.busy = true
	m.addLogEntry("Saving to flash (takes a few seconds)...", false)
	return m, saveFlashCmd(m.dev)
}

func (m *tuneModel) startResetDefaults() (tea.Model, tea.Cmd) {
	if m.busy {
		m.addLogEntry("Still waiting for the previous command", true)
		return m, nil
	}

	m.busy = true
	return m, resetDefaultsCmd(m.dev)
}

func (m *tuneModel) startReload() (tea.Model, tea.Cmd) {
	if m.busy {
		m.addLogEntry("Still waiting for the previous command", true)
		return m, nil
	}

	m.busy = true
	return m, readSettingsCmd(m.dev)
}

func (m tuneModel) View() string {
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

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	// Header
	s.WriteString(titleStyle.Render("NCHORDER TUNE"))
	s.WriteString(" ")
	helpText := "q=quit Tab=switch enter=apply s=save d=defaults r=re-read"
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | %s", m.connInfo, helpText)))
	s.WriteString("\n\n")

	// Layout: left panel (parameters) | right panel (value entry)
	leftWidth := 44
	rightWidth := m.width - leftWidth - 6
	if rightWidth < 24 {
		rightWidth = 24
	}

	listStyle := boxStyle.Width(leftWidth)
	if m.focusedField == focusParamList {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	paramPanel := listStyle.Render(m.paramList.View())

	inputStyle := boxStyle.Width(rightWidth)
	if m.focusedField == focusValueInput {
		inputStyle = focusedBoxStyle.Width(rightWidth)
	}
	inputPanel := inputStyle.Render(m.renderValuePanel(statsLabelStyle, statsValueStyle, warningStyle))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, paramPanel, " ", inputPanel))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(m.renderEventLog(statsLabelStyle, warningStyle, boxStyle))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m tuneModel) renderValuePanel(statsLabelStyle, statsValueStyle, warningStyle lipgloss.Style) string {
	item, ok := m.paramList.SelectedItem().(paramItem)
	if !ok {
		return "No parameter selected"
	}

	var s strings.Builder
	s.WriteString(statsLabelStyle.Render(item.info.Label))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("%s %s\n",
		statsLabelStyle.Render("Current:"),
		statsValueStyle.Render(fmt.Sprintf("%d", item.value))))
	s.WriteString(fmt.Sprintf("%s %s\n",
		statsLabelStyle.Render("Range:"),
		statsValueStyle.Render(fmt.Sprintf("%d-%d", item.info.Min, item.info.Max))))
	s.WriteString(fmt.Sprintf("%s %s\n\n",
		statsLabelStyle.Render("Default:"),
		statsValueStyle.Render(fmt.Sprintf("%d", item.info.Default))))
	s.WriteString(fmt.Sprintf("%s %s",
		statsLabelStyle.Render("New value:"),
		m.valueInput.View()))

	if m.busy {
		s.WriteString("\n\n")
		s.WriteString(warningStyle.Render("Waiting for device..."))
	}

	return s.String()
}

func (m tuneModel) renderEventLog(statsLabelStyle, warningStyle, boxStyle lipgloss.Style) string {
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

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

// setItemValue updates the list entry for one parameter after a
// confirmed write.
func (m *tuneModel) setItemValue(id nchorder.Param, value uint16) tea.Cmd {
	for i, it := range m.paramList.Items() {
		pi, ok := it.(paramItem)
		if !ok || pi.info.ID != id {
			continue
		}
		pi.value = value
		return m.paramList.SetItem(i, pi)
	}
	return nil
}

func (m *tuneModel) updateListSize() {
	// Adjust list size based on terminal size
	listHeight := m.height - 14
	if listHeight < 6 {
		listHeight = 6
	}
	m.paramList.SetSize(44, listHeight)
}

func (m *tuneModel) addLogEntry(message string, isError bool) {
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

func setParamCmd(dev *nchorder.Device, info nchorder.ParamInfo, value uint16) tea.Cmd {
	return func() tea.Msg {
		err := dev.SetParam(info.ID, value)
		return tuneResultMsg{
			action: fmt.Sprintf("Set %s = %d (volatile until saved)", info.Name, value),
			param:  info.ID,
			value:  value,
			err:    err,
		}
	}
}

func saveFlashCmd(dev *nchorder.Device) tea.Cmd {
	return func() tea.Msg {
		err := dev.SaveFlash()
		return tuneResultMsg{action: "Saved settings to flash", err: err}
	}
}

func resetDefaultsCmd(dev *nchorder.Device) tea.Cmd {
	return func() tea.Msg {
		if err := dev.ResetDefaults(); err != nil {
			return tuneResultMsg{action: "Reset to defaults", err: err}
		}
		settings, err := dev.Settings()
		if err != nil {
			return tuneSettingsMsg{err: err}
		}
		return tuneSettingsMsg{settings: settings, note: "Reset to factory defaults"}
	}
}

func readSettingsCmd(dev *nchorder.Device) tea.Cmd {
	return func() tea.Msg {
		settings, err := dev.Settings()
		return tuneSettingsMsg{settings: settings, note: "Settings read from device", err: err}
	}
}
