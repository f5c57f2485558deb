// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package cmd

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Interactive sensor parameter tuner",
	Long: `Adjust the touch sensing parameters interactively.

Pick a parameter from the list, type a new value and press enter to
apply it. A change takes effect immediately but stays volatile until
saved: press s to persist the current values to flash, d to restore
factory defaults, r to re-read everything from the device.

Run 'chordctl monitor' in a second terminal to watch the effect of a
change on live touch data.

Exit codes:
  0 - Clean exit
  2 - Connection or port access error`,
	RunE: runTune,
}

func init() {
	rootCmd.AddCommand(tuneCmd)
}

func runTune(cmd *cobra.Command, args []string) error {
	dev, connInfo, err := openDevice()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer dev.Close()

	settings, err := dev.Settings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	m := initialTuneModel(dev, connInfo, settings)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}
