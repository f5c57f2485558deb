// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nchorder/chordctl/pkg/nchorder"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change device settings",
	Long: `Show the device's runtime settings, or change them with the
subcommands. Changes made with 'set' take effect immediately but are
lost on power cycle until persisted with 'save'.

Parameters:
` + paramNamesHelp() + `
Exit codes:
  0 - Success
  1 - Unknown parameter or value out of range
  2 - Connection or device error`,
	Run: runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <name> <value>",
	Short: "Set one runtime parameter",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsSet,
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore factory defaults",
	Run:   deviceAction("Settings restored to factory defaults.", (*nchorder.Device).ResetDefaults),
}

var settingsSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Persist current settings to flash",
	Run:   deviceAction("Settings saved to flash.", (*nchorder.Device).SaveFlash),
}

var settingsLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Reload settings from flash, discarding unsaved changes",
	Run:   deviceAction("Settings reloaded from flash.", (*nchorder.Device).LoadFlash),
}

func init() {
	settingsCmd.AddCommand(settingsSetCmd, settingsResetCmd, settingsSaveCmd, settingsLoadCmd)
	rootCmd.AddCommand(settingsCmd)
}

func paramNamesHelp() string {
	var b strings.Builder
	for _, p := range nchorder.Params {
		fmt.Fprintf(&b, "  %-20s %s (%d-%d, default %d)\n",
			p.Name, p.Label, p.Min, p.Max, p.Default)
	}
	return b.String()
}

// deviceAction wraps a single no-argument device call as a command runner.
func deviceAction(okMsg string, call func(*nchorder.Device) error) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		dev, _, err := openDevice()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
			os.Exit(2)
		}
		defer dev.Close()

		if err := call(dev); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
		fmt.Println(okMsg)
	}
}

func runSettingsShow(cmd *cobra.Command, args []string) {
	dev, connInfo, err := openDevice()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer dev.Close()

	settings, err := dev.Settings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Settings query failed: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("Connection: %s\n\n", connInfo)
	fmt.Print(nchorder.FormatSettings(settings))
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	info := nchorder.ParamByName(args[0])
	if info == nil {
		names := make([]string, 0, len(nchorder.Params))
		for _, p := range nchorder.Params {
			names = append(names, p.Name)
		}
		return fmt.Errorf("unknown parameter %q (valid: %s)", args[0], strings.Join(names, ", "))
	}

	value, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid value %q", args[1])
	}
	if value < int(info.Min) || value > int(info.Max) {
		return fmt.Errorf("%s must be between %d and %d", info.Name, info.Min, info.Max)
	}

	dev, _, err := openDevice()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer dev.Close()

	if err := dev.SetParam(info.ID, uint16(value)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("Set %s = %d (volatile; 'chordctl settings save' persists it)\n", info.Name, value)
	return nil
}
