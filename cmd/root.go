// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket bridge flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool
)

var rootCmd = &cobra.Command{
	Use:   "chordctl",
	Short: "nChorder configuration and monitoring tool",
	Long: `chordctl - configure and monitor an nChorder chorded keyboard.

File commands (info, dump, layouts, analyze, diff, convert, export) read and
write configuration files and need no device.

Device commands (discover, status, settings, peek, ping, probe, monitor,
tune, upload) talk to the keyboard over its USB CDC serial interface. The
port is taken from --port, from the preferences file
(~/.config/chordctl/chordctl.toml), or found by USB IDs when exactly one
device is connected.

Connection modes:
  Serial:    --port /dev/ttyACM0 [--baud 115200]
  WebSocket: --url ws://host/path [--ws-user user]  (serial-over-WebSocket bridge)

For WebSocket authentication, the password is read from the CHORDCTL_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell
history.`,
	Version: "1.2.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		applyPrefs(cmd)
	},
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (ignored by the CDC interface, set for bridges)")

	// WebSocket bridge flags
	rootCmd.PersistentFlags().StringVar(&wsURL, "url", "", "WebSocket bridge URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "ws-user", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "ws-no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
