// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nchorder/chordctl/pkg/nchorder"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show firmware version and current settings",
	Long: `Connect to the device and show its firmware version, hardware
revision and current runtime settings.

Exit codes:
  0 - Status read
  2 - Connection or device error`,
	Run: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	dev, connInfo, err := openDevice()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer dev.Close()

	version, err := dev.Version()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Version query failed: %v\n", err)
		os.Exit(2)
	}
	settings, err := dev.Settings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Settings query failed: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("nChorder - Device Status\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Firmware:   %s\n", version)
	fmt.Println()
	fmt.Print(nchorder.FormatSettings(settings))
}
