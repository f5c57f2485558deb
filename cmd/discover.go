// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nchorder/chordctl/pkg/nchorder"
)

var discoverProbe bool

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List connected nChorder devices",
	Long: `List serial ports carrying the nChorder USB IDs. A reflash can leave
a stale endpoint behind, so a port showing up here is not proof of a
responsive device; --probe sends a version query to each port and marks
the ones that answer.

Exit codes:
  0 - At least one device found (with --probe: at least one answered)
  1 - No devices found
  2 - Port enumeration failed`,
	Run: runDiscover,
}

func init() {
	discoverCmd.Flags().BoolVar(&discoverProbe, "probe", false,
		"Send a version query to each port and report which answer")
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) {
	fmt.Printf("Scanning for nChorder devices (USB %04X:%04X)...\n\n",
		nchorder.USBVendorID, nchorder.USBProductID)

	details, err := nchorder.FindPortDetails()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if len(details) == 0 {
		fmt.Println("No devices found.")
		os.Exit(1)
	}

	live := 0
	for _, p := range details {
		line := fmt.Sprintf("  %-16s", p.Name)
		if p.SerialNumber != "" {
			line += fmt.Sprintf("  serial %s", p.SerialNumber)
		}
		if discoverProbe {
			if nchorder.ProbePort(p.Name) {
				line += "  (live)"
				live++
			} else {
				line += "  (no response)"
			}
		}
		fmt.Println(line)
	}

	fmt.Printf("\n%d port(s) found.\n", len(details))
	if discoverProbe && live == 0 {
		os.Exit(1)
	}
}
