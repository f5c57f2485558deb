// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	pingTimeout int
	pingCount   int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Test the connection with version queries",
	Long: `Send version queries to the device and measure round-trip times.

This is useful for verifying:
  - The port or bridge URL reaches a live device
  - HTTP Basic authentication works (WebSocket mode)
  - The firmware is responsive and not wedged in an upload

Exit codes:
  0 - All pings answered
  1 - One or more pings failed or timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 5, "Timeout in seconds for each ping")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	dev, connInfo, err := openDevice()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer dev.Close()

	dev.SetTimeout(time.Duration(pingTimeout) * time.Second)

	fmt.Printf("nChorder - Ping\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds per ping\n", pingTimeout)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	successCount := 0
	failCount := 0

	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		startTime := time.Now()
		version, err := dev.Version()
		if err != nil {
			fmt.Printf("FAILED: %v\n", err)
			failCount++
		} else {
			rtt := time.Since(startTime)
			fmt.Printf("reply %s, rtt=%v\n", version, rtt.Round(time.Microsecond))
			successCount++
		}

		// Small delay between pings
		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d responses received, %.0f%% packet loss\n",
		pingCount, successCount, float64(failCount)/float64(pingCount)*100)

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}
