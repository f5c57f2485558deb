// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nchorder/chordctl/pkg/nchorder"
)

var probeTimeout int

// probeStreamRate is a modest rate; the point is one valid frame, not
// throughput.
const probeStreamRate = 30

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test streaming by waiting for one valid touch frame",
	Long: `Start the touch stream and wait for the first frame that decodes
cleanly, then stop. This proves the whole path works: command channel,
stream start, sync-byte framing and frame layout.

Exit codes:
  0 - Valid frame received
  1 - No valid frames received within timeout
  2 - Connection or port access error`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 5, "Timeout in seconds")
}

func runProbe(cmd *cobra.Command, args []string) error {
	dev, connInfo, err := openDevice()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer dev.Close()

	fmt.Printf("nChorder - Stream Probe\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Listening for touch frames (%d Hz, timeout %ds)...\n\n",
		probeStreamRate, probeTimeout)

	streamer := nchorder.NewStreamer(dev)
	if err := streamer.Start(probeStreamRate); err != nil {
		fmt.Fprintf(os.Stderr, "Stream start failed: %v\n", err)
		os.Exit(2)
	}

	select {
	case frame := <-streamer.Frames():
		fmt.Print(nchorder.FormatFrame(&frame))
		if err := streamer.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: stream stop: %v\n", err)
		}
		fmt.Println("\nValid frame received.")
		return nil

	case <-streamer.Done():
		stats := streamer.Stats()
		fmt.Fprintf(os.Stderr, "Stream worker died: %s\n", stats.String())
		os.Exit(2)

	case <-time.After(time.Duration(probeTimeout) * time.Second):
		stats := streamer.Stats()
		if err := streamer.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: stream stop: %v\n", err)
		}
		fmt.Printf("No valid frames received within %d seconds.\n", probeTimeout)
		fmt.Printf("Stream stats: %s\n", stats.String())
		os.Exit(1)
	}
	return nil
}
