// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nchorder/chordctl/pkg/nchorder"
)

var peekCmd = &cobra.Command{
	Use:   "peek",
	Short: "Read and print a single touch frame",
	Long: `Request one touch frame from the device and print it. Useful for a
quick check that the sensors see anything at all without starting a
stream.

Exit codes:
  0 - Frame read
  2 - Connection or device error`,
	Run: runPeek,
}

func init() {
	rootCmd.AddCommand(peekCmd)
}

func runPeek(cmd *cobra.Command, args []string) {
	dev, connInfo, err := openDevice()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer dev.Close()

	frame, err := dev.Touches()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Touch query failed: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Print(nchorder.FormatFrame(&frame))
}
