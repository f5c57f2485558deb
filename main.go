// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors
//
// chordctl - nChorder configuration and monitoring tool
//
// A CLI tool for configuring, monitoring and tuning nChorder chorded
// keyboards over USB CDC serial or a serial-over-WebSocket bridge.

package main

import (
	"os"

	"github.com/nchorder/chordctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
