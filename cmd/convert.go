// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nchorder/chordctl/pkg/twiddler"
)

var convertSystemChords string

var convertCmd = &cobra.Command{
	Use:   "convert <input> [output]",
	Short: "Convert a configuration to the v7 format",
	Long: `Convert a configuration file to the v7 format, the only format the
device accepts for upload. The input may be a v4, v5 or v7 binary file,
or a Tuner CSV export (detected by the .csv extension).

When the output path is omitted it is derived from the input by swapping
the extension for .cfg (or appending _v7.cfg when that would overwrite
the input).

With --system-chords, mouse and system-function mappings from a v7
reference configuration (typically a dump of the device's factory
layout) are appended, skipping any whose chord is already mapped, and
the reference's index table bytes (0x60-0x7F) are carried into the
output verbatim. Firmware 3.x ignores uploads whose index table does
not match its own.

Exit codes:
  0 - Conversion written
  1 - Input unreadable or reference config unusable`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVar(&convertSystemChords, "system-chords", "",
		"v7 reference config to take system chords and index table from")
	rootCmd.AddCommand(convertCmd)
}

// readInput parses a binary config or, for .csv paths, a Tuner CSV export.
func readInput(path string) (*twiddler.Config, string, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		f, err := os.Open(path)
		if err != nil {
			return nil, "", err
		}
		defer f.Close()
		cfg, err := twiddler.ParseTunerCSV(f)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %v", path, err)
		}
		return cfg, "CSV", nil
	}

	cfg, _, err := readConfigFile(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, cfg.Version.String(), nil
}

// defaultOutputPath derives the output name from the input, never
// overwriting the input itself.
func defaultOutputPath(input string) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	out := base + ".cfg"
	if out == input {
		out = base + "_v7.cfg"
	}
	return out
}

func runConvert(cmd *cobra.Command, args []string) error {
	input := args[0]
	cfg, format, err := readInput(input)
	if err != nil {
		return err
	}
	fmt.Printf("Read: %s (%s, %d chords)\n", input, format, len(cfg.Chords))

	if conflicts := cfg.FindConflicts(); len(conflicts) > 0 {
		fmt.Fprintf(os.Stderr, "WARNING: %d chord conflicts detected in input\n", len(conflicts))
	}

	var refData []byte
	if convertSystemChords != "" {
		refCfg, data, err := readConfigFile(convertSystemChords)
		if err != nil {
			return err
		}
		if refCfg.Version != twiddler.Version7 {
			return fmt.Errorf("%s: reference config must be v7, got %s",
				convertSystemChords, refCfg.Version)
		}
		refData = data

		mapped := make(map[uint32]bool, len(cfg.Chords))
		for _, e := range cfg.Chords {
			mapped[e.Chord] = true
		}

		added, skipped := 0, 0
		for _, e := range refCfg.Chords {
			if !e.IsSystem() {
				continue
			}
			if mapped[e.Chord] {
				skipped++
				continue
			}
			cfg.Chords = append(cfg.Chords, e)
			added++
		}
		fmt.Printf("Added %d system chords from %s\n", added, convertSystemChords)
		if skipped > 0 {
			fmt.Printf("Skipped %d system chords that conflict with layout\n", skipped)
		}
	}

	encoded, err := twiddler.EncodeV7(cfg)
	if err != nil {
		return err
	}

	// The firmware matches uploads against its own index table, so a merge
	// carries the reference's table over byte for byte.
	if refData != nil {
		copy(encoded[0x60:0x80], refData[0x60:0x80])
	}

	output := defaultOutputPath(input)
	if len(args) == 2 {
		output = args[1]
	}
	if err := os.WriteFile(output, encoded, 0644); err != nil {
		return err
	}
	fmt.Printf("Wrote: %s (v7, %d chords)\n", output, len(cfg.Chords))
	if refData != nil {
		fmt.Printf("Copied index table from %s\n", convertSystemChords)
	}

	for _, q := range twiddler.CheckQuirks(cfg) {
		fmt.Fprintln(os.Stderr, q)
	}
	return nil
}
