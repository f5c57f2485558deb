// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nchorder/chordctl/pkg/twiddler"
)

var (
	analyzeReference string
	analyzeVerbose   bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a configuration for coverage and issues",
	Long: `Analyze a configuration file: chord counts by type, how much of the
reference chord set is mapped, conflicting entries and known firmware
quirks.

The default reference set is the 195 ergonomically reachable chords
(single fingers, adjacent-row pairs, each optionally with one thumb).
--reference replaces it with the chords of another configuration file,
which answers "what does this layout cover that mine does not".

Exit codes:
  0 - File parsed successfully
  1 - File missing or not a recognised configuration`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeReference, "reference", "",
		"Config file whose chords replace the built-in reference set")
	analyzeCmd.Flags().BoolVarP(&analyzeVerbose, "verbose", "v", false,
		"List unmapped chords instead of just counting them")
	rootCmd.AddCommand(analyzeCmd)
}

// referenceChords builds the coverage reference list: the built-in common
// set, or the deduplicated match keys of a reference config.
func referenceChords(path string) ([]uint32, string, error) {
	if path == "" {
		return twiddler.GenerateCommonChords(), "common chords", nil
	}

	refCfg, _, err := readConfigFile(path)
	if err != nil {
		return nil, "", err
	}
	seen := make(map[uint16]bool, len(refCfg.Chords))
	var reference []uint32
	for _, e := range refCfg.Chords {
		if seen[e.MatchKey()] {
			continue
		}
		seen[e.MatchKey()] = true
		reference = append(reference, uint32(e.MatchKey()))
	}
	return reference, path, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, _, err := readConfigFile(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Config: %s\n", args[0])
	fmt.Printf("Format: %s\n", cfg.Version)
	fmt.Printf("Total chords: %d\n", len(cfg.Chords))
	fmt.Println()

	keyboard, macros, mouse, system, other := chordBreakdown(cfg)
	fmt.Println("Chord breakdown:")
	fmt.Printf("  keyboard: %d\n", keyboard)
	fmt.Printf("  macro:    %d\n", macros)
	fmt.Printf("  mouse:    %d\n", mouse)
	fmt.Printf("  system:   %d\n", system)
	if other > 0 {
		fmt.Printf("  unknown:  %d\n", other)
	}
	fmt.Println()

	reference, refName, err := referenceChords(analyzeReference)
	if err != nil {
		return err
	}
	unmapped := cfg.FindUnmapped(reference)
	fmt.Printf("Coverage: %d of %d %s mapped (%d unmapped)\n",
		len(reference)-len(unmapped), len(reference), refName, len(unmapped))

	if analyzeVerbose && len(unmapped) > 0 {
		fmt.Println("\nUnmapped chords:")
		show := unmapped
		if len(show) > 20 {
			show = show[:20]
		}
		for _, chord := range show {
			buttons := strings.Join(twiddler.ChordToButtons(chord), "+")
			fmt.Printf("  %-10s  (%s)\n", twiddler.TutorNotation(chord, true), buttons)
		}
		if len(unmapped) > 20 {
			fmt.Printf("  ... and %d more\n", len(unmapped)-20)
		}
	}

	if conflicts := cfg.FindConflicts(); len(conflicts) > 0 {
		fmt.Printf("\nConflicts detected: %d\n", len(conflicts))
		for _, c := range conflicts {
			fmt.Printf("  %s shadows %s\n", c.Original, c.Duplicate)
		}
	}

	if quirks := twiddler.CheckQuirks(cfg); len(quirks) > 0 {
		fmt.Printf("\nFirmware quirks: %d\n", len(quirks))
		for _, q := range quirks {
			fmt.Printf("  %s\n", q)
		}
	}

	return nil
}
