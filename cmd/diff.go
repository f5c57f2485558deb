// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nchorder/chordctl/pkg/twiddler"
)

var diffCmd = &cobra.Command{
	Use:   "diff <file1> <file2>",
	Short: "Compare two configuration files",
	Long: `Compare two configuration files and report chords that were added,
removed or remapped, plus behaviour settings that differ. Entries are
matched on the 16-bit key the firmware compares, so the comparison works
across format versions.

Follows the diff(1) exit convention:
  0 - Configurations are equivalent
  1 - Differences found
  2 - A file was missing or not parseable`,
	Args: cobra.ExactArgs(2),
	Run:  runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)
}

func diffButtons(mask uint32) string {
	buttons := strings.Join(twiddler.ChordToButtons(mask), "+")
	if buttons == "" {
		buttons = "NONE"
	}
	return buttons
}

func runDiff(cmd *cobra.Command, args []string) {
	cfg1, _, err := readConfigFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	cfg2, _, err := readConfigFile(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	d := cfg1.Diff(cfg2)

	fmt.Printf("Comparing: %s -> %s\n\n", args[0], args[1])

	if len(d.Settings) > 0 {
		fmt.Println("Settings changed:")
		for _, s := range d.Settings {
			fmt.Printf("  %s: %d -> %d\n", s.Name, s.Old, s.New)
		}
		fmt.Println()
	}

	if len(d.Removed) > 0 {
		fmt.Printf("Removed (%d chords):\n", len(d.Removed))
		for i, e := range d.Removed {
			if i == 10 {
				fmt.Printf("  ... and %d more\n", len(d.Removed)-10)
				break
			}
			fmt.Printf("  - %s: %s\n", diffButtons(e.Chord), entryOutput(e))
		}
		fmt.Println()
	}

	if len(d.Added) > 0 {
		fmt.Printf("Added (%d chords):\n", len(d.Added))
		for i, e := range d.Added {
			if i == 10 {
				fmt.Printf("  ... and %d more\n", len(d.Added)-10)
				break
			}
			fmt.Printf("  + %s: %s\n", diffButtons(e.Chord), entryOutput(e))
		}
		fmt.Println()
	}

	if len(d.Changed) > 0 {
		fmt.Printf("Changed (%d chords):\n", len(d.Changed))
		for i, c := range d.Changed {
			if i == 10 {
				fmt.Printf("  ... and %d more\n", len(d.Changed)-10)
				break
			}
			fmt.Printf("  %s: %s -> %s\n",
				diffButtons(uint32(c.Mask)), entryOutput(c.Old), entryOutput(c.New))
		}
		fmt.Println()
	}

	if d.Empty() {
		fmt.Println("No differences found.")
		return
	}
	os.Exit(1)
}
