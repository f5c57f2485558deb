// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/nchorder/chordctl/pkg/twiddler"
)

var (
	exportIncludeMacros bool
	exportNoThumbs      bool
	exportOpen          bool
)

var exportCmd = &cobra.Command{
	Use:   "export <input> [output]",
	Short: "Export a configuration as Tutor-compatible JSON",
	Long: `Export a configuration file as the JSON layout document the Tutor
web trainer imports. Mouse and system mappings have no Tutor form and
are skipped; macros are skipped too unless --include-macros is given.

When the output path is omitted it is derived from the input by swapping
the extension for .json.

Exit codes:
  0 - Layout written
  1 - Input unreadable or output not writable`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().BoolVar(&exportIncludeMacros, "include-macros", false,
		"Include multi-character macros in the export")
	exportCmd.Flags().BoolVar(&exportNoThumbs, "no-thumbs", false,
		"Drop thumb buttons from chord notation")
	exportCmd.Flags().BoolVar(&exportOpen, "open", false,
		"Open the exported layout in the default browser")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	input := args[0]
	cfg, _, err := readConfigFile(input)
	if err != nil {
		return err
	}

	layout, skipped := twiddler.BuildTutorLayout(cfg, !exportNoThumbs, exportIncludeMacros)

	data, err := json.MarshalIndent(layout, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	output := strings.TrimSuffix(input, filepath.Ext(input)) + ".json"
	if len(args) == 2 {
		output = args[1]
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		return err
	}

	fmt.Printf("Wrote %d chords", len(layout.Chords))
	if len(layout.Macros) > 0 {
		fmt.Printf(", %d macros", len(layout.Macros))
	}
	fmt.Printf(" to %s\n", output)
	if skipped > 0 {
		fmt.Printf("Skipped %d entries with no Tutor form\n", skipped)
	}

	if exportOpen {
		if err := browser.OpenFile(output); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not open browser: %v\n", err)
		}
	}
	return nil
}
