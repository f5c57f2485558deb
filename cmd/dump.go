// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nchorder/chordctl/pkg/twiddler"
)

var dumpCmd = &cobra.Command{
	Use:   "dump <file>",
	Short: "List every chord mapping in a configuration file",
	Long: `List every chord mapping in a configuration file, one line per entry,
in file order. File order is priority order: when two entries share a
match key the earlier one wins on the device.

Columns are the entry index, the raw button mask, the pressed buttons,
the raw modifier word, the HID usage code and the rendered output.

Exit codes:
  0 - File parsed successfully
  1 - File missing or not a recognised configuration`,
	Args: cobra.ExactArgs(1),
	RunE: runDump,
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}

// macroText renders a macro's keystrokes as one string. Special keys keep
// their angle-bracket names so nothing is hidden.
func macroText(chars []twiddler.KeyStroke) string {
	var b strings.Builder
	for _, ks := range chars {
		shifted := ks.Modifier&0x22 != 0
		b.WriteString(twiddler.HIDToChar(uint16(ks.HIDKey), shifted))
	}
	return b.String()
}

// entryOutput renders what an entry produces, for table and diff lines.
func entryOutput(e twiddler.ChordEntry) string {
	switch {
	case e.Multi:
		return fmt.Sprintf("macro: %q", macroText(e.MultiChars))
	case e.EventTag() == twiddler.TagMouse:
		return fmt.Sprintf("[mouse 0x%02X]", e.HIDKey)
	case e.EventTag() == twiddler.TagSystem:
		return fmt.Sprintf("[system 0x%02X]", e.HIDKey)
	default:
		return fmt.Sprintf("%q", twiddler.HIDToChar(e.HIDKey, e.Shifted))
	}
}

func runDump(cmd *cobra.Command, args []string) error {
	cfg, _, err := readConfigFile(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("# %s: %s, %d chords\n\n", args[0], cfg.Version, len(cfg.Chords))
	fmt.Printf("%5s  %-6s  %-16s  %-6s  %-6s  %s\n",
		"Index", "Mask", "Buttons", "Mod", "Key", "Output")

	for i, e := range cfg.Chords {
		buttons := strings.Join(twiddler.ChordToButtons(e.Chord), "+")
		if buttons == "" {
			buttons = "NONE"
		}

		fmt.Printf("%5d  0x%04X  %-16s  0x%04X  0x%04X  %s\n",
			i, e.Chord, buttons, e.Modifier, e.HIDKey, entryOutput(e))
	}

	return nil
}
