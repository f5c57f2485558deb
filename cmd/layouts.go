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

var layoutsCmd = &cobra.Command{
	Use:   "layouts [file]",
	Short: "List saved layouts, or show one in tutor notation",
	Long: `Without arguments, list the layout files in the layouts directory
(~/.config/chordctl/layouts by default, overridable with layouts_dir in
the preferences file). Names listed here can be uploaded directly:

  chordctl upload default

With a file or layout name, print that layout's chord table in the
Tutor's row notation: one of L/M/R/O per finger row, held thumb buttons
prepended in NACS order ("N LOOO" is thumb-Num plus top-left).

Exit codes:
  0 - Success
  1 - Layouts directory or file missing, or file not parseable`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLayouts,
}

func init() {
	rootCmd.AddCommand(layoutsCmd)
}

// layoutsDir returns the directory searched for named layouts.
func layoutsDir() (string, error) {
	if loadedPrefs.LayoutsDir != "" {
		return loadedPrefs.LayoutsDir, nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "chordctl", "layouts"), nil
}

// resolveLayout turns a path or bare layout name into a file path. Bare
// names are looked up in the layouts directory, with and without the .cfg
// extension.
func resolveLayout(arg string) (string, error) {
	if _, err := os.Stat(arg); err == nil {
		return arg, nil
	}

	dir, err := layoutsDir()
	if err != nil {
		return "", fmt.Errorf("layout not found: %s", arg)
	}
	for _, candidate := range []string{arg + ".cfg", arg} {
		path := filepath.Join(dir, candidate)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("layout not found: %s (run 'chordctl layouts' to list saved layouts)", arg)
}

func runLayouts(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listLayouts()
	}
	return showLayout(args[0])
}

func listLayouts() error {
	dir, err := layoutsDir()
	if err != nil {
		return err
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.cfg"))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Printf("No layout files found in %s.\n", dir)
		return nil
	}

	fmt.Println("Available layouts:")
	fmt.Println()
	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".cfg")
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("  %-20s  (error reading file)\n", name)
			continue
		}
		cfg, err := twiddler.Parse(data)
		if err != nil {
			fmt.Printf("  %-20s  (error reading file)\n", name)
			continue
		}
		fmt.Printf("  %-20s  %3d chords  (%s)\n", name, len(cfg.Chords), path)
	}
	return nil
}

func showLayout(arg string) error {
	path, err := resolveLayout(arg)
	if err != nil {
		return err
	}
	cfg, _, err := readConfigFile(path)
	if err != nil {
		return err
	}

	fmt.Printf("# %s: %s, %d chords\n\n", path, cfg.Version, len(cfg.Chords))
	fmt.Printf("%-10s  %s\n", "Chord", "Output")

	for _, e := range cfg.Chords {
		notation := twiddler.TutorNotation(e.Chord, true)

		var output string
		switch {
		case e.Multi:
			output = fmt.Sprintf("macro: %q", macroText(e.MultiChars))
		case e.EventTag() == twiddler.TagMouse:
			output = fmt.Sprintf("[mouse 0x%02X]", e.HIDKey)
		case e.EventTag() == twiddler.TagSystem:
			output = fmt.Sprintf("[system 0x%02X]", e.HIDKey)
		default:
			output = twiddler.HIDToChar(e.HIDKey, e.Shifted)
		}

		fmt.Printf("%-10s  %s\n", notation, output)
	}
	return nil
}
