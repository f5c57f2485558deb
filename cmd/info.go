// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nchorder/chordctl/pkg/twiddler"
)

var infoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Show a summary of a configuration file",
	Long: `Show a summary of a chord configuration file: format version, chord
counts by type, behaviour settings, and any conflicts or compatibility
quirks worth knowing about before uploading.

Supports v4, v5 and v7 binary formats.

Exit codes:
  0 - File parsed successfully
  1 - File missing or not a recognised configuration`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

// readConfigFile loads and parses a binary configuration file. The raw
// bytes are returned alongside the parsed form for commands that need to
// re-encode or splice the original data.
func readConfigFile(path string) (*twiddler.Config, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := twiddler.Parse(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %v", path, err)
	}
	return cfg, data, nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// chordBreakdown counts entries by output type. Macros are counted once,
// never again under keyboard.
func chordBreakdown(cfg *twiddler.Config) (keyboard, macros, mouse, system, other int) {
	for _, e := range cfg.Chords {
		switch {
		case e.Multi:
			macros++
		case e.EventTag() == twiddler.TagKeyboard:
			keyboard++
		case e.EventTag() == twiddler.TagMouse:
			mouse++
		case e.EventTag() == twiddler.TagSystem:
			system++
		default:
			other++
		}
	}
	return
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg, data, err := readConfigFile(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("File:    %s\n", args[0])
	fmt.Printf("Format:  %s\n", cfg.Version)
	fmt.Printf("Size:    %d bytes\n", len(data))
	fmt.Println()

	keyboard, macros, mouse, system, other := chordBreakdown(cfg)

	fmt.Printf("Chords:  %d\n", len(cfg.Chords))
	fmt.Printf("  keyboard: %d\n", keyboard)
	fmt.Printf("  macro:    %d\n", macros)
	fmt.Printf("  mouse:    %d\n", mouse)
	fmt.Printf("  system:   %d\n", system)
	if other > 0 {
		fmt.Printf("  unknown:  %d\n", other)
	}
	fmt.Println()

	fmt.Println("Settings:")
	fmt.Printf("  Sleep timeout:    %d s\n", cfg.SleepTimeout)
	fmt.Printf("  Key repeat delay: %d ms\n", cfg.KeyRepeatDelay)
	fmt.Printf("  Mouse accel:      %d\n", cfg.MouseAccel)
	fmt.Printf("  Key repeat:       %s\n", onOff(cfg.KeyRepeat))
	fmt.Printf("  Direct key:       %s\n", onOff(cfg.DirectKey))
	fmt.Printf("  Joystick click:   %s\n", onOff(cfg.JoystickLeftClick))
	fmt.Printf("  Sticky num:       %s\n", onOff(cfg.StickyNum))
	fmt.Printf("  Sticky shift:     %s\n", onOff(cfg.StickyShift))
	fmt.Printf("  Haptic feedback:  %s\n", onOff(cfg.HapticFeedback))
	if cfg.DisableBluetooth {
		fmt.Printf("  Bluetooth:        disabled\n")
	} else {
		fmt.Printf("  Bluetooth:        enabled\n")
	}
	fmt.Printf("  Mouse buttons:    left=%d middle=%d right=%d\n",
		cfg.MouseLeftAction, cfg.MouseMiddleAction, cfg.MouseRightAction)

	if conflicts := cfg.FindConflicts(); len(conflicts) > 0 {
		fmt.Println()
		fmt.Printf("Conflicts: %d\n", len(conflicts))
		for _, c := range conflicts {
			fmt.Printf("  %s shadows %s\n", c.Original, c.Duplicate)
		}
	}

	if quirks := twiddler.CheckQuirks(cfg); len(quirks) > 0 {
		fmt.Println()
		fmt.Println("Quirks:")
		for _, q := range quirks {
			fmt.Printf("  %s\n", q)
		}
	}

	return nil
}
