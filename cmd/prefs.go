// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

// Prefs holds the optional preferences file. Connection fields have a flag
// equivalent; flags win when both are set.
type Prefs struct {
	Port       string `toml:"port"`
	Baud       int    `toml:"baud"`
	URL        string `toml:"url"`
	WSUser     string `toml:"ws_user"`
	LayoutsDir string `toml:"layouts_dir"`
}

// loadedPrefs is the last successfully loaded preferences file, kept for
// fields without a flag equivalent (layouts directory).
var loadedPrefs = DefaultPrefs()

// DefaultPrefs returns the preferences used when no file exists yet.
func DefaultPrefs() *Prefs {
	return &Prefs{
		Baud: 115200,
	}
}

// PrefsPath returns the preferences file location,
// ~/.config/chordctl/chordctl.toml on Linux.
func PrefsPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "chordctl", "chordctl.toml"), nil
}

// LoadPrefs reads the preferences file, writing a default one first if it
// does not exist yet.
func LoadPrefs(path string) (*Prefs, error) {
	prefs := DefaultPrefs()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := SavePrefs(path, prefs); err != nil {
			return prefs, err
		}
		return prefs, nil
	}

	if _, err := toml.DecodeFile(path, prefs); err != nil {
		return prefs, err
	}
	return prefs, nil
}

// SavePrefs writes the preferences file, creating its directory as needed.
func SavePrefs(path string, prefs *Prefs) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(prefs)
}

// applyPrefs fills connection flags that were not given on the command line
// from the preferences file. A broken preferences file is reported but never
// blocks the command; the file is optional.
func applyPrefs(cmd *cobra.Command) {
	path, err := PrefsPath()
	if err != nil {
		return
	}
	prefs, err := LoadPrefs(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: preferences file %s: %v\n", path, err)
		return
	}
	loadedPrefs = prefs

	if portName == "" {
		portName = prefs.Port
	}
	if !cmd.Flags().Changed("baud") && prefs.Baud != 0 {
		baudRate = prefs.Baud
	}
	if wsURL == "" {
		wsURL = prefs.URL
	}
	if wsUsername == "" {
		wsUsername = prefs.WSUser
	}
}
