// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package twiddler

import (
	"fmt"
	"strings"
)

// QuirkType classifies a firmware interaction warning.
type QuirkType string

const (
	// QuirkBluetoothErase flags a mapping that collides with the T4
	// firmware's hold-to-erase Bluetooth pairing gesture.
	QuirkBluetoothErase QuirkType = "bluetooth-erase"

	// QuirkSystemShadow flags a keyboard mapping on a chord that also
	// carries a mouse or system action. The device resolves the system
	// action, so the keyboard mapping never fires.
	QuirkSystemShadow QuirkType = "system-shadow"
)

// Quirk is a warning about a configuration that parses fine but behaves
// surprisingly on real hardware.
type Quirk struct {
	Type    QuirkType
	Message string
	Details map[string]interface{}
}

func (q Quirk) String() string {
	return fmt.Sprintf("[%s] %s", q.Type, q.Message)
}

// The N+4L chord doubles as the firmware's Bluetooth pairing erase gesture
// when held, and firmware 3.x trips the erase even for a mapped chord if
// its output is the '0' key.
const (
	bluetoothEraseMask = 0x2001 // N + 4L
	bluetoothEraseKey  = 0x27   // HID '0'
)

// CheckQuirks scans a configuration for mappings known to interact badly
// with device firmware.
func CheckQuirks(cfg *Config) []Quirk {
	var quirks []Quirk

	for _, e := range cfg.Chords {
		if e.MatchKey() == bluetoothEraseMask && e.HIDKey == bluetoothEraseKey {
			buttons := strings.Join(ChordToButtons(e.Chord), "+")
			quirks = append(quirks, Quirk{
				Type: QuirkBluetoothErase,
				Message: fmt.Sprintf("chord %s maps to '0'; holding it triggers the firmware's Bluetooth pairing erase", buttons),
				Details: map[string]interface{}{
					"chord":   buttons,
					"mask":    e.Chord,
					"hid_key": e.HIDKey,
				},
			})
			break
		}
	}

	// System actions are indexed by the full button mask, and the firmware
	// checks them before the chord table.
	system := make(map[uint32]ChordEntry)
	for _, e := range cfg.Chords {
		if e.IsSystem() {
			system[e.Chord] = e
		}
	}
	for _, e := range cfg.Chords {
		if e.IsSystem() {
			continue
		}
		sys, ok := system[e.Chord]
		if !ok {
			continue
		}
		buttons := strings.Join(ChordToButtons(e.Chord), "+")
		quirks = append(quirks, Quirk{
			Type: QuirkSystemShadow,
			Message: fmt.Sprintf("chord %s: keyboard mapping %q is shadowed by a system action (modifier 0x%04X)",
				buttons, HIDToChar(e.HIDKey, e.Shifted), sys.Modifier),
			Details: map[string]interface{}{
				"chord":           buttons,
				"mask":            e.Chord,
				"system_modifier": sys.Modifier,
			},
		})
	}

	return quirks
}
