// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

// Package twiddler models chorded-keyboard configurations and the binary
// file formats used to store them.
//
// A configuration is an ordered list of chord-to-output mappings plus a
// small set of behaviour settings (sleep timeout, mouse actions, feature
// flags). The package understands the three Twiddler-compatible on-flash
// layouts: v4 (Twiddler 2.1, early T3), v5 (T3 firmware 12+, adds a string
// table for multi-character macros) and v7 (T4 firmware 3.x, the only
// format with a writer). See format.go for detection and dispatch.
//
// Everything in this package is pure: no I/O, no goroutines, no shared
// state. Callers hand in bytes and get a Config back, or vice versa.
package twiddler

import (
	"fmt"
	"strings"
)

// Canonical 16-bit modifier words. The low byte tags the event type
// (keyboard 0x02, mouse 0x01, system function 0x07, multi sentinel 0xFF);
// the remaining bits carry HID modifier flags. Historical tools disagreed
// on byte order for shifted entries, so both ModShift and ModShiftAlt are
// recognised on parse; only ModShift is ever written.
const (
	ModPlain    = 0x0002 // keyboard event, no modifiers
	ModShift    = 0x0220 // keyboard event + shift
	ModShiftAlt = 0x2002 // shift with the historical swapped byte order
	ModMulti    = 0x02FF // key field is a macro reference, not a HID code
)

// Event-type tags (low byte of the modifier word)
const (
	TagMouse    = 0x01
	TagKeyboard = 0x02
	TagSystem   = 0x07
	TagMulti    = 0xFF
)

// Factory defaults, matching a freshly reset device
const (
	DefaultSleepTimeout   = 3720
	DefaultKeyRepeatDelay = 100
	DefaultMouseAccel     = 10
	DefaultMouseLeft      = 0
	DefaultMouseMiddle    = 3
	DefaultMouseRight     = 1
)

// KeyStroke is one keystroke within a multi-character macro: a raw HID
// modifier byte and a HID usage code.
type KeyStroke struct {
	Modifier uint8
	HIDKey   uint8
}

// ChordEntry maps one chord (a set of pressed buttons, stored as a bitmask)
// to a single key or a multi-character macro.
type ChordEntry struct {
	Chord    uint32 // button bitmask; only the low 16 bits select a mapping
	HIDKey   uint16 // HID usage code, or macro reference when Multi
	Modifier uint16 // raw modifier word from the file
	Shifted  bool   // derived from Modifier on parse
	Multi    bool   // entry produces a macro rather than a single key

	// MultiChars holds the macro keystrokes for Multi entries. It may be
	// empty when the source file's string table was missing or truncated.
	MultiChars []KeyStroke
}

// MatchKey returns the low 16 bits of the chord mask. The firmware compares
// only these bits when looking up a chord, so two entries whose MatchKey
// values are equal conflict even if their full masks differ.
func (e ChordEntry) MatchKey() uint16 {
	return uint16(e.Chord & 0xFFFF)
}

// EventTag returns the event-type tag from the low byte of the modifier
// word (TagKeyboard, TagMouse, TagSystem or TagMulti).
func (e ChordEntry) EventTag() uint8 {
	return uint8(e.Modifier & 0xFF)
}

// IsSystem reports whether the entry is a device-internal mapping (mouse
// action or system function) rather than a keyboard output.
func (e ChordEntry) IsSystem() bool {
	tag := e.EventTag()
	return tag == TagMouse || tag == TagSystem
}

func (e ChordEntry) String() string {
	buttons := strings.Join(ChordToButtons(e.Chord), "+")
	if buttons == "" {
		buttons = "NONE"
	}
	if e.Multi {
		return fmt.Sprintf("%s -> [multi:%d chars]", buttons, len(e.MultiChars))
	}
	return fmt.Sprintf("%s -> %q", buttons, HIDToChar(e.HIDKey, e.Shifted))
}

// Config is a complete chord configuration: behaviour settings plus the
// ordered chord table. Order is priority: when two entries share a match
// key the earlier one wins on the device.
type Config struct {
	Version Version

	// Behaviour settings
	SleepTimeout   uint16 // seconds of inactivity before sleep
	KeyRepeatDelay uint16 // milliseconds before key repeat kicks in
	MouseAccel     uint8

	// Feature flags
	KeyRepeat         bool
	DirectKey         bool
	JoystickLeftClick bool
	DisableBluetooth  bool
	StickyNum         bool
	StickyShift       bool
	HapticFeedback    bool

	// Mouse button actions (indexes into the firmware action table)
	MouseLeftAction   uint16
	MouseMiddleAction uint16
	MouseRightAction  uint16

	// Chord mappings in file order
	Chords []ChordEntry
}

// NewConfig returns a Config populated with factory defaults and no chords.
func NewConfig() *Config {
	return &Config{
		Version:           Version7,
		SleepTimeout:      DefaultSleepTimeout,
		KeyRepeatDelay:    DefaultKeyRepeatDelay,
		MouseAccel:        DefaultMouseAccel,
		JoystickLeftClick: true,
		MouseLeftAction:   DefaultMouseLeft,
		MouseMiddleAction: DefaultMouseMiddle,
		MouseRightAction:  DefaultMouseRight,
	}
}

// GetChord returns the first entry whose full mask equals buttons, or nil.
func (c *Config) GetChord(buttons uint32) *ChordEntry {
	for i := range c.Chords {
		if c.Chords[i].Chord == buttons {
			return &c.Chords[i]
		}
	}
	return nil
}

// AddChord appends a plain single-key mapping in canonical modifier form.
func (c *Config) AddChord(buttons uint32, hidKey uint16, shifted bool) {
	modifier := uint16(ModPlain)
	if shifted {
		modifier = ModShift
	}
	c.Chords = append(c.Chords, ChordEntry{
		Chord:    buttons,
		HIDKey:   hidKey,
		Modifier: modifier,
		Shifted:  shifted,
	})
}

func (c *Config) String() string {
	return fmt.Sprintf("Config(%s, %d chords)", c.Version, len(c.Chords))
}
