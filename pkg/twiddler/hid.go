// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package twiddler

import (
	"fmt"
	"strings"
)

// hidMap maps HID usage codes from the Keyboard/Keypad page (0x07) to their
// unshifted and shifted character forms. Codes 0x04-0x63 are covered; the
// map is declared in ascending code order and CharToHID resolves ambiguous
// characters ('-', '/', digits) to the lowest matching code.
var hidMap = map[uint16][2]string{
	// Letters a-z
	0x04: {"a", "A"}, 0x05: {"b", "B"}, 0x06: {"c", "C"}, 0x07: {"d", "D"},
	0x08: {"e", "E"}, 0x09: {"f", "F"}, 0x0A: {"g", "G"}, 0x0B: {"h", "H"},
	0x0C: {"i", "I"}, 0x0D: {"j", "J"}, 0x0E: {"k", "K"}, 0x0F: {"l", "L"},
	0x10: {"m", "M"}, 0x11: {"n", "N"}, 0x12: {"o", "O"}, 0x13: {"p", "P"},
	0x14: {"q", "Q"}, 0x15: {"r", "R"}, 0x16: {"s", "S"}, 0x17: {"t", "T"},
	0x18: {"u", "U"}, 0x19: {"v", "V"}, 0x1A: {"w", "W"}, 0x1B: {"x", "X"},
	0x1C: {"y", "Y"}, 0x1D: {"z", "Z"},

	// Number row 1-0
	0x1E: {"1", "!"}, 0x1F: {"2", "@"}, 0x20: {"3", "#"}, 0x21: {"4", "$"},
	0x22: {"5", "%"}, 0x23: {"6", "^"}, 0x24: {"7", "&"}, 0x25: {"8", "*"},
	0x26: {"9", "("}, 0x27: {"0", ")"},

	// Special keys
	0x28: {"<Return>", "<Return>"},
	0x29: {"<Escape>", "<Escape>"},
	0x2A: {"<Backspace>", "<Backspace>"},
	0x2B: {"<Tab>", "<Tab>"},
	0x2C: {"<Space>", "<Space>"},

	// Punctuation
	0x2D: {"-", "_"}, 0x2E: {"=", "+"}, 0x2F: {"[", "{"}, 0x30: {"]", "}"},
	0x31: {"\\", "|"}, 0x32: {"#", "~"}, // non-US
	0x33: {";", ":"}, 0x34: {"'", "\""}, 0x35: {"`", "~"},
	0x36: {",", "<"}, 0x37: {".", ">"}, 0x38: {"/", "?"},

	0x39: {"<CapsLock>", "<CapsLock>"},

	// Function keys
	0x3A: {"<F1>", "<F1>"}, 0x3B: {"<F2>", "<F2>"}, 0x3C: {"<F3>", "<F3>"},
	0x3D: {"<F4>", "<F4>"}, 0x3E: {"<F5>", "<F5>"}, 0x3F: {"<F6>", "<F6>"},
	0x40: {"<F7>", "<F7>"}, 0x41: {"<F8>", "<F8>"}, 0x42: {"<F9>", "<F9>"},
	0x43: {"<F10>", "<F10>"}, 0x44: {"<F11>", "<F11>"}, 0x45: {"<F12>", "<F12>"},

	// Navigation
	0x46: {"<PrintScreen>", "<PrintScreen>"},
	0x47: {"<ScrollLock>", "<ScrollLock>"},
	0x48: {"<Pause>", "<Pause>"},
	0x49: {"<Insert>", "<Insert>"},
	0x4A: {"<Home>", "<Home>"},
	0x4B: {"<PageUp>", "<PageUp>"},
	0x4C: {"<Delete>", "<Delete>"},
	0x4D: {"<End>", "<End>"},
	0x4E: {"<PageDown>", "<PageDown>"},
	0x4F: {"<Right>", "<Right>"},
	0x50: {"<Left>", "<Left>"},
	0x51: {"<Down>", "<Down>"},
	0x52: {"<Up>", "<Up>"},
	0x53: {"<NumLock>", "<NumLock>"},

	// Numpad
	0x54: {"/", "/"},
	0x55: {"*", "*"},
	0x56: {"-", "-"},
	0x57: {"+", "+"},
	0x58: {"<Enter>", "<Enter>"},
	0x59: {"1", "1"}, 0x5A: {"2", "2"}, 0x5B: {"3", "3"},
	0x5C: {"4", "4"}, 0x5D: {"5", "5"}, 0x5E: {"6", "6"},
	0x5F: {"7", "7"}, 0x60: {"8", "8"}, 0x61: {"9", "9"},
	0x62: {"0", "0"}, 0x63: {".", "."},
}

const (
	hidMapFirst = 0x04
	hidMapLast  = 0x63
)

// HIDToChar converts a HID usage code to its character string. Unknown
// codes render as "<0xNN>".
func HIDToChar(hidCode uint16, shifted bool) string {
	if chars, ok := hidMap[hidCode]; ok {
		if shifted {
			return chars[1]
		}
		return chars[0]
	}
	return fmt.Sprintf("<0x%02X>", hidCode)
}

// CharToHID converts a character to its HID usage code and shift state.
// Returns ok=false when the character has no HID mapping.
func CharToHID(char string) (hidCode uint16, shifted bool, ok bool) {
	for code := uint16(hidMapFirst); code <= hidMapLast; code++ {
		chars := hidMap[code]
		if char == chars[0] {
			return code, false, true
		}
		if char == chars[1] {
			return code, true, true
		}
	}
	return 0, false, false
}

// Button bit positions within a chord mask. The layout has 4 thumb buttons
// (Num, Alt, Ctrl, Shift) on bits 0, 4, 8 and 12, and 4 finger rows of
// 3 columns (Left, Middle, Right) filling the bits in between.
var buttonBits = map[string]uint{
	"N": 0, "A": 4, "C": 8, "S": 12,

	"1L": 1, "1M": 2, "1R": 3,
	"2L": 5, "2M": 6, "2R": 7,
	"3L": 9, "3M": 10, "3R": 11,
	"4L": 13, "4M": 14, "4R": 15,
}

// buttonOrder fixes the iteration order for ChordToButtons: thumbs first,
// then rows top to bottom.
var buttonOrder = []string{
	"N", "A", "C", "S",
	"1L", "1M", "1R",
	"2L", "2M", "2R",
	"3L", "3M", "3R",
	"4L", "4M", "4R",
}

// ChordToButtons converts a chord bitmask to the list of pressed button
// names, thumbs first.
func ChordToButtons(chord uint32) []string {
	var buttons []string
	for _, name := range buttonOrder {
		if chord&(1<<buttonBits[name]) != 0 {
			buttons = append(buttons, name)
		}
	}
	return buttons
}

// ButtonsToChord converts button names to a chord bitmask. Unknown names
// are ignored.
func ButtonsToChord(buttons []string) uint32 {
	var chord uint32
	for _, name := range buttons {
		if bit, ok := buttonBits[name]; ok {
			chord |= 1 << bit
		}
	}
	return chord
}

// TutorNotation converts a chord bitmask to the Tutor's 4-character row
// notation: one of L/M/R/O per finger row, e.g. "LOOO" or "RROL". When
// includeThumbs is true, held thumb buttons are prepended in NACS order
// followed by a space, e.g. "N LOOO".
func TutorNotation(chord uint32, includeThumbs bool) string {
	var rows strings.Builder
	for row := 1; row <= 4; row++ {
		switch {
		case chord&(1<<buttonBits[fmt.Sprintf("%dL", row)]) != 0:
			rows.WriteByte('L')
		case chord&(1<<buttonBits[fmt.Sprintf("%dM", row)]) != 0:
			rows.WriteByte('M')
		case chord&(1<<buttonBits[fmt.Sprintf("%dR", row)]) != 0:
			rows.WriteByte('R')
		default:
			rows.WriteByte('O')
		}
	}

	fingers := rows.String()
	if !includeThumbs {
		return fingers
	}

	var thumbs strings.Builder
	for _, name := range []string{"N", "A", "C", "S"} {
		if chord&(1<<buttonBits[name]) != 0 {
			thumbs.WriteString(name)
		}
	}

	if thumbs.Len() > 0 {
		return thumbs.String() + " " + fingers
	}
	return fingers
}

// GenerateCommonChords returns the reference list of commonly-used chord
// bitmasks in approximate order of ergonomic preference:
//
//	single finger buttons            12 chords
//	two fingers on adjacent rows     27 chords
//	single finger plus one thumb     48 chords
//	two fingers plus one thumb      108 chords
//
// for a total of 195 chords. The analysis commands use this list to report
// unmapped capacity.
func GenerateCommonChords() []uint32 {
	chords := make([]uint32, 0, 195)
	cols := []string{"L", "M", "R"}

	// Single finger
	for row := 1; row <= 4; row++ {
		for _, col := range cols {
			chords = append(chords, 1<<buttonBits[fmt.Sprintf("%d%s", row, col)])
		}
	}

	// Two fingers, adjacent rows
	for row1 := 1; row1 <= 3; row1++ {
		row2 := row1 + 1
		for _, col1 := range cols {
			for _, col2 := range cols {
				bits := uint32(1)<<buttonBits[fmt.Sprintf("%d%s", row1, col1)] |
					uint32(1)<<buttonBits[fmt.Sprintf("%d%s", row2, col2)]
				chords = append(chords, bits)
			}
		}
	}

	// Single finger plus thumb
	for _, thumb := range []string{"N", "A", "C", "S"} {
		for row := 1; row <= 4; row++ {
			for _, col := range cols {
				bits := uint32(1)<<buttonBits[thumb] |
					uint32(1)<<buttonBits[fmt.Sprintf("%d%s", row, col)]
				chords = append(chords, bits)
			}
		}
	}

	// Two fingers on adjacent rows plus thumb
	for _, thumb := range []string{"N", "A", "C", "S"} {
		for row1 := 1; row1 <= 3; row1++ {
			row2 := row1 + 1
			for _, col1 := range cols {
				for _, col2 := range cols {
					bits := uint32(1)<<buttonBits[thumb] |
						uint32(1)<<buttonBits[fmt.Sprintf("%d%s", row1, col1)] |
						uint32(1)<<buttonBits[fmt.Sprintf("%d%s", row2, col2)]
					chords = append(chords, bits)
				}
			}
		}
	}

	return chords
}

// tutorKeyNames remaps special key names to what the Tutor web app expects.
// Names not listed here pass through lowercased ("<F1>" becomes "f1").
var tutorKeyNames = map[string]string{
	"space":     " ",
	"return":    "enter",
	"backspace": "backspace",
	"tab":       "tab",
	"escape":    "esc",
}

// HIDToTutorKey converts a HID usage code and its modifier word to the key
// string the Tutor expects. Returns ok=false for mouse/system entries,
// multi-character references and codes with no printable form.
func HIDToTutorKey(hidCode uint16, modifier uint16) (string, bool) {
	tag := modifier & 0xFF
	if tag == TagMouse || tag == TagSystem {
		return "", false
	}
	if modifier == ModMulti || modifier == 0xFF02 {
		return "", false
	}

	shifted := modifier == ModShift || modifier == ModShiftAlt

	chars, known := hidMap[hidCode]
	if !known {
		return "", false
	}
	key := chars[0]
	if shifted {
		key = chars[1]
	}

	if strings.HasPrefix(key, "<") && strings.HasSuffix(key, ">") {
		inner := strings.ToLower(key[1 : len(key)-1])
		if name, ok := tutorKeyNames[inner]; ok {
			return name, true
		}
		return inner, true
	}
	return key, true
}
