// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package twiddler

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// specialKeys maps the key names the vendor tuner writes in its CSV export
// to HID usage codes. A lone space is how the tuner writes the space bar,
// so action text must not be trimmed before lookup.
var specialKeys = map[string]uint16{
	"<Enter>": 0x28, "<Return>": 0x28,
	"<Escape>": 0x29, "<Esc>": 0x29,
	"<Backspace>": 0x2A, "<BS>": 0x2A,
	"<Tab>":   0x2B,
	"<Space>": 0x2C, " ": 0x2C,
	"<CapsLock>": 0x39,

	"<F1>": 0x3A, "<F2>": 0x3B, "<F3>": 0x3C, "<F4>": 0x3D,
	"<F5>": 0x3E, "<F6>": 0x3F, "<F7>": 0x40, "<F8>": 0x41,
	"<F9>": 0x42, "<F10>": 0x43, "<F11>": 0x44, "<F12>": 0x45,

	"<PrintScreen>": 0x46,
	"<ScrollLock>":  0x47,
	"<Pause>":       0x48,
	"<Insert>":      0x49,
	"<Home>":        0x4A,
	"<PageUp>":      0x4B,
	"<Delete>":      0x4C,
	"<End>":         0x4D,
	"<PageDown>":    0x4E,
	"<Right>":       0x4F, "<RightArrow>": 0x4F,
	"<Left>": 0x50, "<LeftArrow>": 0x50,
	"<Down>": 0x51, "<DownArrow>": 0x51,
	"<Up>": 0x52, "<UpArrow>": 0x52,
	"<NumLock>": 0x53,
}

var (
	shiftWrapRe = regexp.MustCompile(`^<[RL]Shift>(.+)</[RL]Shift>`)
	angleTagRe  = regexp.MustCompile(`<[^>]+>`)
)

// Thumb column digits in the tuner CSV
var thumbDigits = map[rune]string{'1': "N", '2': "A", '3': "C", '4': "S"}

// parseCSVAction resolves one keyboard action cell (with the "[KB]" prefix
// already removed) to a HID code and shift state. Text that spans several
// keystrokes comes back with multi set; the tuner CSV does not carry the
// macro's keystroke list, only its presence.
func parseCSVAction(action string) (hid uint16, shifted bool, multi bool) {
	if m := shiftWrapRe.FindStringSubmatch(action); m != nil {
		action = m[1]
		shifted = true
	}

	if code, ok := specialKeys[action]; ok {
		return code, shifted, false
	}

	if strings.Contains(action, "<") {
		// Unknown tags. If exactly one plain character remains after
		// stripping them, treat it as that key; otherwise it is a macro.
		stripped := angleTagRe.ReplaceAllString(action, "")
		if chars := []rune(stripped); len(chars) == 1 {
			if code, s, ok := CharToHID(string(chars)); ok {
				return code, s || shifted, false
			}
		}
		return 0, false, true
	}

	switch chars := []rune(action); len(chars) {
	case 0:
		return 0, false, false
	case 1:
		if code, s, ok := CharToHID(string(chars)); ok {
			return code, s || shifted, false
		}
		return 0, false, false
	}
	return 0, false, true
}

// ParseTunerCSV reads a chord list exported by the vendor tuner and builds
// a v7 configuration from its keyboard rows. Mouse and system rows (no
// "[KB]" action prefix) and rows with no buttons are skipped. An empty
// input yields an empty configuration.
func ParseTunerCSV(r io.Reader) (*Config, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return NewConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	// Excel exports lead with a UTF-8 BOM.
	header[0] = strings.TrimPrefix(header[0], "\uFEFF")

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	var have [3]int
	for i, name := range []string{"Thumbs", "Fingers", "Actions"} {
		idx, ok := cols[name]
		if !ok {
			return nil, fmt.Errorf("CSV missing required column %q", name)
		}
		have[i] = idx
	}
	thumbsCol, fingersCol, actionsCol := have[0], have[1], have[2]

	cfg := NewConfig()
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row: %w", err)
		}
		field := func(i int) string {
			if i < len(record) {
				return record[i]
			}
			return ""
		}

		action := field(actionsCol)
		if !strings.HasPrefix(action, "[KB]") {
			continue
		}
		action = action[len("[KB]"):]

		var buttons []string
		for _, ch := range field(thumbsCol) {
			if name, ok := thumbDigits[ch]; ok {
				buttons = append(buttons, name)
			}
		}
		for _, part := range strings.Fields(field(fingersCol)) {
			if len(part) >= 2 &&
				strings.ContainsRune("1234", rune(part[0])) &&
				strings.ContainsRune("LMR", rune(part[1])) {
				buttons = append(buttons, part[:2])
			}
		}
		chord := ButtonsToChord(buttons)
		if chord == 0 {
			continue
		}

		hid, shifted, multi := parseCSVAction(action)
		if multi {
			cfg.Chords = append(cfg.Chords, ChordEntry{
				Chord:    chord,
				Modifier: ModMulti,
				Multi:    true,
			})
			continue
		}
		if hid == 0 {
			continue
		}
		cfg.AddChord(chord, hid, shifted)
	}
	return cfg, nil
}
