// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package twiddler

import (
	"strings"
	"testing"
)

func quirksOfType(quirks []Quirk, qt QuirkType) []Quirk {
	var out []Quirk
	for _, q := range quirks {
		if q.Type == qt {
			out = append(out, q)
		}
	}
	return out
}

// ============================================================
// Bluetooth Erase Gesture Tests
// ============================================================

func TestCheckQuirks_BluetoothErase(t *testing.T) {
	cfg := NewConfig()
	cfg.AddChord(0x2001, 0x27, false) // N+4L -> '0'

	quirks := quirksOfType(CheckQuirks(cfg), QuirkBluetoothErase)
	if len(quirks) != 1 {
		t.Fatalf("expected 1 bluetooth-erase quirk, got %d", len(quirks))
	}
	if !strings.Contains(quirks[0].Message, "N+4L") {
		t.Errorf("message should name the chord: %s", quirks[0].Message)
	}
	if quirks[0].Details["hid_key"] != uint16(0x27) {
		t.Errorf("details wrong: %+v", quirks[0].Details)
	}
}

func TestCheckQuirks_BluetoothErase_OtherKey(t *testing.T) {
	// The erase gesture only trips when the mapped output is '0'.
	cfg := NewConfig()
	cfg.AddChord(0x2001, 0x04, false) // N+4L -> a

	if quirks := quirksOfType(CheckQuirks(cfg), QuirkBluetoothErase); len(quirks) != 0 {
		t.Errorf("expected no quirk for a non-'0' mapping, got %+v", quirks)
	}
}

func TestCheckQuirks_BluetoothErase_OtherChord(t *testing.T) {
	cfg := NewConfig()
	cfg.AddChord(0x0002, 0x27, false) // 1L -> '0'

	if quirks := quirksOfType(CheckQuirks(cfg), QuirkBluetoothErase); len(quirks) != 0 {
		t.Errorf("expected no quirk for '0' on another chord, got %+v", quirks)
	}
}

func TestCheckQuirks_BluetoothErase_HighBits(t *testing.T) {
	// Match is on the low 16 bits, like the firmware's own lookup.
	cfg := NewConfig()
	cfg.Chords = append(cfg.Chords, ChordEntry{
		Chord: 0x00012001, HIDKey: 0x27, Modifier: ModPlain,
	})

	if quirks := quirksOfType(CheckQuirks(cfg), QuirkBluetoothErase); len(quirks) != 1 {
		t.Errorf("expected the quirk despite high mask bits, got %+v", quirks)
	}
}

// ============================================================
// System Shadow Tests
// ============================================================

func TestCheckQuirks_SystemShadow(t *testing.T) {
	cfg := NewConfig()
	cfg.Chords = append(cfg.Chords,
		ChordEntry{Chord: 0x0004, HIDKey: 0x00, Modifier: 0x0001}, // mouse action
		ChordEntry{Chord: 0x0004, HIDKey: 0x05, Modifier: ModPlain},
	)

	quirks := quirksOfType(CheckQuirks(cfg), QuirkSystemShadow)
	if len(quirks) != 1 {
		t.Fatalf("expected 1 system-shadow quirk, got %d", len(quirks))
	}
	if quirks[0].Details["system_modifier"] != uint16(0x0001) {
		t.Errorf("details wrong: %+v", quirks[0].Details)
	}
}

func TestCheckQuirks_SystemShadow_SystemFunction(t *testing.T) {
	cfg := NewConfig()
	cfg.Chords = append(cfg.Chords,
		ChordEntry{Chord: 0x0008, HIDKey: 0x06, Modifier: ModPlain},
		ChordEntry{Chord: 0x0008, HIDKey: 0x00, Modifier: 0x0007}, // system function
	)

	// Order in the file does not matter; the firmware checks system
	// actions first either way.
	if quirks := quirksOfType(CheckQuirks(cfg), QuirkSystemShadow); len(quirks) != 1 {
		t.Errorf("expected 1 quirk for a system function shadow, got %+v", quirks)
	}
}

func TestCheckQuirks_SystemShadow_DifferentMasks(t *testing.T) {
	cfg := NewConfig()
	cfg.Chords = append(cfg.Chords,
		ChordEntry{Chord: 0x0004, HIDKey: 0x00, Modifier: 0x0001},
		ChordEntry{Chord: 0x0008, HIDKey: 0x05, Modifier: ModPlain},
	)

	if quirks := quirksOfType(CheckQuirks(cfg), QuirkSystemShadow); len(quirks) != 0 {
		t.Errorf("expected no quirk for distinct masks, got %+v", quirks)
	}
}

func TestCheckQuirks_Clean(t *testing.T) {
	cfg := NewConfig()
	cfg.AddChord(0x0002, 0x04, false)
	cfg.AddChord(0x0004, 0x05, true)
	cfg.Chords = append(cfg.Chords, ChordEntry{Chord: 0x0010, HIDKey: 0x00, Modifier: 0x0001})

	if quirks := CheckQuirks(cfg); len(quirks) != 0 {
		t.Errorf("expected no quirks, got %+v", quirks)
	}
}

func TestQuirk_String(t *testing.T) {
	q := Quirk{Type: QuirkSystemShadow, Message: "chord 1M is shadowed"}
	s := q.String()
	if !strings.Contains(s, "system-shadow") || !strings.Contains(s, "shadowed") {
		t.Errorf("unexpected format: %q", s)
	}
}
