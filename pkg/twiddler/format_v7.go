// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package twiddler

import (
	"encoding/binary"
	"fmt"
)

// v7 file layout. Offsets not listed are zero in every file we have seen.
const (
	v7HeaderSize = 128
	v7RecordSize = 8

	v7OffMarker      = 4    // uint16, v7MarkerTuner or v7MarkerFirmware
	v7OffChordCount  = 8    // uint16
	v7OffSleep       = 10   // uint16, seconds
	v7OffRepeatDelay = 12   // uint16, milliseconds
	v7OffMouseLeft   = 0x40 // uint32 action index
	v7OffMouseMiddle = 0x44
	v7OffMouseRight  = 0x48
	v7OffMouseExtra  = 0x4C // uint32, always 2 in device dumps
	v7OffMouseAccel  = 0x50 // uint8
	v7OffIndexTable  = 0x60 // 32 bytes of macro slot numbers
	v7IndexTableLen  = 32
)

// parseV7 decodes the T4 format. Macro strings live in a separate flash
// region that is not part of the config block, so multi entries come back
// with the Multi flag set but no MultiChars.
func parseV7(data []byte) (*Config, error) {
	if len(data) < v7HeaderSize {
		return nil, fmt.Errorf("v7 config too short: %d bytes", len(data))
	}
	marker := binary.LittleEndian.Uint16(data[v7OffMarker:])
	if marker != v7MarkerTuner && marker != v7MarkerFirmware {
		return nil, fmt.Errorf("bad v7 header marker 0x%04X", marker)
	}

	cfg := NewConfig()
	cfg.Version = Version7
	chordCount := int(binary.LittleEndian.Uint16(data[v7OffChordCount:]))
	cfg.SleepTimeout = binary.LittleEndian.Uint16(data[v7OffSleep:])
	cfg.KeyRepeatDelay = binary.LittleEndian.Uint16(data[v7OffRepeatDelay:])
	cfg.MouseLeftAction = uint16(binary.LittleEndian.Uint32(data[v7OffMouseLeft:]))
	cfg.MouseMiddleAction = uint16(binary.LittleEndian.Uint32(data[v7OffMouseMiddle:]))
	cfg.MouseRightAction = uint16(binary.LittleEndian.Uint32(data[v7OffMouseRight:]))
	cfg.MouseAccel = data[v7OffMouseAccel]

	offset := v7HeaderSize
	for i := 0; i < chordCount; i++ {
		if offset+v7RecordSize > len(data) {
			break
		}
		entry := ChordEntry{
			Chord:    binary.LittleEndian.Uint32(data[offset:]),
			Modifier: binary.LittleEndian.Uint16(data[offset+4:]),
			HIDKey:   binary.LittleEndian.Uint16(data[offset+6:]),
		}
		offset += v7RecordSize

		switch entry.Modifier {
		case ModMulti:
			entry.Multi = true
		case ModShift, ModShiftAlt:
			entry.Shifted = true
		}
		cfg.Chords = append(cfg.Chords, entry)
	}
	return cfg, nil
}

// encodeModifier picks the modifier word to write for an entry. Words other
// than the canonical plain/shift/multi forms (Ctrl or Alt combinations, GUI
// keys) are passed through untouched so a parse/encode cycle preserves them.
func encodeModifier(e ChordEntry) uint16 {
	switch e.Modifier {
	case 0, ModPlain, ModShift, ModMulti:
	default:
		return e.Modifier
	}
	if e.Multi {
		return ModMulti
	}
	if e.Shifted {
		return ModShift
	}
	return ModPlain
}

// EncodeV7 serializes a configuration in the T4 format, the only one the
// device accepts for upload. Fails only when the chord table cannot fit the
// 16-bit count field.
func EncodeV7(cfg *Config) ([]byte, error) {
	if len(cfg.Chords) > 0xFFFF {
		return nil, fmt.Errorf("too many chords for v7: %d", len(cfg.Chords))
	}

	buf := make([]byte, v7HeaderSize+len(cfg.Chords)*v7RecordSize)
	binary.LittleEndian.PutUint16(buf[v7OffMarker:], v7MarkerFirmware)
	binary.LittleEndian.PutUint16(buf[6:], 0x0020) // constant in device dumps
	binary.LittleEndian.PutUint16(buf[v7OffChordCount:], uint16(len(cfg.Chords)))
	binary.LittleEndian.PutUint16(buf[v7OffSleep:], cfg.SleepTimeout)
	binary.LittleEndian.PutUint16(buf[v7OffRepeatDelay:], cfg.KeyRepeatDelay)
	binary.LittleEndian.PutUint32(buf[v7OffMouseLeft:], uint32(cfg.MouseLeftAction))
	binary.LittleEndian.PutUint32(buf[v7OffMouseMiddle:], uint32(cfg.MouseMiddleAction))
	binary.LittleEndian.PutUint32(buf[v7OffMouseRight:], uint32(cfg.MouseRightAction))
	binary.LittleEndian.PutUint32(buf[v7OffMouseExtra:], 2)
	buf[v7OffMouseAccel] = cfg.MouseAccel

	// Trailing bytes after the accel value, fixed in every firmware dump.
	buf[0x51] = 0x0B
	buf[0x52] = 0x09
	buf[0x53] = 0x09

	slots := len(cfg.Chords)
	if slots > v7IndexTableLen {
		slots = v7IndexTableLen
	}
	for i := 0; i < slots; i++ {
		buf[v7OffIndexTable+i] = byte(i)
	}

	offset := v7HeaderSize
	for _, e := range cfg.Chords {
		binary.LittleEndian.PutUint32(buf[offset:], e.Chord)
		binary.LittleEndian.PutUint16(buf[offset+4:], encodeModifier(e))
		binary.LittleEndian.PutUint16(buf[offset+6:], e.HIDKey)
		offset += v7RecordSize
	}
	return buf, nil
}
