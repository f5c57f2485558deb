// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package twiddler

import (
	"encoding/binary"
	"fmt"
)

// Header layout shared by the v4 and v5 formats. v5 appends four extra
// bytes of feature flags before the chord records.
const (
	legacyOffVersion     = 0
	legacyOffOptions     = 1
	legacyOffChordCount  = 2
	legacyOffSleep       = 4
	legacyOffMouseLeft   = 6
	legacyOffMouseMiddle = 8
	legacyOffMouseRight  = 10
	legacyOffMouseAccel  = 12
	legacyOffRepeatDelay = 13

	v4HeaderSize = 14
	v5HeaderSize = 18
	v5OffFlagsB  = 14
	v5OffFlagsC  = 15

	legacyRecordSize = 4
)

// Bits in the legacy options byte
const (
	optKeyRepeat         = 0x01
	optDirectKey         = 0x02
	optJoystickLeftClick = 0x04
	optDisableBluetooth  = 0x08
	optStickyNum         = 0x10
	optStickyShift       = 0x80
)

// Bits in the v5 flagsC byte
const flagHapticFeedback = 0x01

// Legacy modifier byte values. 0xFF marks a multi-character reference;
// otherwise the byte is a plain HID modifier bitmap with shift at 0x02.
const (
	legacyModMulti = 0xFF
	legacyModShift = 0x02
)

// parseLegacyHeader fills cfg from the 14 header bytes common to v4 and v5
// and returns the declared chord count. The caller has already checked the
// length.
func parseLegacyHeader(cfg *Config, data []byte) int {
	options := data[legacyOffOptions]
	cfg.KeyRepeat = options&optKeyRepeat != 0
	cfg.DirectKey = options&optDirectKey != 0
	cfg.JoystickLeftClick = options&optJoystickLeftClick != 0
	cfg.DisableBluetooth = options&optDisableBluetooth != 0
	cfg.StickyNum = options&optStickyNum != 0
	cfg.StickyShift = options&optStickyShift != 0

	cfg.SleepTimeout = binary.LittleEndian.Uint16(data[legacyOffSleep:])
	cfg.MouseLeftAction = binary.LittleEndian.Uint16(data[legacyOffMouseLeft:])
	cfg.MouseMiddleAction = binary.LittleEndian.Uint16(data[legacyOffMouseMiddle:])
	cfg.MouseRightAction = binary.LittleEndian.Uint16(data[legacyOffMouseRight:])
	cfg.MouseAccel = data[legacyOffMouseAccel]
	cfg.KeyRepeatDelay = uint16(data[legacyOffRepeatDelay])

	return int(binary.LittleEndian.Uint16(data[legacyOffChordCount:]))
}

// parseV4 decodes the Twiddler 2.1 format. Records past the end of the
// data are dropped rather than treated as an error; the vendor tuner pads
// some files short.
func parseV4(data []byte) (*Config, error) {
	if len(data) < v4HeaderSize {
		return nil, fmt.Errorf("v4 config too short: %d bytes", len(data))
	}

	cfg := NewConfig()
	cfg.Version = Version4
	chordCount := parseLegacyHeader(cfg, data)

	offset := v4HeaderSize
	for i := 0; i < chordCount; i++ {
		if offset+legacyRecordSize > len(data) {
			break
		}
		mask := binary.LittleEndian.Uint16(data[offset:])
		modifier := data[offset+2]
		key := data[offset+3]
		offset += legacyRecordSize

		// v4 has no string table, so macro references cannot be resolved.
		if modifier == legacyModMulti {
			continue
		}

		cfg.Chords = append(cfg.Chords, ChordEntry{
			Chord:    uint32(mask),
			HIDKey:   uint16(key),
			Modifier: uint16(modifier),
			Shifted:  modifier&legacyModShift != 0,
		})
	}
	return cfg, nil
}
