// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package twiddler

import (
	"encoding/binary"
	"fmt"
)

// parseV5 decodes the T3 format: the v4 layout plus four extra flag bytes
// and a string table for multi-character macros.
//
// A multi record stores a slot number in its key byte. After the records
// comes a table of uint32 file offsets, one per slot; each offset points at
// a string: a uint16 byte length (which counts itself) followed by
// (length/2 - 1) modifier/key pairs. Files in the wild ship truncated or
// dangling tables, so every table access is bounds-checked and a reference
// that cannot be resolved yields an entry with an empty macro instead of an
// error.
func parseV5(data []byte) (*Config, error) {
	if len(data) < v5HeaderSize {
		return nil, fmt.Errorf("v5 config too short: %d bytes", len(data))
	}

	cfg := NewConfig()
	cfg.Version = Version5
	chordCount := parseLegacyHeader(cfg, data)
	cfg.HapticFeedback = data[v5OffFlagsC]&flagHapticFeedback != 0

	type macroRef struct {
		entry int // index into cfg.Chords
		slot  int // string table slot
	}
	var refs []macroRef
	maxSlot := -1

	offset := v5HeaderSize
	for i := 0; i < chordCount; i++ {
		if offset+legacyRecordSize > len(data) {
			break
		}
		mask := binary.LittleEndian.Uint16(data[offset:])
		modifier := data[offset+2]
		key := data[offset+3]
		offset += legacyRecordSize

		entry := ChordEntry{
			Chord:    uint32(mask),
			HIDKey:   uint16(key),
			Modifier: uint16(modifier),
		}
		if modifier == legacyModMulti {
			entry.Multi = true
			slot := int(key)
			refs = append(refs, macroRef{entry: len(cfg.Chords), slot: slot})
			if slot > maxSlot {
				maxSlot = slot
			}
		} else {
			entry.Shifted = modifier&legacyModShift != 0
		}
		cfg.Chords = append(cfg.Chords, entry)
	}

	if maxSlot < 0 {
		return cfg, nil
	}

	tableBase := v5HeaderSize + chordCount*legacyRecordSize
	for _, ref := range refs {
		pos := tableBase + ref.slot*4
		if pos < 0 || pos+4 > len(data) {
			continue
		}
		strOff := binary.LittleEndian.Uint32(data[pos:])
		if uint64(strOff)+2 > uint64(len(data)) {
			continue
		}
		strLen := int(binary.LittleEndian.Uint16(data[strOff:]))
		numPairs := strLen/2 - 1

		var strokes []KeyStroke
		for p := 0; p < numPairs; p++ {
			pairPos := int(strOff) + 2 + p*2
			if pairPos+2 > len(data) {
				break
			}
			strokes = append(strokes, KeyStroke{
				Modifier: data[pairPos],
				HIDKey:   data[pairPos+1],
			})
		}
		if len(strokes) > 0 {
			cfg.Chords[ref.entry].MultiChars = strokes
		}
	}
	return cfg, nil
}
