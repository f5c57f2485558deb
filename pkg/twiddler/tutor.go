// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package twiddler

import (
	"strings"
)

// TutorChord is one chord-to-key mapping in the Tutor JSON layout.
type TutorChord struct {
	Chord string `json:"chord"`
	Key   string `json:"key"`
}

// TutorMacro is one multi-character mapping in the Tutor JSON layout.
type TutorMacro struct {
	Chord    string   `json:"chord"`
	Sequence []string `json:"sequence"`
	Text     string   `json:"text"`
}

// TutorLayout is the JSON document the Tutor web trainer imports.
type TutorLayout struct {
	Chords []TutorChord `json:"chords"`
	Macros []TutorMacro `json:"macros,omitempty"`
}

// HID modifier bits for the two shift keys
const strokeShiftBits = 0x22

// BuildTutorLayout converts a configuration to the Tutor's layout document.
// Mouse and system mappings, macros whose text is entirely special keys and
// keys with no printable form are dropped; the second return value counts
// them. Macros are emitted only when includeMacros is set.
func BuildTutorLayout(cfg *Config, includeThumbs, includeMacros bool) (TutorLayout, int) {
	layout := TutorLayout{Chords: []TutorChord{}}
	skipped := 0

	for _, e := range cfg.Chords {
		notation := TutorNotation(e.Chord, includeThumbs)

		if e.Multi {
			if !includeMacros || len(e.MultiChars) == 0 {
				skipped++
				continue
			}
			var sequence []string
			var text strings.Builder
			for _, stroke := range e.MultiChars {
				shifted := stroke.Modifier&strokeShiftBits != 0
				char := HIDToChar(uint16(stroke.HIDKey), shifted)
				if strings.HasPrefix(char, "<") {
					continue
				}
				sequence = append(sequence, char)
				text.WriteString(char)
			}
			if len(sequence) == 0 {
				skipped++
				continue
			}
			layout.Macros = append(layout.Macros, TutorMacro{
				Chord:    notation,
				Sequence: sequence,
				Text:     text.String(),
			})
			continue
		}

		key, ok := HIDToTutorKey(e.HIDKey, e.Modifier)
		if !ok {
			skipped++
			continue
		}
		layout.Chords = append(layout.Chords, TutorChord{Chord: notation, Key: key})
	}
	return layout, skipped
}
