// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package twiddler

import (
	"sort"
)

// Conflict is a pair of entries that share a 16-bit match key. The firmware
// compares only those bits when resolving a chord, so the duplicate entry
// can never fire.
type Conflict struct {
	Original  ChordEntry
	Duplicate ChordEntry
}

// ChangedChord records one mask that maps to different outputs in two
// configurations.
type ChangedChord struct {
	Mask uint16
	Old  ChordEntry
	New  ChordEntry
}

// SettingChange records one behaviour setting that differs between two
// configurations.
type SettingChange struct {
	Name string
	Old  int
	New  int
}

// DiffResult is the outcome of comparing two configurations.
type DiffResult struct {
	Added    []ChordEntry
	Removed  []ChordEntry
	Changed  []ChangedChord
	Settings []SettingChange
}

// Empty reports whether the two configurations were equivalent.
func (d DiffResult) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 &&
		len(d.Changed) == 0 && len(d.Settings) == 0
}

// FindConflicts returns every entry whose match key already appeared
// earlier in the chord table, paired with the first occurrence. Three
// entries on one mask yield two conflicts, both naming the first entry as
// the original.
func (c *Config) FindConflicts() []Conflict {
	seen := make(map[uint16]ChordEntry, len(c.Chords))
	var conflicts []Conflict
	for _, e := range c.Chords {
		key := e.MatchKey()
		if orig, ok := seen[key]; ok {
			conflicts = append(conflicts, Conflict{Original: orig, Duplicate: e})
		} else {
			seen[key] = e
		}
	}
	return conflicts
}

// chordTable indexes entries by match key for comparison. Later duplicates
// overwrite earlier ones.
func chordTable(entries []ChordEntry) map[uint16]ChordEntry {
	m := make(map[uint16]ChordEntry, len(entries))
	for _, e := range entries {
		m[e.MatchKey()] = e
	}
	return m
}

// Diff compares c against other. Added entries exist only in other,
// removed entries only in c, and changed entries share a mask but produce
// a different output. Results are sorted by mask; setting changes are
// reported in a fixed order.
func (c *Config) Diff(other *Config) DiffResult {
	mine := chordTable(c.Chords)
	theirs := chordTable(other.Chords)

	var result DiffResult
	for mask, e := range theirs {
		if _, ok := mine[mask]; !ok {
			result.Added = append(result.Added, e)
		}
	}
	for mask, e := range mine {
		if _, ok := theirs[mask]; !ok {
			result.Removed = append(result.Removed, e)
		}
	}
	for mask, before := range mine {
		after, ok := theirs[mask]
		if !ok {
			continue
		}
		if before.HIDKey != after.HIDKey || before.Modifier != after.Modifier {
			result.Changed = append(result.Changed, ChangedChord{
				Mask: mask,
				Old:  before,
				New:  after,
			})
		}
	}

	sort.Slice(result.Added, func(i, j int) bool {
		return result.Added[i].MatchKey() < result.Added[j].MatchKey()
	})
	sort.Slice(result.Removed, func(i, j int) bool {
		return result.Removed[i].MatchKey() < result.Removed[j].MatchKey()
	})
	sort.Slice(result.Changed, func(i, j int) bool {
		return result.Changed[i].Mask < result.Changed[j].Mask
	})

	if c.SleepTimeout != other.SleepTimeout {
		result.Settings = append(result.Settings, SettingChange{
			Name: "sleep_timeout", Old: int(c.SleepTimeout), New: int(other.SleepTimeout),
		})
	}
	if c.KeyRepeatDelay != other.KeyRepeatDelay {
		result.Settings = append(result.Settings, SettingChange{
			Name: "key_repeat_delay", Old: int(c.KeyRepeatDelay), New: int(other.KeyRepeatDelay),
		})
	}
	if c.MouseAccel != other.MouseAccel {
		result.Settings = append(result.Settings, SettingChange{
			Name: "mouse_accel", Old: int(c.MouseAccel), New: int(other.MouseAccel),
		})
	}
	return result
}

// FindUnmapped returns the reference chords that have no mapping in the
// configuration, preserving reference order. The config's masks are
// normalized to their low 16 bits; reference masks are looked up as given.
func (c *Config) FindUnmapped(reference []uint32) []uint32 {
	mapped := make(map[uint32]bool, len(c.Chords))
	for _, e := range c.Chords {
		mapped[e.Chord&0xFFFF] = true
	}

	var unmapped []uint32
	for _, chord := range reference {
		if !mapped[chord] {
			unmapped = append(unmapped, chord)
		}
	}
	return unmapped
}
