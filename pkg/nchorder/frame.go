// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package nchorder

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Touch frame byte offsets. All multi-byte fields are little-endian.
const (
	frameOffSync      = 0
	frameOffThumbX    = 1
	frameOffThumbY    = 3
	frameOffThumbSize = 5
	frameOffBars      = 7                 // 3 bars x 5 slots x (u16 pos, u16 size)
	frameBarStride    = MaxBarTouches * 4 // 20 bytes per bar
	frameOffButtons   = 67
)

// BarSlotEmpty marks an unused sub-touch slot in the wire frame.
const BarSlotEmpty = 0xFFFF

// BarTouch is one active sub-touch on a capacitive bar.
type BarTouch struct {
	Pos  uint16 // position along the bar, 0-3200
	Size uint16 // contact size/pressure
}

// TouchFrame is one decoded telemetry frame.
//
// Bars holds only the active sub-touches (empty slots are filtered during
// decode); the raw slot grid is retained internally for diagnostic frames.
type TouchFrame struct {
	ThumbX    uint16 // thumb stick X, 0-1800
	ThumbY    uint16
	ThumbSize uint16
	Bars      [NumBars][]BarTouch
	Buttons   uint32 // 20 buttons used
	Time      time.Time

	slots [NumBars][MaxBarTouches]BarTouch
}

// DecodeTouchFrame parses a complete 71-byte frame, sync byte included.
func DecodeTouchFrame(data []byte) (TouchFrame, error) {
	if len(data) != FrameSize {
		return TouchFrame{}, fmt.Errorf("touch frame: expected %d bytes, got %d", FrameSize, len(data))
	}
	if data[frameOffSync] != StreamSync {
		return TouchFrame{}, fmt.Errorf("touch frame: invalid sync byte 0x%02X", data[frameOffSync])
	}

	f := TouchFrame{
		ThumbX:    binary.LittleEndian.Uint16(data[frameOffThumbX:]),
		ThumbY:    binary.LittleEndian.Uint16(data[frameOffThumbY:]),
		ThumbSize: binary.LittleEndian.Uint16(data[frameOffThumbSize:]),
		Buttons:   binary.LittleEndian.Uint32(data[frameOffButtons:]),
		Time:      time.Now(),
	}

	for bar := 0; bar < NumBars; bar++ {
		for slot := 0; slot < MaxBarTouches; slot++ {
			off := frameOffBars + bar*frameBarStride + slot*4
			t := BarTouch{
				Pos:  binary.LittleEndian.Uint16(data[off:]),
				Size: binary.LittleEndian.Uint16(data[off+2:]),
			}
			f.slots[bar][slot] = t
			if t.Pos != BarSlotEmpty {
				f.Bars[bar] = append(f.Bars[bar], t)
			}
		}
	}

	return f, nil
}

// IsDiagnostic reports whether the frame carries GPIO driver diagnostics
// instead of touch data.
func (f *TouchFrame) IsDiagnostic() bool {
	return f.ThumbX == ThumbXDiagnostic
}

// GPIODiagnostics holds the debug counters a diagnostic firmware build
// packs into the touch frame layout.
type GPIODiagnostics struct {
	CallbackCount uint16 // button interrupt callbacks observed
	RawButtons    uint32 // current raw button state, before debounce
	RawPort0      uint32 // NRF P0->IN register
	RawPort1      uint32 // NRF P1->IN register
	PrevRawState  uint32 // previous raw button state
	DebounceCount uint16
}

// GPIODiagnostics reinterprets the raw frame slots as debug counters.
// The second return is false for ordinary touch frames.
func (f *TouchFrame) GPIODiagnostics() (GPIODiagnostics, bool) {
	if !f.IsDiagnostic() {
		return GPIODiagnostics{}, false
	}

	// Slot assignments follow the firmware's diagnostic packing:
	// bar0[0] = P0 register, bar0[1] = raw button high word + debounce,
	// bar1[0] = P1 register, bar1[1] = previous raw state.
	d := GPIODiagnostics{
		CallbackCount: f.ThumbY,
		RawButtons:    uint32(f.slots[0][1].Pos)<<16 | uint32(f.ThumbSize),
		RawPort0:      uint32(f.slots[0][0].Size)<<16 | uint32(f.slots[0][0].Pos),
		RawPort1:      uint32(f.slots[1][0].Size)<<16 | uint32(f.slots[1][0].Pos),
		PrevRawState:  uint32(f.slots[1][1].Size)<<16 | uint32(f.slots[1][1].Pos),
		DebounceCount: f.slots[0][1].Size,
	}
	return d, true
}

// TouchCount returns the number of active sub-touches across all bars.
func (f *TouchFrame) TouchCount() int {
	n := 0
	for _, bar := range f.Bars {
		n += len(bar)
	}
	return n
}
