// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package nchorder

import (
	"fmt"
	"strings"
)

// FormatCommand returns the protocol name for a command opcode.
func FormatCommand(op byte) string {
	switch op {
	case CmdGetVersion:
		return "GET_VERSION"
	case CmdGetTouches:
		return "GET_TOUCHES"
	case CmdGetConfig:
		return "GET_CONFIG"
	case CmdSetConfig:
		return "SET_CONFIG"
	case CmdGetChords:
		return "GET_CHORDS"
	case CmdSetChords:
		return "SET_CHORDS"
	case CmdSaveFlash:
		return "SAVE_FLASH"
	case CmdLoadFlash:
		return "LOAD_FLASH"
	case CmdResetDefault:
		return "RESET_DEFAULT"
	case CmdStreamStart:
		return "STREAM_START"
	case CmdStreamStop:
		return "STREAM_STOP"
	case CmdUploadStart:
		return "UPLOAD_START"
	case CmdUploadData:
		return "UPLOAD_DATA"
	case CmdUploadCommit:
		return "UPLOAD_COMMIT"
	case CmdUploadAbort:
		return "UPLOAD_ABORT"
	default:
		return "UNKNOWN"
	}
}

// FormatResponse names the leading response code of a reply.
func FormatResponse(resp []byte) string {
	if len(resp) == 0 {
		return "(empty)"
	}
	switch resp[0] {
	case RespAck:
		return "ACK"
	case RespNak:
		return "NAK"
	case RespError:
		return "ERROR"
	default:
		return fmt.Sprintf("0x%02X", resp[0])
	}
}

// FormatFrame formats a touch frame into a multi-line human-readable
// string.
func FormatFrame(f *TouchFrame) string {
	timestamp := f.Time.Format("15:04:05.000")

	if d, ok := f.GPIODiagnostics(); ok {
		result := fmt.Sprintf("[%s] GPIO diagnostics\n", timestamp)
		result += fmt.Sprintf("  Callbacks:    %d\n", d.CallbackCount)
		result += fmt.Sprintf("  Raw buttons:  0x%08X\n", d.RawButtons)
		result += fmt.Sprintf("  Port P0:      0x%08X\n", d.RawPort0)
		result += fmt.Sprintf("  Port P1:      0x%08X\n", d.RawPort1)
		result += fmt.Sprintf("  Previous raw: 0x%08X\n", d.PrevRawState)
		result += fmt.Sprintf("  Debounce:     %d\n", d.DebounceCount)
		return result
	}

	result := fmt.Sprintf("[%s] touch frame buttons=0x%05X touches=%d\n", timestamp, f.Buttons, f.TouchCount())
	result += fmt.Sprintf("  Thumb: x=%d y=%d size=%d\n", f.ThumbX, f.ThumbY, f.ThumbSize)
	for i, bar := range f.Bars {
		if len(bar) == 0 {
			result += fmt.Sprintf("  Bar %d: (none)\n", i)
			continue
		}
		parts := make([]string, 0, len(bar))
		for _, t := range bar {
			parts = append(parts, fmt.Sprintf("pos=%d size=%d", t.Pos, t.Size))
		}
		result += fmt.Sprintf("  Bar %d: %s\n", i, strings.Join(parts, "; "))
	}
	return result
}

// FormatFrameLine formats a touch frame as a compact single line for
// continuous monitoring output.
func FormatFrameLine(f *TouchFrame) string {
	if d, ok := f.GPIODiagnostics(); ok {
		return fmt.Sprintf("%s gpio cb=%d raw=0x%08X p0=0x%08X p1=0x%08X deb=%d",
			f.Time.Format("15:04:05.000"), d.CallbackCount, d.RawButtons, d.RawPort0, d.RawPort1, d.DebounceCount)
	}
	return fmt.Sprintf("%s thumb=(%d,%d,%d) touches=[%d,%d,%d] buttons=0x%05X",
		f.Time.Format("15:04:05.000"),
		f.ThumbX, f.ThumbY, f.ThumbSize,
		len(f.Bars[0]), len(f.Bars[1]), len(f.Bars[2]),
		f.Buttons)
}

// FormatSettings formats a settings block with parameter labels and the
// firmware ranges.
func FormatSettings(s DeviceSettings) string {
	var b strings.Builder
	for _, p := range Params {
		fmt.Fprintf(&b, "  %-20s %5d   (range %d-%d, default %d)\n",
			p.Label+":", s.Get(p.ID), p.Min, p.Max, p.Default)
	}
	return b.String()
}
