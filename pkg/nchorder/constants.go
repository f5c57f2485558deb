// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

// Package nchorder implements the host side of the nChorder CDC control
// protocol.
//
// The nChorder keyboard exposes a vendor CDC ACM interface alongside its HID
// endpoints. Commands are single opcode bytes followed by a small
// little-endian payload; the device answers with at most 64 bytes whose
// first byte is an ACK/NAK/error code or the start of typed reply data.
// Touch telemetry is a continuous stream of fixed-size frames, each
// beginning with a sync byte.
//
// This package provides the transport abstraction, the command/response
// engine, the frame-synchronizing stream reader, and the chunked
// configuration upload sequence.
package nchorder

import "time"

// Command opcodes (host → device)
const (
	CmdGetVersion   = 0x01
	CmdGetTouches   = 0x02
	CmdGetConfig    = 0x03
	CmdSetConfig    = 0x04
	CmdGetChords    = 0x05
	CmdSetChords    = 0x06
	CmdSaveFlash    = 0x07
	CmdLoadFlash    = 0x08
	CmdResetDefault = 0x09
	CmdStreamStart  = 0x10
	CmdStreamStop   = 0x11
	CmdUploadStart  = 0x12
	CmdUploadData   = 0x13
	CmdUploadCommit = 0x14
	CmdUploadAbort  = 0x15
)

// Response codes (device → host, first byte of a reply)
const (
	RespAck   = 0x06
	RespNak   = 0x15
	RespError = 0xFF
)

// Param identifies a runtime configuration parameter for
// CmdGetConfig/CmdSetConfig.
type Param uint8

// Runtime configuration parameter IDs
const (
	ParamThresholdPress    Param = 0x01
	ParamThresholdRelease  Param = 0x02
	ParamDebounceMs        Param = 0x03
	ParamPollRateMs        Param = 0x04
	ParamMouseSpeed        Param = 0x05
	ParamMouseAccel        Param = 0x06
	ParamVolumeSensitivity Param = 0x07
)

// ParamInfo describes one runtime parameter: its wire ID, a stable name for
// CLI use, and the value range the firmware accepts.
type ParamInfo struct {
	ID      Param
	Name    string
	Label   string
	Min     uint16
	Max     uint16
	Default uint16
}

// Params lists all runtime parameters in wire-ID order. The ranges and
// defaults mirror the firmware's config validation table.
var Params = []ParamInfo{
	{ParamThresholdPress, "threshold-press", "Press Threshold", 100, 1000, 500},
	{ParamThresholdRelease, "threshold-release", "Release Threshold", 50, 500, 250},
	{ParamDebounceMs, "debounce-ms", "Debounce (ms)", 10, 100, 30},
	{ParamPollRateMs, "poll-rate-ms", "Poll Rate (ms)", 5, 50, 15},
	{ParamMouseSpeed, "mouse-speed", "Mouse Speed", 1, 20, 10},
	{ParamMouseAccel, "mouse-accel", "Mouse Accel", 0, 10, 3},
	{ParamVolumeSensitivity, "volume-sensitivity", "Volume Sensitivity", 1, 10, 5},
}

// ParamByName looks up a parameter by its CLI name. Returns nil if the name
// is unknown.
func ParamByName(name string) *ParamInfo {
	for i := range Params {
		if Params[i].Name == name {
			return &Params[i]
		}
	}
	return nil
}

// Touch stream framing
const (
	StreamSync    = 0xAA // first byte of every touch frame
	FrameSize     = 71   // sync + thumb (3x u16) + 15 bar slots (2x u16 each) + buttons (u32)
	MaxBarTouches = 5    // sub-touch slots reported per bar
	NumBars       = 3
)

// Stream rate bounds accepted by CmdStreamStart (frames per second)
const (
	MinStreamRate = 1
	MaxStreamRate = 100
)

// USB identification of the nChorder CDC interface
const (
	USBVendorID  = 0x1915
	USBProductID = 0x520F
)

// DefaultBaudRate is a courtesy setting for USB/serial bridges; the CDC
// interface itself ignores the baud rate.
const DefaultBaudRate = 115200

// Reply and upload size limits.
//
// The firmware's CDC endpoint uses 64-byte TX/RX buffers, so no reply
// exceeds 64 bytes and an UPLOAD_DATA payload must leave room for the
// opcode within one 64-byte frame. The upload accumulator on the device is
// 4096 bytes.
const (
	MaxResponseSize  = 64
	MaxUploadSize    = 4096
	DefaultChunkSize = 60
	MaxChunkSize     = 63
)

// Timeouts
const (
	DefaultTimeout = 500 * time.Millisecond // interactive command replies
	FlashTimeout   = 6 * time.Second        // SAVE_FLASH: FDS garbage collection is slow
	ProbeTimeout   = 300 * time.Millisecond // liveness probe during discovery
)

// ThumbXDiagnostic marks a frame that carries GPIO driver diagnostics
// instead of touch data. The firmware reuses the frame layout for debug
// counters when the diagnostic build flag is set; ThumbX is an impossible
// touch coordinate in normal operation.
const ThumbXDiagnostic = 0x1234
