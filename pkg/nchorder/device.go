// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package nchorder

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"
)

// ErrNoResponse is returned when the device does not answer a command
// within the timeout. It is an outcome, not a fault: callers decide
// whether to retry.
var ErrNoResponse = fmt.Errorf("no response from device")

// ErrNak is returned when the device actively rejects a command.
var ErrNak = fmt.Errorf("device rejected command (NAK)")

// DeviceVersion is the firmware/hardware revision reported by GET_VERSION.
type DeviceVersion struct {
	Major uint8
	Minor uint8
	HWRev uint8
}

func (v DeviceVersion) String() string {
	return fmt.Sprintf("v%d.%d (hw rev %d)", v.Major, v.Minor, v.HWRev)
}

// DeviceSettings is the runtime configuration block reported by GET_CONFIG:
// seven little-endian uint16 values in parameter-ID order.
type DeviceSettings struct {
	ThresholdPress    uint16
	ThresholdRelease  uint16
	DebounceMs        uint16
	PollRateMs        uint16
	MouseSpeed        uint16
	MouseAccel        uint16
	VolumeSensitivity uint16
}

// DefaultSettings returns the firmware defaults.
func DefaultSettings() DeviceSettings {
	return DeviceSettings{
		ThresholdPress:    500,
		ThresholdRelease:  250,
		DebounceMs:        30,
		PollRateMs:        15,
		MouseSpeed:        10,
		MouseAccel:        3,
		VolumeSensitivity: 5,
	}
}

// Get returns the value of one parameter by wire ID.
func (s DeviceSettings) Get(id Param) uint16 {
	switch id {
	case ParamThresholdPress:
		return s.ThresholdPress
	case ParamThresholdRelease:
		return s.ThresholdRelease
	case ParamDebounceMs:
		return s.DebounceMs
	case ParamPollRateMs:
		return s.PollRateMs
	case ParamMouseSpeed:
		return s.MouseSpeed
	case ParamMouseAccel:
		return s.MouseAccel
	case ParamVolumeSensitivity:
		return s.VolumeSensitivity
	}
	return 0
}

func decodeSettings(data []byte) (DeviceSettings, error) {
	if len(data) < 14 {
		return DeviceSettings{}, fmt.Errorf("settings reply: expected 14 bytes, got %d", len(data))
	}
	return DeviceSettings{
		ThresholdPress:    binary.LittleEndian.Uint16(data[0:]),
		ThresholdRelease:  binary.LittleEndian.Uint16(data[2:]),
		DebounceMs:        binary.LittleEndian.Uint16(data[4:]),
		PollRateMs:        binary.LittleEndian.Uint16(data[6:]),
		MouseSpeed:        binary.LittleEndian.Uint16(data[8:]),
		MouseAccel:        binary.LittleEndian.Uint16(data[10:]),
		VolumeSensitivity: binary.LittleEndian.Uint16(data[12:]),
	}, nil
}

// Device is the command/response engine: one outstanding request at a
// time, stale input discarded before each write, one bounded read for the
// reply.
//
// Device methods and an active Streamer must not use the transport
// concurrently. The discipline is: stop the stream, run one-shot commands,
// restart the stream.
type Device struct {
	mu      sync.Mutex
	t       Transport
	timeout time.Duration
}

// NewDevice wraps an open transport.
func NewDevice(t Transport) *Device {
	return &Device{t: t, timeout: DefaultTimeout}
}

// SetTimeout changes the reply timeout for interactive commands.
// SAVE_FLASH keeps its own elevated timeout.
func (d *Device) SetTimeout(timeout time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.timeout = timeout
}

// Close closes the underlying transport.
func (d *Device) Close() error {
	return d.t.Close()
}

// Send issues a raw command and returns the reply bytes (up to 64).
// A timeout, empty read, or I/O failure yields ErrNoResponse.
func (d *Device) Send(op byte, payload []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transact(op, payload, d.timeout, 1)
}

// transact writes one command and reads the reply. Reads accumulate until
// wantLen bytes arrived, a read times out, or the buffer cap is reached.
// wantLen is 1 for ordinary commands (first burst is the whole reply);
// GET_TOUCHES passes the frame size because a 71-byte frame spans two
// 64-byte CDC transfers.
func (d *Device) transact(op byte, payload []byte, timeout time.Duration, wantLen int) ([]byte, error) {
	if err := d.t.DiscardInput(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoResponse, err)
	}

	cmd := make([]byte, 0, 1+len(payload))
	cmd = append(cmd, op)
	cmd = append(cmd, payload...)
	if _, err := d.t.Write(cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoResponse, err)
	}

	if err := d.t.SetReadTimeout(timeout); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoResponse, err)
	}

	bufSize := MaxResponseSize
	if wantLen > bufSize {
		bufSize = wantLen
	}
	buf := make([]byte, bufSize)
	total := 0
	for total < wantLen {
		n, err := d.t.Read(buf[total:])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoResponse, err)
		}
		if n == 0 {
			break // read timeout
		}
		total += n
	}
	if total == 0 {
		return nil, ErrNoResponse
	}
	return buf[:total], nil
}

// checkAck validates a single-byte ACK/NAK reply.
func checkAck(resp []byte) error {
	if len(resp) == 0 {
		return ErrNoResponse
	}
	switch resp[0] {
	case RespAck:
		return nil
	case RespNak:
		return ErrNak
	default:
		return fmt.Errorf("unexpected response 0x%02X", resp[0])
	}
}

// Version queries the firmware version and hardware revision.
func (d *Device) Version() (DeviceVersion, error) {
	resp, err := d.Send(CmdGetVersion, nil)
	if err != nil {
		return DeviceVersion{}, err
	}
	if len(resp) != 3 {
		return DeviceVersion{}, fmt.Errorf("version reply: expected 3 bytes, got %d", len(resp))
	}
	return DeviceVersion{Major: resp[0], Minor: resp[1], HWRev: resp[2]}, nil
}

// Settings queries the current runtime configuration.
func (d *Device) Settings() (DeviceSettings, error) {
	resp, err := d.Send(CmdGetConfig, nil)
	if err != nil {
		return DeviceSettings{}, err
	}
	return decodeSettings(resp)
}

// SetParam sets one runtime parameter. The change takes effect immediately
// but is lost on power cycle unless followed by SaveFlash.
func (d *Device) SetParam(id Param, value uint16) error {
	payload := make([]byte, 3)
	payload[0] = byte(id)
	binary.LittleEndian.PutUint16(payload[1:], value)
	resp, err := d.Send(CmdSetConfig, payload)
	if err != nil {
		return err
	}
	return checkAck(resp)
}

// SetThresholdPress sets the touch press threshold (100-1000).
func (d *Device) SetThresholdPress(value uint16) error {
	return d.SetParam(ParamThresholdPress, value)
}

// SetThresholdRelease sets the touch release threshold (50-500).
func (d *Device) SetThresholdRelease(value uint16) error {
	return d.SetParam(ParamThresholdRelease, value)
}

// SetDebounce sets the button debounce time in ms (10-100).
func (d *Device) SetDebounce(value uint16) error {
	return d.SetParam(ParamDebounceMs, value)
}

// SetPollRate sets the touch poll interval in ms (5-50).
func (d *Device) SetPollRate(value uint16) error {
	return d.SetParam(ParamPollRateMs, value)
}

// SetMouseSpeed sets the pointer speed (1-20).
func (d *Device) SetMouseSpeed(value uint16) error {
	return d.SetParam(ParamMouseSpeed, value)
}

// SetMouseAccel sets the pointer acceleration (0-10).
func (d *Device) SetMouseAccel(value uint16) error {
	return d.SetParam(ParamMouseAccel, value)
}

// SetVolumeSensitivity sets the volume slider sensitivity (1-10).
func (d *Device) SetVolumeSensitivity(value uint16) error {
	return d.SetParam(ParamVolumeSensitivity, value)
}

// ResetDefaults restores all runtime parameters to firmware defaults.
func (d *Device) ResetDefaults() error {
	resp, err := d.Send(CmdResetDefault, nil)
	if err != nil {
		return err
	}
	return checkAck(resp)
}

// SaveFlash persists the current runtime parameters to flash. Uses an
// elevated timeout: the flash data storage layer garbage-collects on
// write and can take seconds.
func (d *Device) SaveFlash() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	resp, err := d.transact(CmdSaveFlash, nil, FlashTimeout, 1)
	if err != nil {
		return err
	}
	return checkAck(resp)
}

// LoadFlash reloads runtime parameters from flash, discarding unsaved
// changes.
func (d *Device) LoadFlash() error {
	resp, err := d.Send(CmdLoadFlash, nil)
	if err != nil {
		return err
	}
	return checkAck(resp)
}

// Touches requests a single touch frame outside of streaming.
func (d *Device) Touches() (TouchFrame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	resp, err := d.transact(CmdGetTouches, nil, d.timeout, FrameSize)
	if err != nil {
		return TouchFrame{}, err
	}
	if len(resp) != FrameSize {
		return TouchFrame{}, fmt.Errorf("touch reply: expected %d bytes, got %d", FrameSize, len(resp))
	}
	return DecodeTouchFrame(resp)
}

// ChordData reads count chord records starting at the given record offset
// from the device's active configuration.
func (d *Device) ChordData(offset, count uint16) ([]byte, error) {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint16(payload[0:], offset)
	binary.LittleEndian.PutUint16(payload[2:], count)
	resp, err := d.Send(CmdGetChords, payload)
	if err != nil {
		return nil, err
	}
	if resp[0] == RespNak {
		return nil, ErrNak
	}
	return resp, nil
}

// SendChordData writes raw 8-byte chord records at the given record
// offset. Prefer Upload for whole-configuration replacement; this is the
// incremental path for single-record patches.
func (d *Device) SendChordData(offset uint16, data []byte) error {
	payload := make([]byte, 4+len(data))
	binary.LittleEndian.PutUint16(payload[0:], offset)
	binary.LittleEndian.PutUint16(payload[2:], uint16(len(data)/8))
	copy(payload[4:], data)
	resp, err := d.Send(CmdSetChords, payload)
	if err != nil {
		return err
	}
	return checkAck(resp)
}
