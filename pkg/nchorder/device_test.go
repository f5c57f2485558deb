// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package nchorder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"
)

// ============================================================
// Fake transport
// ============================================================

// fakeDevice is a scripted Transport. Write dispatches the command byte to
// a handler and queues its reply; Read serves queued reply bytes, then an
// optional continuous stream script, then times out (or fails with readErr).
type fakeDevice struct {
	mu       sync.Mutex
	respond  func(op byte, payload []byte) []byte
	pending  []byte
	stream   []byte
	writes   [][]byte
	discards int
	timeout  time.Duration
	maxRead  int // bytes per Read, simulating 64-byte CDC bursts (0 = no cap)
	readErr  error
	closed   bool
}

func newFakeDevice(respond func(op byte, payload []byte) []byte) *fakeDevice {
	return &fakeDevice{respond: respond}
}

// ackAll replies ACK to every command.
func ackAll(op byte, payload []byte) []byte {
	return []byte{RespAck}
}

func (f *fakeDevice) Read(p []byte) (int, error) {
	f.mu.Lock()

	src := &f.pending
	if len(*src) == 0 {
		src = &f.stream
	}
	if len(*src) == 0 {
		err := f.readErr
		f.mu.Unlock()
		if err != nil {
			return 0, err
		}
		// Behave like a blocking read hitting its timeout.
		time.Sleep(time.Millisecond)
		return 0, nil
	}

	n := len(*src)
	if f.maxRead > 0 && n > f.maxRead {
		n = f.maxRead
	}
	n = copy(p, (*src)[:n])
	*src = (*src)[n:]
	f.mu.Unlock()
	return n, nil
}

func (f *fakeDevice) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cmd := make([]byte, len(p))
	copy(cmd, p)
	f.writes = append(f.writes, cmd)

	if f.respond != nil && len(p) > 0 {
		if reply := f.respond(p[0], p[1:]); reply != nil {
			f.pending = append(f.pending, reply...)
		}
	}
	return len(p), nil
}

func (f *fakeDevice) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeDevice) SetReadTimeout(d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeout = d
	return nil
}

func (f *fakeDevice) DiscardInput() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = nil
	f.discards++
	return nil
}

// opWrites returns the recorded commands that start with the given opcode.
func (f *fakeDevice) opWrites(op byte) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]byte
	for _, w := range f.writes {
		if len(w) > 0 && w[0] == op {
			out = append(out, w)
		}
	}
	return out
}

func (f *fakeDevice) lastTimeout() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.timeout
}

func (f *fakeDevice) discardCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.discards
}

// ============================================================
// Command engine
// ============================================================

func TestSend_WritesOpcodeAndPayload(t *testing.T) {
	f := newFakeDevice(ackAll)
	d := NewDevice(f)

	resp, err := d.Send(CmdSetConfig, []byte{0x01, 0xF4, 0x01})
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if len(resp) != 1 || resp[0] != RespAck {
		t.Errorf("Expected ACK reply, got % 02X", resp)
	}

	writes := f.opWrites(CmdSetConfig)
	if len(writes) != 1 {
		t.Fatalf("Expected 1 command write, got %d", len(writes))
	}
	want := []byte{CmdSetConfig, 0x01, 0xF4, 0x01}
	if !bytes.Equal(writes[0], want) {
		t.Errorf("Command bytes mismatch: expected % 02X, got % 02X", want, writes[0])
	}
}

func TestSend_DiscardsStaleInput(t *testing.T) {
	f := newFakeDevice(ackAll)
	f.pending = []byte{0x99, 0x98} // leftovers from an abandoned command
	d := NewDevice(f)

	resp, err := d.Send(CmdGetVersion, nil)
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if resp[0] != RespAck {
		t.Errorf("Stale bytes leaked into reply: % 02X", resp)
	}
	if f.discardCount() != 1 {
		t.Errorf("Expected 1 DiscardInput call, got %d", f.discardCount())
	}
}

func TestSend_NoResponse(t *testing.T) {
	f := newFakeDevice(nil) // device never answers
	d := NewDevice(f)

	_, err := d.Send(CmdGetVersion, nil)
	if !errors.Is(err, ErrNoResponse) {
		t.Errorf("Expected ErrNoResponse, got %v", err)
	}
}

func TestSend_ReadError(t *testing.T) {
	f := newFakeDevice(nil)
	f.readErr = errors.New("device unplugged")
	d := NewDevice(f)

	_, err := d.Send(CmdGetVersion, nil)
	if !errors.Is(err, ErrNoResponse) {
		t.Errorf("I/O failure should yield ErrNoResponse, got %v", err)
	}
}

// ============================================================
// Typed operations
// ============================================================

func TestVersion(t *testing.T) {
	f := newFakeDevice(func(op byte, payload []byte) []byte {
		if op == CmdGetVersion {
			return []byte{2, 1, 3}
		}
		return nil
	})
	d := NewDevice(f)

	v, err := d.Version()
	if err != nil {
		t.Fatalf("Version error: %v", err)
	}
	if v.Major != 2 || v.Minor != 1 || v.HWRev != 3 {
		t.Errorf("Version mismatch: %+v", v)
	}
	if v.String() != "v2.1 (hw rev 3)" {
		t.Errorf("Version string mismatch: %q", v.String())
	}
}

func TestVersion_WrongLength(t *testing.T) {
	f := newFakeDevice(func(op byte, payload []byte) []byte {
		return []byte{2, 1} // truncated
	})
	d := NewDevice(f)

	if _, err := d.Version(); err == nil {
		t.Error("Expected error for 2-byte version reply")
	}
}

func TestSettings(t *testing.T) {
	want := DeviceSettings{
		ThresholdPress:    600,
		ThresholdRelease:  200,
		DebounceMs:        25,
		PollRateMs:        10,
		MouseSpeed:        12,
		MouseAccel:        4,
		VolumeSensitivity: 7,
	}

	f := newFakeDevice(func(op byte, payload []byte) []byte {
		if op != CmdGetConfig {
			return nil
		}
		reply := make([]byte, 14)
		for i, v := range []uint16{600, 200, 25, 10, 12, 4, 7} {
			binary.LittleEndian.PutUint16(reply[i*2:], v)
		}
		return reply
	})
	d := NewDevice(f)

	got, err := d.Settings()
	if err != nil {
		t.Fatalf("Settings error: %v", err)
	}
	if got != want {
		t.Errorf("Settings mismatch:\n  expected %+v\n  got      %+v", want, got)
	}
}

func TestSettings_ShortReply(t *testing.T) {
	f := newFakeDevice(func(op byte, payload []byte) []byte {
		return []byte{0x01, 0x02, 0x03} // far too short
	})
	d := NewDevice(f)

	if _, err := d.Settings(); err == nil {
		t.Error("Expected error for short settings reply")
	}
}

func TestSetParam(t *testing.T) {
	f := newFakeDevice(ackAll)
	d := NewDevice(f)

	if err := d.SetParam(ParamThresholdPress, 500); err != nil {
		t.Fatalf("SetParam error: %v", err)
	}

	writes := f.opWrites(CmdSetConfig)
	if len(writes) != 1 {
		t.Fatalf("Expected 1 SET_CONFIG write, got %d", len(writes))
	}
	want := []byte{CmdSetConfig, byte(ParamThresholdPress), 0xF4, 0x01} // 500 = 0x01F4 LE
	if !bytes.Equal(writes[0], want) {
		t.Errorf("SET_CONFIG bytes mismatch: expected % 02X, got % 02X", want, writes[0])
	}
}

func TestSetParam_Nak(t *testing.T) {
	f := newFakeDevice(func(op byte, payload []byte) []byte {
		return []byte{RespNak}
	})
	d := NewDevice(f)

	err := d.SetParam(ParamMouseSpeed, 9999)
	if !errors.Is(err, ErrNak) {
		t.Errorf("Expected ErrNak, got %v", err)
	}
}

func TestNamedSetters(t *testing.T) {
	tests := []struct {
		name string
		call func(*Device) error
		id   Param
	}{
		{"threshold press", func(d *Device) error { return d.SetThresholdPress(500) }, ParamThresholdPress},
		{"threshold release", func(d *Device) error { return d.SetThresholdRelease(250) }, ParamThresholdRelease},
		{"debounce", func(d *Device) error { return d.SetDebounce(30) }, ParamDebounceMs},
		{"poll rate", func(d *Device) error { return d.SetPollRate(15) }, ParamPollRateMs},
		{"mouse speed", func(d *Device) error { return d.SetMouseSpeed(10) }, ParamMouseSpeed},
		{"mouse accel", func(d *Device) error { return d.SetMouseAccel(3) }, ParamMouseAccel},
		{"volume sensitivity", func(d *Device) error { return d.SetVolumeSensitivity(5) }, ParamVolumeSensitivity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeDevice(ackAll)
			d := NewDevice(f)
			if err := tt.call(d); err != nil {
				t.Fatalf("setter error: %v", err)
			}
			writes := f.opWrites(CmdSetConfig)
			if len(writes) != 1 {
				t.Fatalf("Expected 1 SET_CONFIG write, got %d", len(writes))
			}
			if writes[0][1] != byte(tt.id) {
				t.Errorf("Expected parameter ID 0x%02X, got 0x%02X", byte(tt.id), writes[0][1])
			}
		})
	}
}

func TestAckCommands(t *testing.T) {
	tests := []struct {
		name string
		call func(*Device) error
		op   byte
	}{
		{"reset defaults", (*Device).ResetDefaults, CmdResetDefault},
		{"save flash", (*Device).SaveFlash, CmdSaveFlash},
		{"load flash", (*Device).LoadFlash, CmdLoadFlash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeDevice(ackAll)
			d := NewDevice(f)
			if err := tt.call(d); err != nil {
				t.Fatalf("%s error: %v", tt.name, err)
			}
			if len(f.opWrites(tt.op)) != 1 {
				t.Errorf("Expected 1 write of opcode 0x%02X", tt.op)
			}
		})
	}
}

func TestSaveFlash_ElevatedTimeout(t *testing.T) {
	f := newFakeDevice(ackAll)
	d := NewDevice(f)

	if err := d.SaveFlash(); err != nil {
		t.Fatalf("SaveFlash error: %v", err)
	}
	if f.lastTimeout() != FlashTimeout {
		t.Errorf("Expected flash timeout %v, got %v", FlashTimeout, f.lastTimeout())
	}

	// The next ordinary command goes back to the default timeout.
	if _, err := d.Send(CmdGetVersion, nil); !errors.Is(err, ErrNoResponse) {
		t.Fatalf("Expected ErrNoResponse from silent device, got %v", err)
	}
	if f.lastTimeout() != DefaultTimeout {
		t.Errorf("Expected default timeout %v after SaveFlash, got %v", DefaultTimeout, f.lastTimeout())
	}
}

func TestTouches_SplitAcrossReads(t *testing.T) {
	frame := buildFrame(frameSpec{
		thumbX: 512, thumbY: 1024, thumbSize: 80,
		touches: [NumBars][]BarTouch{
			0: {{Pos: 1600, Size: 120}},
			2: {{Pos: 310, Size: 55}},
		},
		buttons: 0x00002002,
	})

	f := newFakeDevice(func(op byte, payload []byte) []byte {
		if op == CmdGetTouches {
			return frame
		}
		return nil
	})
	f.maxRead = 64 // a 71-byte frame arrives as two CDC bursts
	d := NewDevice(f)

	got, err := d.Touches()
	if err != nil {
		t.Fatalf("Touches error: %v", err)
	}
	if got.ThumbX != 512 || got.ThumbY != 1024 || got.ThumbSize != 80 {
		t.Errorf("Thumb mismatch: %+v", got)
	}
	if got.Buttons != 0x00002002 {
		t.Errorf("Buttons mismatch: 0x%08X", got.Buttons)
	}
	if len(got.Bars[0]) != 1 || len(got.Bars[1]) != 0 || len(got.Bars[2]) != 1 {
		t.Errorf("Bar touch counts mismatch: [%d,%d,%d]",
			len(got.Bars[0]), len(got.Bars[1]), len(got.Bars[2]))
	}
}

func TestChordData(t *testing.T) {
	payload := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	f := newFakeDevice(func(op byte, data []byte) []byte {
		if op == CmdGetChords {
			return payload
		}
		return nil
	})
	d := NewDevice(f)

	resp, err := d.ChordData(4, 1)
	if err != nil {
		t.Fatalf("ChordData error: %v", err)
	}
	if !bytes.Equal(resp, payload) {
		t.Errorf("ChordData mismatch: % 02X", resp)
	}

	writes := f.opWrites(CmdGetChords)
	want := []byte{CmdGetChords, 0x04, 0x00, 0x01, 0x00}
	if !bytes.Equal(writes[0], want) {
		t.Errorf("GET_CHORDS bytes mismatch: expected % 02X, got % 02X", want, writes[0])
	}
}

func TestChordData_Nak(t *testing.T) {
	f := newFakeDevice(func(op byte, payload []byte) []byte {
		return []byte{RespNak}
	})
	d := NewDevice(f)

	if _, err := d.ChordData(9999, 1); !errors.Is(err, ErrNak) {
		t.Errorf("Expected ErrNak, got %v", err)
	}
}

func TestSendChordData(t *testing.T) {
	f := newFakeDevice(ackAll)
	d := NewDevice(f)

	record := []byte{0x02, 0x00, 0x00, 0x00, 0x02, 0x02, 0x04, 0x00} // one 8-byte record
	if err := d.SendChordData(3, record); err != nil {
		t.Fatalf("SendChordData error: %v", err)
	}

	writes := f.opWrites(CmdSetChords)
	if len(writes) != 1 {
		t.Fatalf("Expected 1 SET_CHORDS write, got %d", len(writes))
	}
	header := writes[0][1:5]
	if binary.LittleEndian.Uint16(header[0:]) != 3 {
		t.Errorf("Offset mismatch: % 02X", header)
	}
	if binary.LittleEndian.Uint16(header[2:]) != 1 {
		t.Errorf("Record count mismatch: % 02X", header)
	}
	if !bytes.Equal(writes[0][5:], record) {
		t.Errorf("Record bytes mismatch: % 02X", writes[0][5:])
	}
}

// ============================================================
// Settings helpers
// ============================================================

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	for _, p := range Params {
		if got := s.Get(p.ID); got != p.Default {
			t.Errorf("%s: expected default %d, got %d", p.Name, p.Default, got)
		}
	}
}

func TestParamByName(t *testing.T) {
	p := ParamByName("debounce-ms")
	if p == nil || p.ID != ParamDebounceMs {
		t.Fatalf("ParamByName lookup failed: %+v", p)
	}
	if ParamByName("nonsense") != nil {
		t.Error("Expected nil for unknown parameter name")
	}
}
