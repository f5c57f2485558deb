// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package nchorder

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

// uploadPayload builds a deterministic test blob of the given size.
func uploadPayload(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i * 7)
	}
	return data
}

// ============================================================
// Happy path
// ============================================================

func TestUpload_Sequence(t *testing.T) {
	data := uploadPayload(150) // 3 chunks at the default size: 60 + 60 + 30

	f := newFakeDevice(ackAll)
	d := NewDevice(f)

	var reports []Progress
	err := d.Upload(context.Background(), data, WithProgress(func(p Progress) {
		reports = append(reports, p)
	}))
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}

	starts := f.opWrites(CmdUploadStart)
	if len(starts) != 1 {
		t.Fatalf("Expected 1 UPLOAD_START, got %d", len(starts))
	}
	if !bytes.Equal(starts[0], []byte{CmdUploadStart, 150, 0}) {
		t.Errorf("UPLOAD_START payload mismatch: % X", starts[0])
	}

	chunks := f.opWrites(CmdUploadData)
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 UPLOAD_DATA writes, got %d", len(chunks))
	}
	for i, wantLen := range []int{60, 60, 30} {
		if len(chunks[i])-1 != wantLen {
			t.Errorf("Chunk %d: expected %d payload bytes, got %d", i, wantLen, len(chunks[i])-1)
		}
	}
	if !bytes.Equal(chunks[0][1:], data[:60]) {
		t.Error("Chunk 0 payload does not match source data")
	}
	if !bytes.Equal(chunks[2][1:], data[120:]) {
		t.Error("Final chunk payload does not match source data")
	}

	if n := len(f.opWrites(CmdUploadCommit)); n != 1 {
		t.Errorf("Expected 1 UPLOAD_COMMIT, got %d", n)
	}
	if n := len(f.opWrites(CmdSaveFlash)); n != 1 {
		t.Errorf("Expected 1 SAVE_FLASH, got %d", n)
	}
	if n := len(f.opWrites(CmdUploadAbort)); n != 0 {
		t.Errorf("Unexpected UPLOAD_ABORT writes: %d", n)
	}

	wantStages := []UploadStage{StageStart, StageData, StageData, StageData, StageCommit, StageFlash}
	if len(reports) != len(wantStages) {
		t.Fatalf("Expected %d progress reports, got %d", len(wantStages), len(reports))
	}
	for i, want := range wantStages {
		if reports[i].Stage != want {
			t.Errorf("Report %d: expected stage %v, got %v", i, want, reports[i].Stage)
		}
	}
	last := reports[3]
	if last.SentBytes != 150 || last.TotalBytes != 150 || last.Chunk != 3 || last.Chunks != 3 {
		t.Errorf("Final data report mismatch: %+v", last)
	}
}

func TestUpload_CustomChunkSize(t *testing.T) {
	data := uploadPayload(126)

	f := newFakeDevice(ackAll)
	d := NewDevice(f)

	if err := d.Upload(context.Background(), data, WithChunkSize(63)); err != nil {
		t.Fatalf("Upload error: %v", err)
	}

	chunks := f.opWrites(CmdUploadData)
	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks of 63, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c)-1 != 63 {
			t.Errorf("Chunk %d: expected 63 payload bytes, got %d", i, len(c)-1)
		}
	}
}

func TestUpload_NoFlashPersist(t *testing.T) {
	f := newFakeDevice(ackAll)
	d := NewDevice(f)

	if err := d.Upload(context.Background(), uploadPayload(40), WithFlashPersist(false)); err != nil {
		t.Fatalf("Upload error: %v", err)
	}
	if n := len(f.opWrites(CmdSaveFlash)); n != 0 {
		t.Errorf("SAVE_FLASH sent despite WithFlashPersist(false): %d writes", n)
	}
	if n := len(f.opWrites(CmdUploadCommit)); n != 1 {
		t.Errorf("Expected 1 UPLOAD_COMMIT, got %d", n)
	}
}

// ============================================================
// Validation
// ============================================================

func TestUpload_SizeValidation(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"empty", 0},
		{"oversized", MaxUploadSize + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeDevice(ackAll)
			d := NewDevice(f)

			if err := d.Upload(context.Background(), uploadPayload(tt.size)); err == nil {
				t.Fatal("Expected size validation error")
			}
			if len(f.writes) != 0 {
				t.Errorf("Rejected upload still wrote %d commands", len(f.writes))
			}
		})
	}
}

func TestUpload_ChunkSizeValidation(t *testing.T) {
	for _, size := range []int{0, -1, MaxChunkSize + 1} {
		f := newFakeDevice(ackAll)
		d := NewDevice(f)

		if err := d.Upload(context.Background(), uploadPayload(10), WithChunkSize(size)); err == nil {
			t.Errorf("Chunk size %d: expected validation error", size)
		}
		if len(f.writes) != 0 {
			t.Errorf("Chunk size %d: rejected upload still wrote %d commands", size, len(f.writes))
		}
	}
}

// ============================================================
// Failure handling
// ============================================================

func TestUpload_NakOnChunk(t *testing.T) {
	dataWrites := 0
	f := newFakeDevice(func(op byte, payload []byte) []byte {
		if op == CmdUploadData {
			dataWrites++
			if dataWrites == 3 {
				return []byte{RespNak}
			}
		}
		return []byte{RespAck}
	})
	d := NewDevice(f)

	err := d.Upload(context.Background(), uploadPayload(200)) // 4 chunks
	if err == nil {
		t.Fatal("Expected upload failure on NAKed chunk")
	}

	var ue *UploadError
	if !errors.As(err, &ue) {
		t.Fatalf("Expected *UploadError, got %T: %v", err, err)
	}
	if ue.Stage != StageData {
		t.Errorf("Expected stage %v, got %v", StageData, ue.Stage)
	}
	if ue.Chunk != 2 {
		t.Errorf("Expected failing chunk 2, got %d", ue.Chunk)
	}
	if !strings.Contains(err.Error(), "chunk 2") {
		t.Errorf("Error message missing chunk index: %v", err)
	}
	if !errors.Is(err, ErrNak) {
		t.Errorf("Expected ErrNak in chain, got %v", err)
	}

	// Exactly one abort; the transfer never reaches commit.
	if n := len(f.opWrites(CmdUploadAbort)); n != 1 {
		t.Errorf("Expected exactly 1 UPLOAD_ABORT, got %d", n)
	}
	if n := len(f.opWrites(CmdUploadCommit)); n != 0 {
		t.Errorf("UPLOAD_COMMIT sent after failed chunk: %d writes", n)
	}
	if n := len(f.opWrites(CmdUploadData)); n != 3 {
		t.Errorf("Expected 3 UPLOAD_DATA writes before failure, got %d", n)
	}
}

func TestUpload_StartRejected(t *testing.T) {
	f := newFakeDevice(func(op byte, payload []byte) []byte {
		if op == CmdUploadStart {
			return []byte{RespNak}
		}
		return []byte{RespAck}
	})
	d := NewDevice(f)

	err := d.Upload(context.Background(), uploadPayload(100))

	var ue *UploadError
	if !errors.As(err, &ue) || ue.Stage != StageStart {
		t.Fatalf("Expected UploadError at start stage, got %v", err)
	}
	// The device never left idle: no data, no abort.
	if n := len(f.opWrites(CmdUploadData)); n != 0 {
		t.Errorf("UPLOAD_DATA sent after rejected start: %d writes", n)
	}
	if n := len(f.opWrites(CmdUploadAbort)); n != 0 {
		t.Errorf("UPLOAD_ABORT sent after rejected start: %d writes", n)
	}
}

func TestUpload_CommitRejected(t *testing.T) {
	f := newFakeDevice(func(op byte, payload []byte) []byte {
		if op == CmdUploadCommit {
			return []byte{RespNak}
		}
		return []byte{RespAck}
	})
	d := NewDevice(f)

	err := d.Upload(context.Background(), uploadPayload(100))

	var ue *UploadError
	if !errors.As(err, &ue) || ue.Stage != StageCommit {
		t.Fatalf("Expected UploadError at commit stage, got %v", err)
	}
	// A rejected commit leaves the device idle on its own: no abort,
	// and certainly no flash write.
	if n := len(f.opWrites(CmdUploadAbort)); n != 0 {
		t.Errorf("UPLOAD_ABORT sent after rejected commit: %d writes", n)
	}
	if n := len(f.opWrites(CmdSaveFlash)); n != 0 {
		t.Errorf("SAVE_FLASH sent after rejected commit: %d writes", n)
	}
}

func TestUpload_FlashRejected(t *testing.T) {
	f := newFakeDevice(func(op byte, payload []byte) []byte {
		if op == CmdSaveFlash {
			return []byte{RespNak}
		}
		return []byte{RespAck}
	})
	d := NewDevice(f)

	err := d.Upload(context.Background(), uploadPayload(100))

	var ue *UploadError
	if !errors.As(err, &ue) || ue.Stage != StageFlash {
		t.Fatalf("Expected UploadError at flash stage, got %v", err)
	}
	// Commit succeeded, so the configuration is active; nothing to abort.
	if n := len(f.opWrites(CmdUploadAbort)); n != 0 {
		t.Errorf("UPLOAD_ABORT sent after flash failure: %d writes", n)
	}
}

func TestUpload_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newFakeDevice(ackAll)
	d := NewDevice(f)

	err := d.Upload(ctx, uploadPayload(100))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled in chain, got %v", err)
	}

	var ue *UploadError
	if !errors.As(err, &ue) || ue.Stage != StageData {
		t.Fatalf("Expected UploadError at data stage, got %v", err)
	}
	if n := len(f.opWrites(CmdUploadAbort)); n != 1 {
		t.Errorf("Expected 1 UPLOAD_ABORT after cancellation, got %d", n)
	}
	if n := len(f.opWrites(CmdUploadData)); n != 0 {
		t.Errorf("UPLOAD_DATA sent after cancellation: %d writes", n)
	}
}

func TestAbortUpload(t *testing.T) {
	f := newFakeDevice(ackAll)
	d := NewDevice(f)

	if err := d.AbortUpload(); err != nil {
		t.Fatalf("AbortUpload error: %v", err)
	}
	if n := len(f.opWrites(CmdUploadAbort)); n != 1 {
		t.Errorf("Expected 1 UPLOAD_ABORT, got %d", n)
	}
}

func TestUploadStage_String(t *testing.T) {
	tests := []struct {
		stage UploadStage
		want  string
	}{
		{StageStart, "start"},
		{StageData, "data"},
		{StageCommit, "commit"},
		{StageFlash, "flash"},
	}
	for _, tt := range tests {
		if got := tt.stage.String(); got != tt.want {
			t.Errorf("Stage %d: expected %q, got %q", int(tt.stage), tt.want, got)
		}
	}
}
