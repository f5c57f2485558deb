// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package nchorder

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"
)

// UploadStage identifies the protocol step an upload failed at or, in a
// Progress report, just completed.
type UploadStage int

const (
	StageStart UploadStage = iota
	StageData
	StageCommit
	StageFlash
)

func (s UploadStage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageData:
		return "data"
	case StageCommit:
		return "commit"
	case StageFlash:
		return "flash"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// UploadError reports which upload step failed. For StageData, Chunk is the
// zero-based index of the rejected chunk.
type UploadError struct {
	Stage UploadStage
	Chunk int
	Err   error
}

func (e *UploadError) Error() string {
	if e.Stage == StageData {
		return fmt.Sprintf("upload failed at chunk %d: %v", e.Chunk, e.Err)
	}
	return fmt.Sprintf("upload failed at %s: %v", e.Stage, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Progress is a snapshot passed to the progress callback after each
// completed upload step.
type Progress struct {
	Stage      UploadStage
	SentBytes  int
	TotalBytes int
	Chunk      int // chunks sent so far
	Chunks     int // total chunks
	Elapsed    time.Duration
}

type uploadConfig struct {
	chunkSize    int
	flashPersist bool
	progress     func(Progress)
}

// UploadOption customizes Upload.
type UploadOption func(*uploadConfig)

// WithChunkSize sets the UPLOAD_DATA payload size (1-63 bytes, default 60).
func WithChunkSize(n int) UploadOption {
	return func(c *uploadConfig) { c.chunkSize = n }
}

// WithFlashPersist controls whether the new configuration is saved to
// flash after commit (default true). Without it the configuration is
// active but lost on power cycle.
func WithFlashPersist(persist bool) UploadOption {
	return func(c *uploadConfig) { c.flashPersist = persist }
}

// WithProgress registers a callback invoked after each completed step.
func WithProgress(fn func(Progress)) UploadOption {
	return func(c *uploadConfig) { c.progress = fn }
}

// Upload replaces the device's active chord configuration with data,
// atomically from the caller's point of view: the previous configuration
// stays in effect unless UPLOAD_COMMIT acknowledges.
//
// Sequence: UPLOAD_START with the total size, the payload in chunks (each
// must ACK; the first non-ACK sends a single UPLOAD_ABORT and fails),
// UPLOAD_COMMIT (device parses and activates the blob), then an optional
// SAVE_FLASH persist step.
func (d *Device) Upload(ctx context.Context, data []byte, opts ...UploadOption) error {
	cfg := uploadConfig{
		chunkSize:    DefaultChunkSize,
		flashPersist: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	total := len(data)
	if total == 0 || total > MaxUploadSize {
		return fmt.Errorf("upload: size %d out of range (1-%d)", total, MaxUploadSize)
	}
	if cfg.chunkSize < 1 || cfg.chunkSize > MaxChunkSize {
		return fmt.Errorf("upload: chunk size %d out of range (1-%d)", cfg.chunkSize, MaxChunkSize)
	}

	chunks := (total + cfg.chunkSize - 1) / cfg.chunkSize
	start := time.Now()

	report := func(stage UploadStage, sent, chunk int) {
		if cfg.progress != nil {
			cfg.progress(Progress{
				Stage:      stage,
				SentBytes:  sent,
				TotalBytes: total,
				Chunk:      chunk,
				Chunks:     chunks,
				Elapsed:    time.Since(start),
			})
		}
	}

	// START announces the total size. A rejection here means the device
	// never left idle; there is nothing to abort.
	sizePayload := make([]byte, 2)
	binary.LittleEndian.PutUint16(sizePayload, uint16(total))
	if err := d.ackStep(CmdUploadStart, sizePayload); err != nil {
		return &UploadError{Stage: StageStart, Err: err}
	}
	report(StageStart, 0, 0)

	offset := 0
	for chunk := 0; offset < total; chunk++ {
		select {
		case <-ctx.Done():
			d.Send(CmdUploadAbort, nil)
			return &UploadError{Stage: StageData, Chunk: chunk, Err: ctx.Err()}
		default:
		}

		end := offset + cfg.chunkSize
		if end > total {
			end = total
		}
		if err := d.ackStep(CmdUploadData, data[offset:end]); err != nil {
			// Single abort, best effort: the device discards its
			// partial buffer and returns to idle.
			d.Send(CmdUploadAbort, nil)
			return &UploadError{Stage: StageData, Chunk: chunk, Err: err}
		}
		offset = end
		report(StageData, offset, chunk+1)
	}

	// COMMIT parses and activates. A NAK means the device rejected the
	// blob and kept the previous configuration; it is back in idle.
	if err := d.ackStep(CmdUploadCommit, nil); err != nil {
		return &UploadError{Stage: StageCommit, Err: err}
	}
	report(StageCommit, total, chunks)

	if cfg.flashPersist {
		if err := d.SaveFlash(); err != nil {
			// The new configuration is active but will not survive a
			// power cycle.
			return &UploadError{Stage: StageFlash, Err: err}
		}
		report(StageFlash, total, chunks)
	}

	return nil
}

// AbortUpload cancels any upload left pending on the device, for example
// after a host crash mid-transfer.
func (d *Device) AbortUpload() error {
	resp, err := d.Send(CmdUploadAbort, nil)
	if err != nil {
		return err
	}
	return checkAck(resp)
}

// ackStep sends one command and requires an ACK reply.
func (d *Device) ackStep(op byte, payload []byte) error {
	resp, err := d.Send(op, payload)
	if err != nil {
		return err
	}
	return checkAck(resp)
}
