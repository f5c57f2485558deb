// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package nchorder

import (
	"bytes"
	"fmt"
	"sync"
	"time"
)

// Stream reader tuning.
const (
	// FrameBufferSize is the capacity of the frame delivery channel.
	// When the consumer falls behind, the newest frame is dropped and
	// counted; a slow consumer must never stall the reader.
	FrameBufferSize = 64

	// streamReadTimeout bounds each transport read so the stop signal
	// is observed promptly.
	streamReadTimeout = 50 * time.Millisecond

	// stopJoinTimeout bounds the wait for the worker goroutine on Stop.
	stopJoinTimeout = time.Second
)

// Streamer runs the touch telemetry stream: one worker goroutine reads the
// transport, slices the byte stream into frames, and delivers decoded
// frames on a bounded channel.
//
// While a Streamer is running, the transport belongs to it. Issuing Device
// commands concurrently is a caller error; stop the stream first.
type Streamer struct {
	dev *Device

	mu      sync.Mutex // guards lifecycle state
	running bool
	frames  chan TouchFrame
	stop    chan struct{}
	done    chan struct{}

	statsMu sync.Mutex
	stats   StreamStats
}

// NewStreamer creates a streamer over the given device.
func NewStreamer(dev *Device) *Streamer {
	return &Streamer{dev: dev}
}

// Frames returns the delivery channel of the current stream. It is valid
// after Start and is closed by Stop. Returns nil before the first Start.
func (s *Streamer) Frames() <-chan TouchFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Running reports whether the stream worker is active.
func (s *Streamer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Done returns a channel that is closed when the worker goroutine exits,
// whether from Stop or from a transport failure. Callers watching a live
// stream select on it to notice a dead connection. Returns nil before the
// first Start.
func (s *Streamer) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Stats returns a snapshot of the stream counters with rates calculated.
func (s *Streamer) Stats() StreamStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	snap := s.stats
	snap.CalculateRates()
	return snap
}

// Start tells the device to begin emitting frames at rateHz (clamped to
// 1-100) and launches the reader worker. Starting while already running is
// a no-op returning nil.
func (s *Streamer) Start(rateHz int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if rateHz < MinStreamRate {
		rateHz = MinStreamRate
	}
	if rateHz > MaxStreamRate {
		rateHz = MaxStreamRate
	}

	resp, err := s.dev.Send(CmdStreamStart, []byte{byte(rateHz)})
	if err != nil {
		return fmt.Errorf("stream start: %w", err)
	}
	if err := checkAck(resp); err != nil {
		return fmt.Errorf("stream start: %w", err)
	}

	if err := s.dev.t.SetReadTimeout(streamReadTimeout); err != nil {
		s.dev.Send(CmdStreamStop, nil) // device is already emitting
		return fmt.Errorf("stream start: %w", err)
	}

	s.statsMu.Lock()
	s.stats.Reset()
	s.statsMu.Unlock()

	s.frames = make(chan TouchFrame, FrameBufferSize)
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.running = true

	go s.run(s.frames, s.stop, s.done)

	return nil
}

// Stop signals the worker, joins it within a bounded wait, then tells the
// device to stop emitting and closes the frame channel. A worker that does
// not exit in time is reported as an error, not ignored.
func (s *Streamer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	close(s.stop)
	select {
	case <-s.done:
	case <-time.After(stopJoinTimeout):
		s.running = false
		return fmt.Errorf("stream worker did not stop within %v", stopJoinTimeout)
	}
	s.running = false

	// The stop reply may arrive behind queued frames, so its content is
	// not validated; only a transport-level failure is reported.
	_, err := s.dev.Send(CmdStreamStop, nil)
	close(s.frames)
	if err != nil {
		return fmt.Errorf("stream stop: %w", err)
	}
	return nil
}

// run is the reader worker. It exits on the stop signal or on a transport
// error; a single bad frame never terminates the stream.
func (s *Streamer) run(frames chan<- TouchFrame, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	buf := make([]byte, 0, 4*FrameSize)
	chunk := make([]byte, MaxResponseSize)

	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := s.dev.t.Read(chunk)
		if err != nil {
			return
		}

		s.statsMu.Lock()
		s.stats.Reads++
		s.stats.BytesRead += uint64(n)
		s.statsMu.Unlock()

		if n == 0 {
			continue // read timeout, check stop again
		}

		buf = append(buf, chunk[:n]...)
		buf = s.extractFrames(buf, frames)
	}
}

// extractFrames slices complete frames out of buf, resynchronizing on the
// sync byte, and returns the unconsumed remainder.
func (s *Streamer) extractFrames(buf []byte, frames chan<- TouchFrame) []byte {
	for len(buf) >= FrameSize {
		idx := bytes.IndexByte(buf, StreamSync)
		if idx < 0 {
			// No sync byte anywhere: nothing recoverable.
			s.statsMu.Lock()
			s.stats.Resyncs++
			s.stats.ResyncBytes += uint64(len(buf))
			s.statsMu.Unlock()
			return buf[:0]
		}
		if idx > 0 {
			// Partial frame or garbage before the sync byte.
			s.statsMu.Lock()
			s.stats.Resyncs++
			s.stats.ResyncBytes += uint64(idx)
			s.statsMu.Unlock()
			buf = buf[idx:]
			continue
		}

		f, err := DecodeTouchFrame(buf[:FrameSize])
		buf = buf[FrameSize:]
		if err != nil {
			s.statsMu.Lock()
			s.stats.DecodeErrors++
			s.statsMu.Unlock()
			continue
		}

		s.statsMu.Lock()
		s.stats.FramesDecoded++
		s.stats.LastFrameTime = f.Time
		s.statsMu.Unlock()

		select {
		case frames <- f:
			s.statsMu.Lock()
			s.stats.FramesDelivered++
			s.statsMu.Unlock()
		default:
			s.statsMu.Lock()
			s.stats.FramesDropped++
			s.statsMu.Unlock()
		}
	}
	return buf
}
