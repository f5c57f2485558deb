// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package nchorder

import (
	"fmt"
	"time"
)

// StreamStats tracks stream reader counters and rates.
type StreamStats struct {
	StartTime     time.Time
	LastFrameTime time.Time

	// Counters
	Reads           uint64
	BytesRead       uint64
	FramesDecoded   uint64
	FramesDelivered uint64
	FramesDropped   uint64 // channel full, newest frame discarded
	DecodeErrors    uint64
	Resyncs         uint64
	ResyncBytes     uint64 // bytes skipped hunting for the sync byte

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ByteRate  float64 // bytes/sec
}

// NewStreamStats creates a stats tracker starting now.
func NewStreamStats() *StreamStats {
	now := time.Now()
	return &StreamStats{
		StartTime:     now,
		LastFrameTime: now,
	}
}

// CalculateRates recomputes the frame and byte rates over the elapsed time.
func (s *StreamStats) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.FramesDecoded) / elapsed
		s.ByteRate = float64(s.BytesRead) / elapsed
	}
}

// String returns a formatted statistics summary.
func (s *StreamStats) String() string {
	s.CalculateRates()

	var deliveredPercent, droppedPercent float64
	if s.FramesDecoded > 0 {
		deliveredPercent = float64(s.FramesDelivered) * 100.0 / float64(s.FramesDecoded)
		droppedPercent = float64(s.FramesDropped) * 100.0 / float64(s.FramesDecoded)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Stream Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Frames Decoded:  %8d\n", s.FramesDecoded)
	result += fmt.Sprintf("Frames Delivered:%8d (%.1f%%)\n", s.FramesDelivered, deliveredPercent)

	if s.FramesDropped > 0 {
		result += fmt.Sprintf("Frames Dropped:  %8d (%.1f%%, slow consumer)\n", s.FramesDropped, droppedPercent)
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d\n", s.DecodeErrors)
	}
	if s.Resyncs > 0 {
		result += fmt.Sprintf("Resyncs:         %8d (%d bytes skipped)\n", s.Resyncs, s.ResyncBytes)
	}

	result += fmt.Sprintf("Reads:           %8d (%d bytes)\n", s.Reads, s.BytesRead)
	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Data Rate:       %8.1f bytes/sec\n", s.ByteRate)
	result += "=====================================\n"

	return result
}

// Reset clears all counters and restarts the rate clock.
func (s *StreamStats) Reset() {
	now := time.Now()
	s.StartTime = now
	s.LastFrameTime = now
	s.Reads = 0
	s.BytesRead = 0
	s.FramesDecoded = 0
	s.FramesDelivered = 0
	s.FramesDropped = 0
	s.DecodeErrors = 0
	s.Resyncs = 0
	s.ResyncBytes = 0
	s.FrameRate = 0
	s.ByteRate = 0
}
