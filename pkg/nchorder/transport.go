// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package nchorder

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Transport is a half-duplex byte link to the device. Implementations must
// support bounded reads: a Read after SetReadTimeout returns (0, nil) or a
// timeout error when no data arrives in time, it never blocks forever.
//
// A Transport is not safe for concurrent use. The Device command engine and
// the Streamer each assume exclusive ownership while active.
type Transport interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error

	// SetReadTimeout bounds all subsequent Reads.
	SetReadTimeout(d time.Duration) error

	// DiscardInput drops any bytes already received but not yet read,
	// such as late replies to an abandoned command.
	DiscardInput() error
}

// SerialTransport talks to the device over its USB CDC ACM port.
type SerialTransport struct {
	port serial.Port
	name string
}

// OpenSerial opens the named serial port. The baud rate is a courtesy for
// USB/serial bridges; the CDC interface itself ignores it.
func OpenSerial(portName string, baudRate int) (*SerialTransport, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %v", portName, err)
	}

	if err := port.SetReadTimeout(DefaultTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %v", portName, err)
	}

	return &SerialTransport{port: port, name: portName}, nil
}

func (s *SerialTransport) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialTransport) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialTransport) Close() error {
	return s.port.Close()
}

func (s *SerialTransport) SetReadTimeout(d time.Duration) error {
	return s.port.SetReadTimeout(d)
}

func (s *SerialTransport) DiscardInput() error {
	return s.port.ResetInputBuffer()
}

// Name returns the port name the transport was opened with.
func (s *SerialTransport) Name() string {
	return s.name
}
