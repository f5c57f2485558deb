// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package nchorder

import (
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
)

// The enumerator reports USB IDs as hex strings.
var (
	usbVIDHex = fmt.Sprintf("%04X", USBVendorID)
	usbPIDHex = fmt.Sprintf("%04X", USBProductID)
)

// FindPortDetails lists serial ports whose USB IDs match the nChorder,
// with full enumerator metadata.
func FindPortDetails() ([]*enumerator.PortDetails, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate ports: %w", err)
	}

	var matches []*enumerator.PortDetails
	for _, p := range ports {
		if p.IsUSB && strings.EqualFold(p.VID, usbVIDHex) && strings.EqualFold(p.PID, usbPIDHex) {
			matches = append(matches, p)
		}
	}
	return matches, nil
}

// FindPorts lists the names of serial ports whose USB IDs match the
// nChorder.
func FindPorts() ([]string, error) {
	details, err := FindPortDetails()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(details))
	for _, p := range details {
		names = append(names, p.Name)
	}
	return names, nil
}

// FindDevices returns candidate device ports. A single match is returned
// without probing. When several ports carry the nChorder USB IDs (stale
// endpoints linger after a reflash), each is probed with a short-timeout
// GET_VERSION and only the live ones are returned; if none answers, all
// candidates are returned so the caller can report them.
func FindDevices() ([]string, error) {
	candidates, err := FindPorts()
	if err != nil {
		return nil, err
	}
	if len(candidates) <= 1 {
		return candidates, nil
	}

	var live []string
	for _, name := range candidates {
		if ProbePort(name) {
			live = append(live, name)
		}
	}
	if len(live) > 0 {
		return live, nil
	}
	return candidates, nil
}

// ProbePort reports whether the port answers a GET_VERSION within the
// probe timeout.
func ProbePort(name string) bool {
	t, err := OpenSerial(name, DefaultBaudRate)
	if err != nil {
		return false
	}
	defer t.Close()

	dev := NewDevice(t)
	dev.SetTimeout(ProbeTimeout)
	_, err = dev.Version()
	return err == nil
}
