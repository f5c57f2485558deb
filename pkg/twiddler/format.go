// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package twiddler

import (
	"fmt"
)

// Version identifies a configuration file format.
type Version int

const (
	// Version4 is the Twiddler 2.1 / early T3 format: 14-byte header,
	// 4-byte chord records, no macro support.
	Version4 Version = 4

	// Version5 extends v4 with a string table for multi-character macros
	// (T3 firmware 12 and later). 18-byte header.
	Version5 Version = 5

	// Version7 is the T4 format: 128-byte header, 8-byte chord records,
	// macros referenced through an index table. The only format with a
	// writer.
	Version7 Version = 7
)

func (v Version) String() string {
	switch v {
	case Version4:
		return "v4"
	case Version5:
		return "v5"
	case Version7:
		return "v7"
	default:
		return fmt.Sprintf("Version(%d)", int(v))
	}
}

// v7 header markers at offset 4. Files written by the vendor tuner carry
// 0x0107; files read back from the device carry 0x0907.
const (
	v7MarkerTuner    = 0x0107
	v7MarkerFirmware = 0x0907
)

// DetectVersion inspects the leading bytes of a configuration file and
// returns its format version. v7 files start with four zero bytes followed
// by a known marker word; v4 and v5 carry their version number in the first
// byte.
func DetectVersion(data []byte) (Version, error) {
	if len(data) < 6 {
		return 0, fmt.Errorf("file too short to identify: %d bytes", len(data))
	}

	if data[0] == 0 && data[1] == 0 && data[2] == 0 && data[3] == 0 {
		marker := uint16(data[4]) | uint16(data[5])<<8
		if marker == v7MarkerTuner || marker == v7MarkerFirmware {
			return Version7, nil
		}
	}

	switch data[0] {
	case 4:
		return Version4, nil
	case 5:
		return Version5, nil
	}

	n := len(data)
	if n > 8 {
		n = 8
	}
	return 0, fmt.Errorf("unrecognized config format (leading bytes % X)", data[:n])
}

// Parse decodes a configuration file in any supported format, detecting the
// version from the file contents.
func Parse(data []byte) (*Config, error) {
	version, err := DetectVersion(data)
	if err != nil {
		return nil, err
	}

	switch version {
	case Version4:
		return parseV4(data)
	case Version5:
		return parseV5(data)
	case Version7:
		return parseV7(data)
	}
	return nil, fmt.Errorf("no parser for %s", version)
}
