// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/nchorder/chordctl/pkg/nchorder"
)

// openDevice resolves a transport and wraps it in the command engine.
// Resolution order: --url (WebSocket bridge), --port, then USB discovery
// when exactly one device is connected. The second return value describes
// the connection for status lines.
func openDevice() (*nchorder.Device, string, error) {
	if wsURL != "" {
		password := ""
		if wsUsername != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		t, err := nchorder.DialWS(wsURL, nchorder.WSOptions{
			Username:      wsUsername,
			Password:      password,
			SkipSSLVerify: wsNoSSLVerify,
		})
		if err != nil {
			return nil, "", err
		}
		return nchorder.NewDevice(t), fmt.Sprintf("WebSocket: %s", wsURL), nil
	}

	name := portName
	if name == "" {
		ports, err := nchorder.FindDevices()
		if err != nil {
			return nil, "", fmt.Errorf("device discovery failed: %v", err)
		}
		switch len(ports) {
		case 0:
			return nil, "", fmt.Errorf("no nChorder found (USB %04X:%04X); connect one or use --port",
				nchorder.USBVendorID, nchorder.USBProductID)
		case 1:
			name = ports[0]
		default:
			return nil, "", fmt.Errorf("multiple devices found (%s); pick one with --port",
				strings.Join(ports, ", "))
		}
	}

	t, err := nchorder.OpenSerial(name, baudRate)
	if err != nil {
		return nil, "", err
	}
	return nchorder.NewDevice(t), fmt.Sprintf("Serial: %s @ %d baud", name, baudRate), nil
}

// GetPassword retrieves the bridge password from the environment or prompts
// the user.
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("CHORDCTL_PASSWORD"); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr) // newline after password
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr) // newline after password
	return string(passwordBytes), nil
}
