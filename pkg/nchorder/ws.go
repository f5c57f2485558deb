// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package nchorder

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// ErrConnectionClosed is returned when reading from a closed WebSocket
// transport.
var ErrConnectionClosed = fmt.Errorf("websocket connection closed")

// WSTransport adapts a WebSocket link to the Transport interface. It is
// used when the device is reachable through a serial-over-WebSocket bridge
// rather than a local USB port.
//
// Binary messages carry raw CDC bytes in both directions; non-binary
// messages are skipped. A background goroutine pumps incoming messages into
// a channel so that Read can observe the configured timeout without
// poisoning the underlying connection with read deadlines.
type WSTransport struct {
	conn      *websocket.Conn
	msgs      chan []byte
	readErr   chan error
	buf       []byte
	bufOffset int
	timeout   time.Duration
	closed    bool // latched on first read error
}

// WSOptions configures DialWS.
type WSOptions struct {
	Username      string
	Password      string
	SkipSSLVerify bool
}

// DialWS connects to a serial bridge at wsURL (ws:// or wss://) with
// optional HTTP Basic auth.
func DialWS(wsURL string, opts WSOptions) (*WSTransport, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}

	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: opts.SkipSSLVerify,
		}
	}

	headers := http.Header{}
	if opts.Username != "" && opts.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(opts.Username + ":" + opts.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %v", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %v", err)
	}

	w := &WSTransport{
		conn:    conn,
		msgs:    make(chan []byte, 16),
		readErr: make(chan error, 1),
		timeout: DefaultTimeout,
	}
	go w.pump()

	return w, nil
}

// pump moves incoming binary messages from the WebSocket to the message
// channel until the connection fails.
func (w *WSTransport) pump() {
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.readErr <- err
			close(w.msgs)
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		w.msgs <- data
	}
}

func (w *WSTransport) Read(p []byte) (int, error) {
	if w.closed {
		return 0, ErrConnectionClosed
	}

	// Serve buffered data first
	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	timer := time.NewTimer(w.timeout)
	defer timer.Stop()

	select {
	case data, ok := <-w.msgs:
		if !ok {
			w.closed = true
			select {
			case err := <-w.readErr:
				return 0, err
			default:
				return 0, ErrConnectionClosed
			}
		}
		w.buf = data
		w.bufOffset = 0
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	case <-timer.C:
		// Timeout reads report no data, matching serial port semantics
		return 0, nil
	}
}

func (w *WSTransport) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrConnectionClosed
	}
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WSTransport) Close() error {
	return w.conn.Close()
}

func (w *WSTransport) SetReadTimeout(d time.Duration) error {
	w.timeout = d
	return nil
}

// DiscardInput drops buffered bytes and any messages already queued by the
// pump goroutine.
func (w *WSTransport) DiscardInput() error {
	w.buf = nil
	w.bufOffset = 0
	for {
		select {
		case _, ok := <-w.msgs:
			if !ok {
				w.closed = true
				return nil
			}
		default:
			return nil
		}
	}
}
