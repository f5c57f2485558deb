// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nchorder/chordctl/pkg/nchorder"
)

var (
	monitorRate      int
	monitorText      bool
	monitorLog       string
	monitorReconnect bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live touch telemetry dashboard",
	Long: `Stream touch frames from the device and display them live.

The default view is a terminal UI showing the thumb stick, the three
capacitive bars, pressed buttons and stream statistics. GPIO diagnostic
frames from debug firmware builds get their own panel when they appear.

With --text, frames are printed one per line instead, which is the mode
to pipe or grep. --log appends every touch frame to a CSV file in either
mode.

With --reconnect the monitor survives unplugging: when the stream dies
it retries the connection with exponential backoff (1s doubling to 30s)
until the device comes back.

Exit codes:
  0 - Clean exit
  2 - Connection or port access error`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().IntVar(&monitorRate, "rate", 30,
		fmt.Sprintf("Frame rate in Hz (%d-%d)", nchorder.MinStreamRate, nchorder.MaxStreamRate))
	monitorCmd.Flags().BoolVar(&monitorText, "text", false, "Line-per-frame text output instead of the TUI")
	monitorCmd.Flags().StringVar(&monitorLog, "log", "", "Append frames to a CSV file")
	monitorCmd.Flags().BoolVar(&monitorReconnect, "reconnect", false, "Reconnect automatically when the stream dies")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	var logger *frameLogger
	if monitorLog != "" {
		var err error
		logger, err = newFrameLogger(monitorLog)
		if err != nil {
			return err
		}
	}

	dev, connInfo, err := openDevice()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	if monitorText {
		return runTextMonitor(dev, connInfo, logger)
	}
	return runTUIMonitor(dev, connInfo, logger)
}

//////////////////////////////////////////////////////////////
// CSV frame log
//////////////////////////////////////////////////////////////

var frameLogHeader = []string{
	"time", "buttons", "thumb_x", "thumb_y", "thumb_size",
	"bar0_touches", "bar0_pos", "bar1_touches", "bar1_pos", "bar2_touches", "bar2_pos",
}

// frameLogger appends touch frames to a CSV file, one row per frame,
// flushed per row so an interrupted session keeps its data.
type frameLogger struct {
	mu sync.Mutex
	f  *os.File
	w  *csv.Writer
}

func newFrameLogger(path string) (*frameLogger, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	if err := w.Write(frameLogHeader); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return nil, err
	}
	return &frameLogger{f: f, w: w}, nil
}

// Log writes one frame. Diagnostic frames carry no touch data and are
// skipped.
func (l *frameLogger) Log(f *nchorder.TouchFrame) error {
	if f.IsDiagnostic() {
		return nil
	}

	row := []string{
		f.Time.Format(time.RFC3339Nano),
		fmt.Sprintf("0x%05X", f.Buttons),
		strconv.Itoa(int(f.ThumbX)),
		strconv.Itoa(int(f.ThumbY)),
		strconv.Itoa(int(f.ThumbSize)),
	}
	for _, bar := range f.Bars {
		row = append(row, strconv.Itoa(len(bar)))
		if len(bar) > 0 {
			row = append(row, strconv.Itoa(int(bar[0].Pos)))
		} else {
			row = append(row, "")
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.w.Write(row); err != nil {
		return err
	}
	l.w.Flush()
	return l.w.Error()
}

func (l *frameLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	return l.f.Close()
}

//////////////////////////////////////////////////////////////
// Text mode
//////////////////////////////////////////////////////////////

func runTextMonitor(dev *nchorder.Device, connInfo string, logger *frameLogger) error {
	if logger != nil {
		defer logger.Close()
	}

	fmt.Printf("nChorder - Touch Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Rate: %d Hz\n", monitorRate)
	if logger != nil {
		fmt.Printf("Logging to: %s\n", monitorLog)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stopSignals()

	for {
		streamer := nchorder.NewStreamer(dev)
		if err := streamer.Start(monitorRate); err != nil {
			fmt.Fprintf(os.Stderr, "Stream start failed: %v\n", err)
			os.Exit(2)
		}

		lost := textStreamLoop(ctx, streamer, logger)

		if !lost {
			if err := streamer.Stop(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			}
			stats := streamer.Stats()
			fmt.Println()
			fmt.Print(stats.String())
			dev.Close()
			return nil
		}

		log.Printf("[monitor] connection lost")
		dev.Close()
		if !monitorReconnect {
			fmt.Fprintf(os.Stderr, "Connection lost (use --reconnect to retry automatically)\n")
			os.Exit(2)
		}

		newDev, newInfo, ok := reconnectWithBackoff(ctx)
		if !ok {
			return nil
		}
		dev = newDev
		log.Printf("[monitor] reconnected: %s", newInfo)
	}
}

// textStreamLoop prints frames until the stream dies (returns true) or the
// context is cancelled (returns false).
func textStreamLoop(ctx context.Context, streamer *nchorder.Streamer, logger *frameLogger) bool {
	statsTicker := time.NewTicker(10 * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false

		case frame, ok := <-streamer.Frames():
			if !ok {
				return true
			}
			fmt.Println(nchorder.FormatFrameLine(&frame))
			if logger != nil {
				if err := logger.Log(&frame); err != nil {
					log.Printf("[monitor] log write: %v", err)
				}
			}

		case <-streamer.Done():
			return true

		case <-statsTicker.C:
			stats := streamer.Stats()
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}

// reconnectWithBackoff retries openDevice until it succeeds or the context
// is cancelled. Backoff starts at 1s and doubles to a 30s ceiling.
func reconnectWithBackoff(ctx context.Context) (*nchorder.Device, string, bool) {
	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil, "", false
		case <-time.After(backoff):
		}

		dev, connInfo, err := openDevice()
		if err == nil {
			return dev, connInfo, true
		}
		log.Printf("[monitor] reconnect failed: %v", err)

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

//////////////////////////////////////////////////////////////
// TUI mode
//////////////////////////////////////////////////////////////

// streamManager owns the device and streamer for the TUI, forwards frame
// batches to the program and handles reconnection.
type streamManager struct {
	mu       sync.RWMutex
	dev      *nchorder.Device
	streamer *nchorder.Streamer
	connInfo string

	p      *tea.Program
	logger *frameLogger
	done   chan struct{}
}

func (sm *streamManager) current() *nchorder.Streamer {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.streamer
}

func (sm *streamManager) set(dev *nchorder.Device, streamer *nchorder.Streamer, connInfo string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.dev = dev
	sm.streamer = streamer
	sm.connInfo = connInfo
}

// shutdown stops the stream and closes the transport, best effort.
func (sm *streamManager) shutdown() {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if sm.streamer != nil {
		sm.streamer.Stop()
	}
	if sm.dev != nil {
		sm.dev.Close()
	}
	if sm.logger != nil {
		sm.logger.Close()
	}
}

func runTUIMonitor(dev *nchorder.Device, connInfo string, logger *frameLogger) error {
	streamer := nchorder.NewStreamer(dev)
	if err := streamer.Start(monitorRate); err != nil {
		dev.Close()
		fmt.Fprintf(os.Stderr, "Stream start failed: %v\n", err)
		os.Exit(2)
	}

	sm := &streamManager{
		dev:      dev,
		streamer: streamer,
		connInfo: connInfo,
		logger:   logger,
		done:     make(chan struct{}),
	}

	m := initialMonitorModel(sm, connInfo, monitorRate)
	p := tea.NewProgram(m, tea.WithAltScreen())
	sm.p = p

	go sm.forwardLoop()

	if _, err := p.Run(); err != nil {
		close(sm.done)
		sm.shutdown()
		return fmt.Errorf("TUI error: %v", err)
	}

	close(sm.done)
	sm.shutdown()
	return nil
}

// forwardLoop forwards frames for the current stream and, when it dies,
// either reconnects or parks until shutdown.
func (sm *streamManager) forwardLoop() {
	for {
		select {
		case <-sm.done:
			return
		default:
		}

		connLost := sm.forwardFrames()
		if !connLost {
			return
		}

		sm.p.Send(connectionLostMsg{})
		if !monitorReconnect {
			// Leave the loss on screen; nothing left to read.
			<-sm.done
			return
		}
		if !sm.reconnect() {
			return
		}
	}
}

// forwardFrames batches frames from the current stream to the TUI at a
// fixed rate. Returns true if the stream died, false on shutdown.
func (sm *streamManager) forwardFrames() bool {
	streamer := sm.current()
	frames := streamer.Frames()
	workerDone := streamer.Done()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	var batch []nchorder.TouchFrame
	for {
		select {
		case <-sm.done:
			return false

		case frame, ok := <-frames:
			if !ok {
				return sm.lostOrShutdown()
			}
			if sm.logger != nil {
				if err := sm.logger.Log(&frame); err != nil {
					sm.p.Send(monitorLogErrMsg{err: err})
				}
			}
			batch = append(batch, frame)

		case <-workerDone:
			return sm.lostOrShutdown()

		case <-ticker.C:
			if len(batch) > 0 {
				sm.p.Send(monitorBatchMsg{frames: batch, stats: streamer.Stats()})
				batch = nil
			}
		}
	}
}

func (sm *streamManager) lostOrShutdown() bool {
	select {
	case <-sm.done:
		return false
	default:
		return true
	}
}

// reconnect attempts to reopen the device and restart the stream with
// exponential backoff. Returns false if shutdown was requested.
func (sm *streamManager) reconnect() bool {
	sm.mu.Lock()
	if sm.streamer != nil {
		sm.streamer.Stop()
	}
	if sm.dev != nil {
		sm.dev.Close()
	}
	sm.mu.Unlock()

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-sm.done:
			return false
		case <-time.After(backoff):
		}

		dev, connInfo, err := openDevice()
		if err == nil {
			streamer := nchorder.NewStreamer(dev)
			if err := streamer.Start(monitorRate); err == nil {
				sm.set(dev, streamer, connInfo)
				sm.p.Send(reconnectedMsg{connInfo: connInfo})
				return true
			}
			dev.Close()
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
