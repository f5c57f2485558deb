// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The chordctl authors

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/nchorder/chordctl/pkg/nchorder"
	"github.com/nchorder/chordctl/pkg/twiddler"
)

var (
	uploadChunkSize int
	uploadNoFlash   bool
	uploadWatch     bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file|layout>",
	Short: "Upload a chord configuration to the device",
	Long: `Upload a v7 configuration file to the device. The transfer is atomic:
the previous configuration stays active unless the device accepts the
complete new one. Bare names are resolved against the layouts directory
('chordctl layouts' lists them).

v4 and v5 files are rejected; run 'chordctl convert' first.

With --watch the command keeps running and re-uploads whenever the file
changes, which turns any editor into a live layout tuner. Press Ctrl-C
to stop. An interrupted transfer is aborted on the device before exit.

Exit codes:
  0 - Upload complete
  1 - File unreadable, wrong format, or rejected by the device
  2 - Connection or port access error`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().IntVar(&uploadChunkSize, "chunk-size", nchorder.DefaultChunkSize,
		fmt.Sprintf("UPLOAD_DATA payload size (1-%d)", nchorder.MaxChunkSize))
	uploadCmd.Flags().BoolVar(&uploadNoFlash, "no-flash", false,
		"Activate without persisting; the device reverts on power cycle")
	uploadCmd.Flags().BoolVar(&uploadWatch, "watch", false,
		"Stay running and re-upload whenever the file changes")
}

// readUploadFile validates that path holds a v7 configuration and reports
// its quirks. The raw bytes go to the device unmodified.
func readUploadFile(path string) ([]byte, *twiddler.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := twiddler.Parse(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %v", path, err)
	}
	if cfg.Version != twiddler.Version7 {
		return nil, nil, fmt.Errorf("%s is %s; the device only accepts v7 (run 'chordctl convert')",
			path, cfg.Version)
	}
	return data, cfg, nil
}

// uploadOnce pushes one file to the device, printing progress.
func uploadOnce(ctx context.Context, dev *nchorder.Device, path string) error {
	data, cfg, err := readUploadFile(path)
	if err != nil {
		return err
	}

	fmt.Printf("Layout: %s (%s, %d chords, %d bytes)\n",
		path, cfg.Version, len(cfg.Chords), len(data))
	for _, q := range twiddler.CheckQuirks(cfg) {
		fmt.Fprintln(os.Stderr, q)
	}

	progress := func(p nchorder.Progress) {
		switch p.Stage {
		case nchorder.StageStart:
			fmt.Printf("Uploading %d bytes in %d chunks...\n", p.TotalBytes, p.Chunks)
		case nchorder.StageData:
			if p.Chunk%16 == 0 || p.Chunk == p.Chunks {
				fmt.Printf("  sent %d/%d bytes\n", p.SentBytes, p.TotalBytes)
			}
		case nchorder.StageCommit:
			fmt.Printf("Committed: new configuration active (%.2fs)\n", p.Elapsed.Seconds())
		case nchorder.StageFlash:
			fmt.Println("Saved to flash.")
		}
	}

	return dev.Upload(ctx, data,
		nchorder.WithChunkSize(uploadChunkSize),
		nchorder.WithFlashPersist(!uploadNoFlash),
		nchorder.WithProgress(progress))
}

func runUpload(cmd *cobra.Command, args []string) error {
	path, err := resolveLayout(args[0])
	if err != nil {
		return err
	}

	dev, connInfo, err := openDevice()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer dev.Close()

	fmt.Printf("Connection: %s\n", connInfo)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := uploadOnce(ctx, dev, path); err != nil {
		if !uploadWatch {
			fmt.Fprintf(os.Stderr, "Upload failed: %v\n", err)
			os.Exit(1)
		}
		log.Printf("[watch] upload failed: %v", err)
	}

	if !uploadWatch {
		return nil
	}
	return watchAndUpload(ctx, dev, path)
}

// watchAndUpload re-uploads path whenever it changes. Editors typically
// write a temporary file and rename it over the target, so the watch is on
// the directory and events are debounced before re-reading.
func watchAndUpload(ctx context.Context, dev *nchorder.Device, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	log.Printf("[watch] watching %s, Ctrl-C to stop", path)

	const debounce = 500 * time.Millisecond
	eventTimer := time.NewTimer(debounce)
	eventTimer.Stop()
	pendingUpload := false

	for {
		select {
		case <-ctx.Done():
			log.Printf("[watch] interrupted, exiting")
			return nil

		case <-eventTimer.C:
			if !pendingUpload {
				continue
			}
			pendingUpload = false
			log.Printf("[watch] %s changed, re-uploading", path)
			if err := uploadOnce(ctx, dev, path); err != nil {
				log.Printf("[watch] upload failed: %v", err)
			}

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				// Reset to batch the write bursts editors produce
				pendingUpload = true
				eventTimer.Reset(debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("[watch] watcher error: %v", err)
		}
	}
}
