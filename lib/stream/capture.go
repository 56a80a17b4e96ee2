// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies how a capture file is compressed. It is
// chosen from the file extension.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionLZ4
)

// String returns the human-readable name of a compression.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// CompressionFor returns the compression implied by path's extension.
func CompressionFor(path string) Compression {
	switch filepath.Ext(path) {
	case ".zst", ".zstd":
		return CompressionZstd
	case ".lz4":
		return CompressionLZ4
	default:
		return CompressionNone
	}
}

// maxCaptureLine bounds one event line in a capture file.
const maxCaptureLine = 16 * 1024 * 1024

// captureRecord is the on-disk form of one event.
type captureRecord struct {
	Type     string    `json:"type"`
	Data     string    `json:"data"`
	Origin   string    `json:"origin,omitempty"`
	Received time.Time `json:"received"`
}

// Recorder appends events to a capture file.
type Recorder struct {
	mu         sync.Mutex
	file       *os.File
	compressor io.WriteCloser
	encoder    *json.Encoder
}

// Create creates (or truncates) a capture file at path.
func Create(path string) (*Recorder, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating capture: %w", err)
	}

	recorder := &Recorder{file: file}
	var writer io.Writer = file
	switch CompressionFor(path) {
	case CompressionZstd:
		encoder, err := zstd.NewWriter(file, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("creating zstd writer: %w", err)
		}
		recorder.compressor = encoder
		writer = encoder
	case CompressionLZ4:
		compressor := lz4.NewWriter(file)
		recorder.compressor = compressor
		writer = compressor
	}
	recorder.encoder = json.NewEncoder(writer)
	return recorder, nil
}

// Record appends event to the capture.
func (r *Recorder) Record(event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.encoder.Encode(captureRecord{
		Type:     event.Type,
		Data:     string(event.Data),
		Origin:   event.Origin,
		Received: event.Received,
	})
}

// Close flushes any compressor and closes the file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.compressor != nil {
		if err := r.compressor.Close(); err != nil {
			r.file.Close()
			return fmt.Errorf("flushing capture: %w", err)
		}
	}
	return r.file.Close()
}

// Replay reads the capture at path and passes each event to listener
// in file order. Returns the number of events delivered.
func Replay(ctx context.Context, path string, listener Listener) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening capture: %w", err)
	}
	defer file.Close()

	var reader io.Reader = file
	switch CompressionFor(path) {
	case CompressionZstd:
		decoder, err := zstd.NewReader(file)
		if err != nil {
			return 0, fmt.Errorf("opening zstd capture: %w", err)
		}
		defer decoder.Close()
		reader = decoder
	case CompressionLZ4:
		reader = lz4.NewReader(file)
	}

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxCaptureLine)

	delivered := 0
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var record captureRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			return delivered, fmt.Errorf("capture %s line %d: %w", path, line, err)
		}
		origin := record.Origin
		if origin == "" {
			origin = path
		}
		listener(Event{
			Type:     record.Type,
			Data:     []byte(record.Data),
			Origin:   origin,
			Received: record.Received,
		})
		delivered++
	}
	if err := scanner.Err(); err != nil {
		return delivered, fmt.Errorf("reading capture %s: %w", path, err)
	}
	return delivered, nil
}
