// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCompressionFor(t *testing.T) {
	tests := []struct {
		path string
		want Compression
	}{
		{"session.jsonl", CompressionNone},
		{"session.jsonl.zst", CompressionZstd},
		{"session.zstd", CompressionZstd},
		{"session.jsonl.lz4", CompressionLZ4},
		{"session", CompressionNone},
	}
	for _, test := range tests {
		if got := CompressionFor(test.path); got != test.want {
			t.Errorf("CompressionFor(%q) = %s, want %s", test.path, got, test.want)
		}
	}
}

func TestRecordThenReplay(t *testing.T) {
	received := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []Event{
		{Type: "message", Data: []byte(`{"type":"stepByStep","pod":{"id":"Result"}}`), Origin: "wss://example/n/v1/api/fetcher/results", Received: received},
		{Type: "message", Data: []byte(`{"type":"pods"}`), Origin: "wss://example/n/v1/api/fetcher/results", Received: received.Add(time.Second)},
	}

	for _, name := range []string{"capture.jsonl", "capture.jsonl.zst", "capture.jsonl.lz4"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			recorder, err := Create(path)
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			for _, event := range events {
				if err := recorder.Record(event); err != nil {
					t.Fatalf("Record: %v", err)
				}
			}
			if err := recorder.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			var replayed []Event
			count, err := Replay(context.Background(), path, func(event Event) {
				replayed = append(replayed, event)
			})
			if err != nil {
				t.Fatalf("Replay: %v", err)
			}
			if count != len(events) || len(replayed) != len(events) {
				t.Fatalf("replayed %d events, want %d", count, len(events))
			}
			for index, event := range replayed {
				if string(event.Data) != string(events[index].Data) || !event.Received.Equal(events[index].Received) {
					t.Errorf("event %d = %+v", index, event)
				}
			}
		})
	}
}

func TestReplayRejectsCorruptLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jsonl")
	content := `{"type":"message","data":"ok","received":"2026-03-01T12:00:00Z"}` + "\n" + "not json\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	count, err := Replay(context.Background(), path, func(Event) {})
	if err == nil {
		t.Fatal("Replay accepted a corrupt line")
	}
	if count != 1 {
		t.Errorf("delivered %d events before the corrupt line, want 1", count)
	}
}

func TestReplayDefaultsOriginToPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bare.jsonl")
	if err := os.WriteFile(path, []byte(`{"type":"message","data":"x","received":"2026-03-01T12:00:00Z"}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var origin string
	if _, err := Replay(context.Background(), path, func(event Event) { origin = event.Origin }); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if origin != path {
		t.Errorf("origin = %q, want %q", origin, path)
	}
}
