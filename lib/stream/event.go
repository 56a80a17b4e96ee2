// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"time"
)

// Event is one frame from a push source.
type Event struct {
	// Type is the frame type, "message" for data frames.
	Type string

	// Data is the frame payload, usually JSON text.
	Data []byte

	// Origin is the URL or file the event came from.
	Origin string

	Received time.Time
}

// Listener receives events.
type Listener func(Event)

// Enrichment mutates the event its Enricher inspected. It runs on its
// own goroutine and the event is held back until it returns. An error
// leaves the event as it was before inspection.
type Enrichment func(ctx context.Context) error

// Enricher decides which events to enrich.
type Enricher interface {
	// Inspect returns the enrichment to run for event, or nil to let
	// the event pass unchanged. An error means the event could not be
	// understood; it passes through unchanged and the error is
	// reported.
	Inspect(event *Event) (Enrichment, error)
}

// EnricherFunc adapts a function to the Enricher interface.
type EnricherFunc func(event *Event) (Enrichment, error)

func (f EnricherFunc) Inspect(event *Event) (Enrichment, error) { return f(event) }

// Reporter receives user-visible failure notices.
type Reporter interface {
	Report(text string, context ...any)
}
