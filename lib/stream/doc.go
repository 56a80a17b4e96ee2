// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package stream intercepts push-event streams, enriches selected
// events asynchronously, and delivers every event to its listener in
// arrival order.
//
// An [Interceptor] wraps a [Listener]. Each event handed to the
// wrapped listener is first appended to a per-listener ordering queue
// and then shown to the [Enricher]. Events the enricher ignores are
// complete immediately. Events it claims stay pending until their
// [Enrichment] finishes, successfully or not. After every completion
// the queue delivers events from its front for as long as the front
// event is complete, so a slow enrichment holds back everything that
// arrived after it and nothing is ever delivered out of order or
// twice.
//
// [Socket] is a WebSocket event source. Listeners registered with
// [Socket.AddListener] (wrapped or not) receive one [Event] per frame.
//
// [Recorder] and [Replay] write and read event captures: one JSON
// object per line, optionally compressed with zstd (".zst") or LZ4
// (".lz4") according to the file extension.
package stream
