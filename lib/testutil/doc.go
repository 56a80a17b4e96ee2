// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive], [RequireSend], and [RequireClosed] wrap the
// select-with-timeout pattern so tests never block forever on a
// channel that a broken implementation never feeds. They are the only
// place tests use real wall-clock timeouts; everything the code under
// test times is driven by the fake clock in lib/clock.
//
// [SocketDir] returns a short directory for Unix sockets, whose paths
// are limited to 108 bytes and so cannot live under a deep t.TempDir.
//
// [DiscardLogger] returns an slog.Logger that drops everything.
//
// Helpers call t.Fatalf on failure rather than returning errors.
package testutil
