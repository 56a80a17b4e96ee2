// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"

	"github.com/bureau-foundation/moresteps/lib/envelope"
)

// Port is one end of a bidirectional envelope channel.
//
// Inbound is never closed; readers select on Done alongside it. After
// Done is closed, envelopes already buffered on Inbound may still be
// drained.
type Port interface {
	// Post sends an envelope to the other end. It blocks until the
	// envelope is handed off, ctx is done, or the port closes.
	Post(ctx context.Context, message envelope.Envelope) error

	// Inbound delivers envelopes sent by the other end.
	Inbound() <-chan envelope.Envelope

	// Done is closed when the port can no longer carry messages in
	// either direction.
	Done() <-chan struct{}

	// Close shuts the port down. Safe to call more than once.
	Close() error
}
