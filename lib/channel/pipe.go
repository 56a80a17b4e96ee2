// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"
	"sync"

	"github.com/bureau-foundation/moresteps/lib/envelope"
	"github.com/bureau-foundation/moresteps/lib/errs"
)

// pipeBuffer is the number of envelopes each direction of a pipe holds
// before Post blocks.
const pipeBuffer = 64

// Pipe returns two connected in-process ports. An envelope posted on
// one arrives on the other's Inbound channel. Closing either end
// closes both.
func Pipe() (Port, Port) {
	shared := &pipeState{done: make(chan struct{})}
	left := &pipePort{state: shared, inbound: make(chan envelope.Envelope, pipeBuffer)}
	right := &pipePort{state: shared, inbound: make(chan envelope.Envelope, pipeBuffer)}
	left.peer = right
	right.peer = left
	return left, right
}

type pipeState struct {
	done      chan struct{}
	closeOnce sync.Once
}

type pipePort struct {
	state   *pipeState
	inbound chan envelope.Envelope
	peer    *pipePort
}

func (p *pipePort) Post(ctx context.Context, message envelope.Envelope) error {
	// Check closure first so a closed pipe fails deterministically even
	// when the peer's buffer has room.
	select {
	case <-p.state.done:
		return &errs.TransportError{Op: "post", Err: errs.ErrClosed}
	default:
	}
	select {
	case p.peer.inbound <- message:
		return nil
	case <-p.state.done:
		return &errs.TransportError{Op: "post", Err: errs.ErrClosed}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipePort) Inbound() <-chan envelope.Envelope { return p.inbound }

func (p *pipePort) Done() <-chan struct{} { return p.state.done }

func (p *pipePort) Close() error {
	p.state.closeOnce.Do(func() { close(p.state.done) })
	return nil
}
