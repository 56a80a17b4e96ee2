// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bureau-foundation/moresteps/lib/codec"
	"github.com/bureau-foundation/moresteps/lib/envelope"
	"github.com/bureau-foundation/moresteps/lib/errs"
	"github.com/bureau-foundation/moresteps/lib/netutil"
)

// ConnPort is a Port over a stream connection. Envelopes are written
// as consecutive CBOR values; CBOR is self-delimiting, so no framing
// is added.
type ConnPort struct {
	conn    net.Conn
	logger  *slog.Logger
	inbound chan envelope.Envelope
	done    chan struct{}

	writeMu sync.Mutex
	encoder *codec.Encoder

	closeOnce sync.Once
}

// NewConnPort wraps conn and starts reading envelopes from it. The
// port owns conn and closes it on Close or when the peer hangs up.
func NewConnPort(conn net.Conn, logger *slog.Logger) *ConnPort {
	if logger == nil {
		logger = slog.Default()
	}
	port := &ConnPort{
		conn:    conn,
		logger:  logger,
		inbound: make(chan envelope.Envelope, pipeBuffer),
		done:    make(chan struct{}),
		encoder: codec.NewEncoder(conn),
	}
	go port.readLoop()
	return port
}

func (p *ConnPort) readLoop() {
	defer p.Close()

	decoder := codec.NewDecoder(p.conn)
	for {
		var message envelope.Envelope
		if err := decoder.Decode(&message); err != nil {
			if !netutil.IsExpectedCloseError(err) {
				p.logger.Warn("closing connection after read failure", "error", err)
			}
			return
		}
		select {
		case p.inbound <- message:
		case <-p.done:
			return
		}
	}
}

// Post encodes message onto the connection. The context's deadline,
// when present, bounds the write.
func (p *ConnPort) Post(ctx context.Context, message envelope.Envelope) error {
	select {
	case <-p.done:
		return &errs.TransportError{Op: "post", Err: errs.ErrClosed}
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	deadline, _ := ctx.Deadline()
	p.conn.SetWriteDeadline(deadline)
	defer p.conn.SetWriteDeadline(time.Time{})

	if err := p.encoder.Encode(message); err != nil {
		return &errs.TransportError{Op: "post", Err: err}
	}
	return nil
}

func (p *ConnPort) Inbound() <-chan envelope.Envelope { return p.inbound }

func (p *ConnPort) Done() <-chan struct{} { return p.done }

// Close closes the connection and the port.
func (p *ConnPort) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		err = p.conn.Close()
	})
	return err
}
