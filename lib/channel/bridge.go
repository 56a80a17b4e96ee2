// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bureau-foundation/moresteps/lib/codec"
	"github.com/bureau-foundation/moresteps/lib/envelope"
	"github.com/bureau-foundation/moresteps/lib/errs"
	"github.com/bureau-foundation/moresteps/lib/future"
)

// HandlerFunc answers one inbound request. The returned value becomes
// the reply payload (nil for an empty payload); a non-nil error is
// sent as a typed error reply.
type HandlerFunc func(ctx context.Context, message envelope.Message) (any, error)

// Bridge provides request/response calls and request dispatch over a
// Port. A Bridge owns its port.
type Bridge struct {
	port   Port
	logger *slog.Logger

	sequence atomic.Uint64

	mu       sync.Mutex
	pending  map[uint64]*future.Future[envelope.Envelope]
	handlers map[envelope.Kind]HandlerFunc
	closed   bool

	listenOnce sync.Once

	// handlerContext is passed to request handlers and cancelled by
	// Close or when the port goes away.
	handlerContext context.Context
	cancelHandlers context.CancelFunc
}

// New creates a bridge on port. The inbound listener starts on the
// first Call or Handle.
func New(port Port, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	handlerContext, cancel := context.WithCancel(context.Background())
	return &Bridge{
		port:           port,
		logger:         logger,
		pending:        make(map[uint64]*future.Future[envelope.Envelope]),
		handlers:       make(map[envelope.Kind]HandlerFunc),
		handlerContext: handlerContext,
		cancelHandlers: cancel,
	}
}

// Handle registers handler for requests of the given kind. Panics if
// the kind already has a handler.
func (b *Bridge) Handle(kind envelope.Kind, handler HandlerFunc) {
	b.mu.Lock()
	if _, exists := b.handlers[kind]; exists {
		b.mu.Unlock()
		panic(fmt.Sprintf("channel.Bridge: duplicate handler for kind %q", kind))
	}
	b.handlers[kind] = handler
	b.mu.Unlock()

	b.ensureListening()
}

// Call sends message and returns the raw reply payload, which is empty
// when the peer replied with no value. An error reply is returned as
// the matching typed error from lib/errs.
func (b *Bridge) Call(ctx context.Context, message envelope.Message) (codec.RawMessage, error) {
	b.ensureListening()

	sequence := b.sequence.Add(1)
	request, err := envelope.Encode(sequence, message)
	if err != nil {
		return nil, err
	}

	reply := future.New[envelope.Envelope]()
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, &errs.TransportError{Op: "call", Err: errs.ErrClosed}
	}
	b.pending[sequence] = reply
	b.mu.Unlock()

	if err := b.port.Post(ctx, request); err != nil {
		b.forget(sequence)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &errs.TransportError{Op: "call", Err: err}
	}

	b.logger.Debug("request sent", "kind", message.Kind(), "sequence", sequence)

	response, err := reply.Wait(ctx)
	if err != nil {
		b.forget(sequence)
		return nil, err
	}
	if response.Error != nil {
		return nil, errs.FromWire(response.Error)
	}
	return response.Payload, nil
}

// CallInto is Call followed by decoding the reply payload into result.
// An empty reply leaves result untouched. A nil result discards the
// reply payload.
func (b *Bridge) CallInto(ctx context.Context, message envelope.Message, result any) error {
	payload, err := b.Call(ctx, message)
	if err != nil {
		return err
	}
	if len(payload) == 0 || result == nil {
		return nil
	}
	if err := codec.Unmarshal(payload, result); err != nil {
		return fmt.Errorf("decoding %s reply: %w", message.Kind(), err)
	}
	return nil
}

// Close shuts down the port, cancels running handlers, and fails all
// pending calls with a TransportError.
func (b *Bridge) Close() error {
	b.cancelHandlers()
	err := b.port.Close()
	b.failPending(&errs.TransportError{Op: "call", Err: errs.ErrClosed})
	return err
}

// Done is closed when the underlying port closes.
func (b *Bridge) Done() <-chan struct{} { return b.port.Done() }

func (b *Bridge) ensureListening() {
	b.listenOnce.Do(func() { go b.listen() })
}

func (b *Bridge) listen() {
	inbound := b.port.Inbound()
	for {
		select {
		case message := <-inbound:
			b.dispatch(message)
		case <-b.port.Done():
			// Deliver whatever arrived before the close.
		drain:
			for {
				select {
				case message := <-inbound:
					b.dispatch(message)
				default:
					break drain
				}
			}
			b.cancelHandlers()
			b.failPending(&errs.TransportError{Op: "receive", Err: errs.ErrClosed})
			return
		}
	}
}

func (b *Bridge) dispatch(message envelope.Envelope) {
	if message.Reply {
		b.mu.Lock()
		waiter, exists := b.pending[message.Sequence]
		delete(b.pending, message.Sequence)
		b.mu.Unlock()
		if !exists {
			b.logger.Debug("dropping reply with no pending call",
				"kind", message.Kind,
				"sequence", message.Sequence,
			)
			return
		}
		waiter.Resolve(message)
		return
	}

	b.mu.Lock()
	handler, exists := b.handlers[message.Kind]
	b.mu.Unlock()

	go func() {
		var result any
		var err error
		if !exists {
			err = &errs.RemoteError{Message: fmt.Sprintf("no handler for kind %q", message.Kind)}
		} else {
			result, err = b.serve(handler, message)
		}
		b.reply(message, result, err)
	}()
}

func (b *Bridge) serve(handler HandlerFunc, request envelope.Envelope) (any, error) {
	message, err := envelope.Decode(request)
	if err != nil {
		return nil, &errs.RemoteError{Message: err.Error()}
	}
	return handler(b.handlerContext, message)
}

func (b *Bridge) reply(request envelope.Envelope, result any, err error) {
	if err != nil {
		b.logger.Debug("request failed",
			"kind", request.Kind,
			"sequence", request.Sequence,
			"error", err,
		)
	}
	response, encodeErr := envelope.NewReply(request, result, err)
	if encodeErr != nil {
		response, _ = envelope.NewReply(request, nil, encodeErr)
	}
	if postErr := b.port.Post(b.handlerContext, response); postErr != nil {
		b.logger.Debug("reply not delivered",
			"kind", request.Kind,
			"sequence", request.Sequence,
			"error", postErr,
		)
	}
}

func (b *Bridge) forget(sequence uint64) {
	b.mu.Lock()
	delete(b.pending, sequence)
	b.mu.Unlock()
}

func (b *Bridge) failPending(err error) {
	b.mu.Lock()
	b.closed = true
	pending := b.pending
	b.pending = make(map[uint64]*future.Future[envelope.Envelope])
	b.mu.Unlock()

	for _, waiter := range pending {
		waiter.Reject(err)
	}
}
