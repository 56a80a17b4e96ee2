// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/moresteps/lib/clock"
)

// handshakeTimeout bounds the WebSocket opening handshake.
const handshakeTimeout = 10 * time.Second

// Socket is a WebSocket push source.
type Socket struct {
	conn   *websocket.Conn
	origin string
	clock  clock.Clock
	logger *slog.Logger

	mu        sync.Mutex
	listeners []Listener

	closeOnce sync.Once
}

// Dial opens a WebSocket connection to url.
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Socket, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, response, err := dialer.DialContext(ctx, url, nil)
	if response != nil && response.Body != nil {
		response.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	return NewSocket(conn, url, logger), nil
}

// NewSocket wraps an established connection. origin is recorded on
// every event.
func NewSocket(conn *websocket.Conn, origin string, logger *slog.Logger) *Socket {
	if logger == nil {
		logger = slog.Default()
	}
	return &Socket{
		conn:   conn,
		origin: origin,
		clock:  clock.Real(),
		logger: logger,
	}
}

// AddListener registers listener for every subsequent frame. Wrap the
// listener with an Interceptor to enrich its events.
func (s *Socket) AddListener(listener Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

// Run reads frames until the peer closes the connection, ctx is
// cancelled, or a read fails. Each frame is delivered to every
// listener, in registration order, before the next frame is read. A
// normal close or cancellation returns nil.
func (s *Socket) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket closed by peer", "origin", s.origin)
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("reading from %s: %w", s.origin, err)
		}

		event := Event{
			Type:     "message",
			Data:     data,
			Origin:   s.origin,
			Received: s.clock.Now(),
		}

		s.mu.Lock()
		listeners := append([]Listener(nil), s.listeners...)
		s.mu.Unlock()

		for _, listener := range listeners {
			listener(event)
		}
	}
}

// Close closes the connection. Safe to call more than once.
func (s *Socket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}
