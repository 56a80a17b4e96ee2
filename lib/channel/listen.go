// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
)

// Listen accepts connections on a Unix socket at socketPath until ctx
// is cancelled. Each accepted connection from a same-user peer gets
// its own Bridge, which setup configures (typically by registering
// handlers). The bridge is closed when the peer disconnects or ctx is
// cancelled.
//
// Any existing socket file at socketPath is removed before listening,
// and the socket file is removed on return. Listen waits for all
// connections to finish before returning.
func Listen(ctx context.Context, socketPath string, setup func(*Bridge), logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", socketPath, err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(socketPath)
	}()

	// Unblock Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	logger.Info("channel listening", "path", socketPath)

	var activeConnections sync.WaitGroup
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			logger.Error("accept failed", "error", err)
			continue
		}

		if err := checkPeer(conn); err != nil {
			logger.Warn("rejecting connection", "error", err)
			conn.Close()
			continue
		}

		activeConnections.Add(1)
		go func() {
			defer activeConnections.Done()
			bridge := New(NewConnPort(conn, logger), logger)
			setup(bridge)
			select {
			case <-bridge.Done():
			case <-ctx.Done():
			}
			bridge.Close()
		}()
	}

	activeConnections.Wait()
	return nil
}

// Dial connects to a socket served by Listen and returns a bridge over
// the connection.
func Dial(ctx context.Context, socketPath string, logger *slog.Logger) (*Bridge, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", socketPath, err)
	}
	return New(NewConnPort(conn, logger), logger), nil
}
