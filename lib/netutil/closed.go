// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// peerGoneErrnos are the socket errors a read loop sees when the other
// context's process exits without closing its end cleanly.
var peerGoneErrnos = []syscall.Errno{syscall.EPIPE, syscall.ECONNRESET}

// IsExpectedCloseError reports whether err ends a context channel in
// the ordinary way: the peer hung up (EOF, also mid-envelope), this
// side closed the port, or the peer process went away. Read loops log
// anything else as a failure.
func IsExpectedCloseError(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, net.ErrClosed):
		return true
	}
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}
	for _, gone := range peerGoneErrnos {
		if errno == gone {
			return true
		}
	}
	return false
}
