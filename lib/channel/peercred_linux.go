// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// checkPeer rejects Unix socket peers running as a different user.
func checkPeer(conn net.Conn) error {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return nil
	}
	raw, err := unixConn.SyscallConn()
	if err != nil {
		return fmt.Errorf("reading peer credentials: %w", err)
	}

	var credentials *unix.Ucred
	var credentialErr error
	if err := raw.Control(func(fd uintptr) {
		credentials, credentialErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return fmt.Errorf("reading peer credentials: %w", err)
	}
	if credentialErr != nil {
		return fmt.Errorf("reading peer credentials: %w", credentialErr)
	}

	if uid := uint32(os.Getuid()); credentials.Uid != uid {
		return fmt.Errorf("peer pid %d runs as uid %d, want %d", credentials.Pid, credentials.Uid, uid)
	}
	return nil
}
