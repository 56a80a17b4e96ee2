// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package channel

import "net"

// checkPeer accepts every peer; SO_PEERCRED is Linux-only and the
// socket file's permissions are the only guard elsewhere.
func checkPeer(net.Conn) error { return nil }
