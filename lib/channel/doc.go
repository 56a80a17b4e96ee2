// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package channel carries envelopes between isolated contexts and
// correlates requests with their replies.
//
// A [Port] is one end of a bidirectional message channel. Two
// implementations exist: [Pipe] connects two in-process ports through
// Go channels, and [NewConnPort] speaks a stream of self-delimiting
// CBOR envelopes over a net.Conn (typically a Unix socket).
//
// A [Bridge] sits on a Port and provides request/response semantics.
// [Bridge.Call] assigns the next sequence number, posts the request,
// and waits for the reply carrying the same sequence number. Replies
// may arrive in any order. Requests arriving from the other side are
// routed by kind to handlers registered with [Bridge.Handle], each on
// its own goroutine, and the handler's result is posted back as the
// reply.
//
// The bridge never times out a call on its own. Callers bound waits
// through their context. When the underlying port closes, every
// pending call fails with a [errs.TransportError] so no caller waits
// forever on a peer that has gone away.
//
// [Listen] and [Dial] set up bridges over a Unix socket. The listener
// accepts only peers running as the same user.
package channel
