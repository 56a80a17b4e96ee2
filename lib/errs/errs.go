// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package errs defines the failure taxonomy of the orchestration
// layer and its wire form.
//
// Each error type has a fixed blast radius. A [TransportError] or an
// [UpstreamError] fails every request riding the affected batch or
// call. A [ResultNotFoundError] fails one result identifier and leaves
// its siblings alone. A [MalformedEventError] is reported and the event
// is delivered unmodified. A [NoCredentialError] aborts one request
// chain before any network attempt.
//
// Errors cross context boundaries as a [WireError] record and are
// rebuilt into the same type on the receiving side, so errors.As works
// identically on both ends:
//
//	var missing *errs.ResultNotFoundError
//	if errors.As(err, &missing) { ... }
package errs

import (
	"errors"
	"fmt"
)

// TransportError reports that a boundary was unreachable or closed.
type TransportError struct {
	// Op names the operation that failed ("post fetchResult",
	// "dial /run/moresteps/background.sock").
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transport: %s", e.Op)
	}
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UpstreamError reports a failure the remote query API reported, or
// an HTTP status the client could not accept.
type UpstreamError struct {
	Code       string
	Message    string
	StatusCode int
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Code != "":
		return fmt.Sprintf("API error: %s (code: %s)", e.Message, e.Code)
	case e.StatusCode != 0:
		return fmt.Sprintf("API error: HTTP %d: %s", e.StatusCode, e.Message)
	default:
		return "API request unsuccessful"
	}
}

// ResultNotFoundError reports that one requested result identifier is
// absent or unusable in an otherwise successful response.
type ResultNotFoundError struct {
	Query    string
	ResultID string
	Reason   string
}

func (e *ResultNotFoundError) Error() string {
	return fmt.Sprintf("result %q for query %q: %s", e.ResultID, e.Query, e.Reason)
}

// MalformedEventError reports an intercepted stream event whose
// payload could not be parsed.
type MalformedEventError struct {
	Err error
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed stream event: %v", e.Err)
}

func (e *MalformedEventError) Unwrap() error { return e.Err }

// NoCredentialError reports that a required API credential is not set.
type NoCredentialError struct {
	Name string
}

func (e *NoCredentialError) Error() string {
	return fmt.Sprintf("no %s set", e.Name)
}

// RemoteError is a failure from the far side of a boundary that has no
// more specific type.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

// ErrClosed is wrapped by the TransportError a caller receives when
// the channel it was waiting on shut down.
var ErrClosed = errors.New("channel closed")
