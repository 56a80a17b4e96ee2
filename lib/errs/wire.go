// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package errs

import (
	"errors"
	"strconv"
)

// Wire kinds. These strings are protocol constants.
const (
	wireTransport    = "transport"
	wireUpstream     = "upstream"
	wireNotFound     = "not-found"
	wireMalformed    = "malformed-event"
	wireNoCredential = "no-credential"
	wireRemote       = "remote"
)

// WireError is the boundary-crossing form of an error.
type WireError struct {
	Kind     string `cbor:"kind"`
	Message  string `cbor:"message"`
	Code     string `cbor:"code,omitempty"`
	Status   int    `cbor:"status,omitempty"`
	Query    string `cbor:"query,omitempty"`
	ResultID string `cbor:"result_id,omitempty"`
	Name     string `cbor:"name,omitempty"`
}

// Wire converts err into its wire form. Returns nil for a nil error.
func Wire(err error) *WireError {
	if err == nil {
		return nil
	}

	var transport *TransportError
	var upstream *UpstreamError
	var notFound *ResultNotFoundError
	var malformed *MalformedEventError
	var noCredential *NoCredentialError

	switch {
	case errors.As(err, &noCredential):
		return &WireError{Kind: wireNoCredential, Message: err.Error(), Name: noCredential.Name}
	case errors.As(err, &notFound):
		return &WireError{
			Kind:     wireNotFound,
			Message:  notFound.Reason,
			Query:    notFound.Query,
			ResultID: notFound.ResultID,
		}
	case errors.As(err, &upstream):
		return &WireError{
			Kind:    wireUpstream,
			Message: upstream.Message,
			Code:    upstream.Code,
			Status:  upstream.StatusCode,
		}
	case errors.As(err, &transport):
		return &WireError{Kind: wireTransport, Message: err.Error()}
	case errors.As(err, &malformed):
		return &WireError{Kind: wireMalformed, Message: err.Error()}
	default:
		return &WireError{Kind: wireRemote, Message: err.Error()}
	}
}

// FromWire rebuilds the typed error a WireError describes. Returns nil
// for a nil record.
func FromWire(record *WireError) error {
	if record == nil {
		return nil
	}
	switch record.Kind {
	case wireNoCredential:
		return &NoCredentialError{Name: record.Name}
	case wireNotFound:
		return &ResultNotFoundError{Query: record.Query, ResultID: record.ResultID, Reason: record.Message}
	case wireUpstream:
		return &UpstreamError{Code: record.Code, Message: record.Message, StatusCode: record.Status}
	case wireTransport:
		return &TransportError{Op: "remote", Err: &RemoteError{Message: record.Message}}
	case wireMalformed:
		return &MalformedEventError{Err: &RemoteError{Message: record.Message}}
	default:
		return &RemoteError{Message: record.Message}
	}
}

// String renders the record for logs.
func (w *WireError) String() string {
	if w.Code != "" {
		return w.Kind + ": " + w.Message + " (code " + w.Code + ")"
	}
	if w.Status != 0 {
		return w.Kind + ": " + w.Message + " (HTTP " + strconv.Itoa(w.Status) + ")"
	}
	return w.Kind + ": " + w.Message
}
