// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the CBOR configuration for envelopes crossing a
// context boundary.
//
// Two encodings meet in this module. The upstream query API and the
// intercepted page event stream speak JSON; that never changes and is
// decoded where it arrives. Everything the contexts say to each other
// (request envelopes, reply envelopes, typed error records) travels as
// CBOR through this package, so every port encodes identically.
//
// Buffer form, used for envelope payloads:
//
//	payload, err := codec.Marshal(request)
//	err = codec.Unmarshal(payload, &request)
//
// Stream form, used by connection ports:
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Payload types shared with the JSON side carry only `json` struct
// tags; fxamacker/cbor falls back to them when no `cbor` tag exists.
// Types that only ever cross a boundary carry `cbor` tags.
package codec
