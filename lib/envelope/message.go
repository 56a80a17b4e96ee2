// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

// Kind tags the payload variant of an envelope. Kind strings are
// protocol constants shared by all contexts.
type Kind string

const (
	KindFetchResult   Kind = "fetchResult"
	KindFetchDeferred Kind = "fetchDeferred"
	KindImageData     Kind = "imageData"
	KindPrefetch      Kind = "prefetch"
)

// Message is a request payload. The unexported method closes the set
// of implementations to this package.
type Message interface {
	Kind() Kind
	message()
}

// FetchResult asks the background context for one upstream query
// covering every listed result identifier.
type FetchResult struct {
	Query       string   `cbor:"query"`
	ResultIDs   []string `cbor:"result_ids"`
	Assumptions []string `cbor:"assumptions,omitempty"`

	// Deferred asks the upstream API to answer expensive results with
	// a reference to fetch later instead of computing them inline.
	Deferred bool `cbor:"deferred,omitempty"`
}

// FetchDeferred asks the background context to resolve a deferred
// reference from an earlier QueryResult.
type FetchDeferred struct {
	Reference string `cbor:"reference"`
}

// ImageDataRequest asks the content context for the step-by-step
// image of one result identifier. The reply payload is *ImageData, or
// empty when the content context could not produce one.
type ImageDataRequest struct {
	Query       string   `cbor:"query"`
	ResultID    string   `cbor:"result_id"`
	Assumptions []string `cbor:"assumptions,omitempty"`
}

// Prefetch asks the content context to start fetching results the
// page expects to need. The reply is sent before the fetch completes.
type Prefetch struct {
	Query       string   `cbor:"query"`
	ResultIDs   []string `cbor:"result_ids"`
	Assumptions []string `cbor:"assumptions,omitempty"`
}

func (FetchResult) Kind() Kind      { return KindFetchResult }
func (FetchDeferred) Kind() Kind    { return KindFetchDeferred }
func (ImageDataRequest) Kind() Kind { return KindImageData }
func (Prefetch) Kind() Kind         { return KindPrefetch }

func (FetchResult) message()      {}
func (FetchDeferred) message()    {}
func (ImageDataRequest) message() {}
func (Prefetch) message()         {}
