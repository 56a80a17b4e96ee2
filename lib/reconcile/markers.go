// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package reconcile restructures rendered step-by-step output whose
// content was already enriched upstream in the stream.
//
// The stream enricher records each image source it splices into an
// event in a [MarkerSet]. The [Observer] is handed batches of added
// nodes, the way a DOM mutation observer would see them, and for
// step-by-step blocks whose image is in the marker set it removes the
// upsell footer and unwraps the image from its placeholder container.
// Output whose image is not marked is left alone.
package reconcile

import (
	"sync"

	"github.com/zeebo/blake3"
)

// MarkerSet records content identifiers (image source URLs) that have
// already been patched. Identifiers are stored as BLAKE3 digests so the
// set's memory does not grow with URL length. Safe for concurrent use.
type MarkerSet struct {
	mu      sync.RWMutex
	digests map[[32]byte]struct{}
}

// NewMarkerSet returns an empty set.
func NewMarkerSet() *MarkerSet {
	return &MarkerSet{digests: make(map[[32]byte]struct{})}
}

// Add records identifier as patched.
func (m *MarkerSet) Add(identifier string) {
	digest := blake3.Sum256([]byte(identifier))
	m.mu.Lock()
	m.digests[digest] = struct{}{}
	m.mu.Unlock()
}

// Contains reports whether identifier was recorded.
func (m *MarkerSet) Contains(identifier string) bool {
	digest := blake3.Sum256([]byte(identifier))
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.digests[digest]
	return ok
}

// Len returns the number of recorded identifiers.
func (m *MarkerSet) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.digests)
}
