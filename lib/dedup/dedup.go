// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package dedup memoizes in-flight and settled results by request key
// so that concurrent identical requests share one outcome.
//
// The cache stores a future under its key before the work behind the
// future completes. Two callers racing on the same key therefore can
// never both miss: the second finds the first one's pending future and
// waits on it. Successful outcomes stay cached for the lifetime of the
// cache, which is the lifetime of the owning content context.
//
// Failed outcomes are shared by every caller that joined before the
// failure. Whether a later caller sees the cached failure or triggers
// fresh work is decided by [Options].EvictFailures.
package dedup

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/bureau-foundation/moresteps/lib/future"
)

// Key identifies one result request: a query, one result identifier
// within it, and the assumptions narrowing the query. Keys are
// comparable and immutable.
type Key struct {
	Query       string
	ResultID    string
	assumptions string
}

// NewKey builds a Key. Assumptions are normalized with
// NormalizeAssumptions, so two requests naming the same assumption set
// in a different order share a key.
func NewKey(query, resultID string, assumptions []string) Key {
	return Key{
		Query:       query,
		ResultID:    resultID,
		assumptions: encodeAssumptions(NormalizeAssumptions(assumptions)),
	}
}

// Assumptions returns the normalized assumption list of the key.
func (k Key) Assumptions() []string {
	return decodeAssumptions(k.assumptions)
}

// encodeAssumptions packs assumptions as length-prefixed entries
// ("<len>:<text>"), so no assumption text can collide with an entry
// boundary.
func encodeAssumptions(assumptions []string) string {
	var builder strings.Builder
	for _, assumption := range assumptions {
		builder.WriteString(strconv.Itoa(len(assumption)))
		builder.WriteByte(':')
		builder.WriteString(assumption)
	}
	return builder.String()
}

func decodeAssumptions(packed string) []string {
	var assumptions []string
	for packed != "" {
		colon := strings.IndexByte(packed, ':')
		length, _ := strconv.Atoi(packed[:colon])
		packed = packed[colon+1:]
		assumptions = append(assumptions, packed[:length])
		packed = packed[length:]
	}
	return assumptions
}

// NormalizeAssumptions returns a sorted, duplicate-free copy of
// assumptions with empty entries dropped. Returns nil for an empty set.
func NormalizeAssumptions(assumptions []string) []string {
	if len(assumptions) == 0 {
		return nil
	}
	normalized := make([]string, 0, len(assumptions))
	for _, assumption := range assumptions {
		if assumption != "" {
			normalized = append(normalized, assumption)
		}
	}
	sort.Strings(normalized)
	unique := normalized[:0]
	for index, assumption := range normalized {
		if index > 0 && assumption == normalized[index-1] {
			continue
		}
		unique = append(unique, assumption)
	}
	if len(unique) == 0 {
		return nil
	}
	return unique
}

// Options configures a Cache.
type Options struct {
	// EvictFailures removes an entry once its future settles with an
	// error. Callers already holding the future still observe the
	// error; the next GetOrCreate for the key runs the factory again.
	// When false, a failure stays cached like a success.
	EvictFailures bool

	// Logger receives debug records for hits and evictions. Nil
	// discards them.
	Logger *slog.Logger
}

// Cache maps keys to futures.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*future.Future[V]
	options Options
	logger  *slog.Logger
}

// New returns an empty cache.
func New[K comparable, V any](options Options) *Cache[K, V] {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cache[K, V]{
		entries: make(map[K]*future.Future[V]),
		options: options,
		logger:  logger,
	}
}

// GetOrCreate returns the future cached under key, or calls factory,
// caches the future it returns, and returns that. created reports
// whether factory ran.
//
// factory runs with the cache lock held and must return promptly
// without calling back into the cache: it starts work and hands back
// the pending future, it does not wait for the outcome.
func (c *Cache[K, V]) GetOrCreate(key K, factory func() *future.Future[V]) (result *future.Future[V], created bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, found := c.entries[key]; found {
		c.logger.Debug("dedup hit", "key", key, "settled", existing.Settled())
		return existing, false
	}

	result = factory()
	c.entries[key] = result

	if c.options.EvictFailures {
		result.OnSettle(func(_ V, err error) {
			if err == nil {
				return
			}
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.entries[key] == result {
				delete(c.entries, key)
				c.logger.Debug("dedup evicted failed entry", "key", key, "error", err)
			}
		})
	}
	return result, true
}

// Lookup returns the future cached under key without creating one.
func (c *Cache[K, V]) Lookup(key K) (*future.Future[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	existing, found := c.entries[key]
	return existing, found
}

// Forget drops key from the cache. Holders of the old future are
// unaffected.
func (c *Cache[K, V]) Forget(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
