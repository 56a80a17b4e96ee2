// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package consolidate merges closely spaced requests for results of
// the same query into one upstream call.
//
// Requests that share a batch identity (query plus normalized
// assumptions) and arrive within the batch window join one batch. When
// the window elapses the batch is flushed: one FetchResult covering
// every accumulated result identifier, with the batch's normalized
// assumptions, goes upstream, and the response
// is split back into one outcome per identifier. A request with a
// different identity flushes the pending batch immediately and starts
// a new one, so at most one batch is pending at a time.
//
// A missing or malformed result fails only its own identifier with a
// [errs.ResultNotFoundError]. An upstream failure fails every
// identifier in the batch with the same error.
package consolidate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/moresteps/lib/clock"
	"github.com/bureau-foundation/moresteps/lib/dedup"
	"github.com/bureau-foundation/moresteps/lib/envelope"
	"github.com/bureau-foundation/moresteps/lib/errs"
	"github.com/bureau-foundation/moresteps/lib/future"
)

// DefaultWindow is how long a batch stays open for more requests.
const DefaultWindow = 500 * time.Millisecond

// stepsMarker identifies the step-by-step subpod by title.
const stepsMarker = "steps"

// Upstream performs the actual fetches for a flushed batch.
type Upstream interface {
	FetchResult(ctx context.Context, request envelope.FetchResult) (*envelope.QueryResult, error)
	FetchDeferred(ctx context.Context, reference string) (*envelope.QueryResult, error)
}

// Config holds the consolidator's collaborators.
type Config struct {
	Upstream Upstream

	// Clock drives the batch window. Nil means the real clock.
	Clock clock.Clock

	// Window is the batch window. Zero means DefaultWindow.
	Window time.Duration

	// Deferred reports whether flushed batches should ask upstream for
	// deferred references to expensive results. Consulted once per
	// flush. Nil means never.
	Deferred func(ctx context.Context) bool

	Logger *slog.Logger
}

// Consolidator batches requests. The zero value is not usable; create
// one with New.
type Consolidator struct {
	upstream Upstream
	clock    clock.Clock
	window   time.Duration
	deferred func(ctx context.Context) bool
	logger   *slog.Logger

	// runContext bounds upstream calls made by flushed batches.
	runContext context.Context
	cancelRuns context.CancelFunc

	mu      sync.Mutex
	pending *batch

	inflight sync.WaitGroup
}

type batch struct {
	identity    dedup.Key
	query       string
	assumptions []string

	// resultIDs holds each identifier once, in arrival order.
	resultIDs []string
	waiters   map[string][]*future.Future[envelope.ImageData]

	timer *clock.Timer
}

// New creates a consolidator.
func New(config Config) (*Consolidator, error) {
	if config.Upstream == nil {
		return nil, fmt.Errorf("consolidate: Upstream is required")
	}
	if config.Window < 0 {
		return nil, fmt.Errorf("consolidate: negative Window %v", config.Window)
	}
	if config.Window == 0 {
		config.Window = DefaultWindow
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Deferred == nil {
		config.Deferred = func(context.Context) bool { return false }
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	runContext, cancel := context.WithCancel(context.Background())
	return &Consolidator{
		upstream:   config.Upstream,
		clock:      config.Clock,
		window:     config.Window,
		deferred:   config.Deferred,
		logger:     config.Logger,
		runContext: runContext,
		cancelRuns: cancel,
	}, nil
}

// Request adds one result identifier to the current batch and returns
// the future for its image data.
func (c *Consolidator) Request(query, resultID string, assumptions []string) *future.Future[envelope.ImageData] {
	return c.RequestMany(query, []string{resultID}, assumptions)[0]
}

// RequestMany adds several identifiers to the current batch. The
// returned futures are in the order of resultIDs. An empty list adds
// nothing and returns nil.
func (c *Consolidator) RequestMany(query string, resultIDs []string, assumptions []string) []*future.Future[envelope.ImageData] {
	if len(resultIDs) == 0 {
		return nil
	}
	identity := dedup.NewKey(query, "", assumptions)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != nil && c.pending.identity != identity {
		c.logger.Debug("different query arrived, flushing pending batch",
			"pending_query", c.pending.query,
			"query", query,
		)
		c.dispatchLocked()
	}
	if c.pending == nil {
		created := &batch{
			identity:    identity,
			query:       query,
			assumptions: identity.Assumptions(),
			waiters:     make(map[string][]*future.Future[envelope.ImageData]),
		}
		created.timer = c.clock.AfterFunc(c.window, func() { c.expire(created) })
		c.pending = created
	}

	futures := make([]*future.Future[envelope.ImageData], len(resultIDs))
	for index, resultID := range resultIDs {
		waiter := future.New[envelope.ImageData]()
		if _, seen := c.pending.waiters[resultID]; !seen {
			c.pending.resultIDs = append(c.pending.resultIDs, resultID)
		}
		c.pending.waiters[resultID] = append(c.pending.waiters[resultID], waiter)
		futures[index] = waiter
	}
	return futures
}

// RequestImmediate fetches resultIDs in a batch of their own without
// waiting for the window and without disturbing the pending batch.
func (c *Consolidator) RequestImmediate(query string, resultIDs []string, assumptions []string) []*future.Future[envelope.ImageData] {
	if len(resultIDs) == 0 {
		return nil
	}
	identity := dedup.NewKey(query, "", assumptions)
	single := &batch{
		identity:    identity,
		query:       query,
		assumptions: identity.Assumptions(),
		waiters:     make(map[string][]*future.Future[envelope.ImageData]),
	}
	futures := make([]*future.Future[envelope.ImageData], len(resultIDs))
	for index, resultID := range resultIDs {
		waiter := future.New[envelope.ImageData]()
		if _, seen := single.waiters[resultID]; !seen {
			single.resultIDs = append(single.resultIDs, resultID)
		}
		single.waiters[resultID] = append(single.waiters[resultID], waiter)
		futures[index] = waiter
	}

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		c.run(single)
	}()
	return futures
}

// Flush dispatches the pending batch now, if there is one.
func (c *Consolidator) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		c.dispatchLocked()
	}
}

// Close flushes the pending batch and waits for all dispatched batches
// to settle. Cancelling ctx abandons the wait and cancels upstream
// calls still in progress.
func (c *Consolidator) Close(ctx context.Context) error {
	c.Flush()

	finished := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		c.cancelRuns()
		return nil
	case <-ctx.Done():
		c.cancelRuns()
		return ctx.Err()
	}
}

// expire is the timer callback for b. A batch that was already flushed
// by a different query is no longer pending and is left alone.
func (c *Consolidator) expire(b *batch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != b {
		return
	}
	c.dispatchLocked()
}

// dispatchLocked detaches the pending batch and runs it. Caller holds
// c.mu.
func (c *Consolidator) dispatchLocked() {
	flushed := c.pending
	c.pending = nil
	flushed.timer.Stop()

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		c.run(flushed)
	}()
}

func (c *Consolidator) run(b *batch) {
	ctx := c.runContext
	request := envelope.FetchResult{
		Query:       b.query,
		ResultIDs:   b.resultIDs,
		Assumptions: b.assumptions,
		Deferred:    c.deferred(ctx),
	}

	c.logger.Info("fetching results",
		"query", b.query,
		"result_ids", b.resultIDs,
		"deferred", request.Deferred,
	)

	response, err := c.upstream.FetchResult(ctx, request)
	if err != nil {
		c.logger.Warn("batch fetch failed", "query", b.query, "error", err)
		for _, waiters := range b.waiters {
			for _, waiter := range waiters {
				waiter.Reject(err)
			}
		}
		return
	}

	var extraction sync.WaitGroup
	for _, resultID := range b.resultIDs {
		extraction.Add(1)
		go func() {
			defer extraction.Done()
			data, err := c.extract(ctx, b.query, resultID, response)
			for _, waiter := range b.waiters[resultID] {
				if err != nil {
					waiter.Reject(err)
				} else {
					waiter.Resolve(data)
				}
			}
		}()
	}
	extraction.Wait()
}

// extract finds the step-by-step image for one result identifier in a
// batch response, following a deferred reference if the pod has one.
func (c *Consolidator) extract(ctx context.Context, query, resultID string, response *envelope.QueryResult) (envelope.ImageData, error) {
	notFound := func(reason string) error {
		return &errs.ResultNotFoundError{Query: query, ResultID: resultID, Reason: reason}
	}

	if len(response.Pods) == 0 {
		return envelope.ImageData{}, notFound("response contained no result pods; try disabling the includepodid option")
	}
	pod, found := response.FindPod(resultID)
	if !found {
		return envelope.ImageData{}, notFound("result not present in response")
	}

	if pod.Deferred != "" {
		c.logger.Debug("following deferred result", "query", query, "result_id", resultID)
		deferred, err := c.upstream.FetchDeferred(ctx, pod.Deferred)
		if err != nil {
			return envelope.ImageData{}, err
		}
		if len(deferred.Pods) == 0 {
			return envelope.ImageData{}, notFound("deferred response was empty")
		}
		pod = deferred.Pods[0]
	}

	for _, subpod := range pod.Subpods {
		if !strings.Contains(subpod.Title, stepsMarker) || subpod.Image == nil || subpod.Image.Src == "" {
			continue
		}
		return envelope.ImageData{
			Src:    subpod.Image.Src,
			Width:  subpod.Image.Width,
			Height: subpod.Image.Height,
			Host:   response.Host,
		}, nil
	}
	return envelope.ImageData{}, notFound("no step-by-step image subpod")
}
