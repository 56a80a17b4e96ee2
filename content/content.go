// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package content is the orchestrating context between the page and
// background.
//
// The page asks for image data one result at a time. Content answers
// from its dedup cache when it can, and otherwise hands the miss to the
// consolidator, which merges closely spaced requests for the same
// query into one background fetch. Prefetch requests warm the same
// cache ahead of the stream events that will need the results.
//
// Failures never reach the page as errors: an image request that fails
// is reported on the notification board and answered with no data, so
// the page shows the event unpatched.
package content

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/moresteps/lib/channel"
	"github.com/bureau-foundation/moresteps/lib/clock"
	"github.com/bureau-foundation/moresteps/lib/consolidate"
	"github.com/bureau-foundation/moresteps/lib/dedup"
	"github.com/bureau-foundation/moresteps/lib/envelope"
	"github.com/bureau-foundation/moresteps/lib/future"
	"github.com/bureau-foundation/moresteps/lib/settings"
)

// Caller sends a request over a channel and decodes the reply.
// *channel.Bridge implements it.
type Caller interface {
	CallInto(ctx context.Context, message envelope.Message, result any) error
}

// Handler registers request handlers. *channel.Bridge implements it.
type Handler interface {
	Handle(kind envelope.Kind, handler channel.HandlerFunc)
}

// Reporter receives user-visible failure notices. *notify.Board
// implements it.
type Reporter interface {
	Report(text string, context ...any)
}

// Config holds the orchestrator's collaborators.
type Config struct {
	// Background is the channel to the background context.
	Background Caller

	// Settings supplies the prefetch, consolidate, and deferred options.
	Settings settings.Store

	// Reporter receives a notice for every failed image request. Nil
	// means failures are only logged.
	Reporter Reporter

	// Clock and Window drive the consolidator's batch window.
	Clock  clock.Clock
	Window time.Duration

	Logger *slog.Logger
}

// Orchestrator owns the content context's caches. Create one per
// navigation; discarding it discards everything it cached.
type Orchestrator struct {
	settings settings.Store
	reporter Reporter
	logger   *slog.Logger

	cache        *dedup.Cache[dedup.Key, envelope.ImageData]
	consolidator *consolidate.Consolidator

	// ctx bounds background prefetch work.
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
}

// New creates an orchestrator.
func New(config Config) (*Orchestrator, error) {
	if config.Background == nil {
		return nil, fmt.Errorf("content: Background is required")
	}
	if config.Settings == nil {
		return nil, fmt.Errorf("content: Settings is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	orchestrator := &Orchestrator{
		settings: config.Settings,
		reporter: config.Reporter,
		logger:   logger,
		cache:    dedup.New[dedup.Key, envelope.ImageData](dedup.Options{EvictFailures: true, Logger: logger}),
	}

	consolidator, err := consolidate.New(consolidate.Config{
		Upstream: &backgroundUpstream{caller: config.Background},
		Clock:    config.Clock,
		Window:   config.Window,
		Deferred: orchestrator.deferred,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	orchestrator.consolidator = consolidator
	orchestrator.ctx, orchestrator.cancel = context.WithCancel(context.Background())
	orchestrator.group = &errgroup.Group{}
	return orchestrator, nil
}

// Register installs the page-facing handlers on page.
func (o *Orchestrator) Register(page Handler) {
	page.Handle(envelope.KindImageData, o.handleImageData)
	page.Handle(envelope.KindPrefetch, o.handlePrefetch)
}

// Request returns the image data for one result, from the cache or
// through the consolidator.
func (o *Orchestrator) Request(query, resultID string, assumptions []string) *future.Future[envelope.ImageData] {
	return o.RequestMany(query, []string{resultID}, assumptions)[0]
}

// RequestMany returns one future per result identifier. Identifiers
// not already cached or in flight are sent to the consolidator
// together, so they share a batch.
func (o *Orchestrator) RequestMany(query string, resultIDs []string, assumptions []string) []*future.Future[envelope.ImageData] {
	return o.lookup(query, resultIDs, assumptions, o.consolidator.RequestMany)
}

// requestIndependent fetches each identifier in a batch of its own.
func (o *Orchestrator) requestIndependent(query string, resultIDs []string, assumptions []string) []*future.Future[envelope.ImageData] {
	futures := make([]*future.Future[envelope.ImageData], 0, len(resultIDs))
	for _, resultID := range resultIDs {
		futures = append(futures, o.lookup(query, []string{resultID}, assumptions, o.consolidator.RequestImmediate)...)
	}
	return futures
}

type dispatchFunc func(query string, resultIDs []string, assumptions []string) []*future.Future[envelope.ImageData]

// lookup resolves each identifier against the cache. Misses get a
// placeholder future in the cache first; the placeholders are then fed
// from a single dispatch covering every miss.
func (o *Orchestrator) lookup(query string, resultIDs []string, assumptions []string, dispatch dispatchFunc) []*future.Future[envelope.ImageData] {
	futures := make([]*future.Future[envelope.ImageData], len(resultIDs))
	var misses []string
	var placeholders []*future.Future[envelope.ImageData]

	for index, resultID := range resultIDs {
		key := dedup.NewKey(query, resultID, assumptions)
		result, created := o.cache.GetOrCreate(key, future.New[envelope.ImageData])
		futures[index] = result
		if created {
			misses = append(misses, resultID)
			placeholders = append(placeholders, result)
		}
	}

	if len(misses) == 0 {
		return futures
	}
	o.logger.Info("requesting image data", "query", query, "result_ids", misses)
	for index, dispatched := range dispatch(query, misses, assumptions) {
		future.Forward(dispatched, placeholders[index])
	}
	return futures
}

func (o *Orchestrator) handleImageData(ctx context.Context, message envelope.Message) (any, error) {
	request := message.(envelope.ImageDataRequest)
	data, err := o.Request(request.Query, request.ResultID, request.Assumptions).Wait(ctx)
	if err != nil {
		if ctx.Err() == nil {
			o.report(fmt.Sprintf("API processing failed: %v", err),
				"query", request.Query,
				"result_id", request.ResultID,
				"error", err,
			)
		}
		return (*envelope.ImageData)(nil), nil
	}
	return &data, nil
}

func (o *Orchestrator) handlePrefetch(ctx context.Context, message envelope.Message) (any, error) {
	request := message.(envelope.Prefetch)

	enabled, err := o.settings.Bool(ctx, settings.Prefetch)
	if err != nil {
		return nil, fmt.Errorf("reading %s option: %w", settings.Prefetch, err)
	}
	if !enabled || len(request.ResultIDs) == 0 {
		return nil, nil
	}
	consolidated, err := o.settings.Bool(ctx, settings.Consolidate)
	if err != nil {
		return nil, fmt.Errorf("reading %s option: %w", settings.Consolidate, err)
	}

	o.logger.Info("prefetching step-by-step images", "query", request.Query, "count", len(request.ResultIDs), "consolidate", consolidated)
	var futures []*future.Future[envelope.ImageData]
	if consolidated {
		futures = o.RequestMany(request.Query, request.ResultIDs, request.Assumptions)
	} else {
		futures = o.requestIndependent(request.Query, request.ResultIDs, request.Assumptions)
	}

	// Outcomes stay in the cache; the page picks them up with its
	// image requests. Here they are only logged.
	o.group.Go(func() error {
		waiters, waitContext := errgroup.WithContext(o.ctx)
		for index, pending := range futures {
			waiters.Go(func() error {
				if _, err := pending.Wait(waitContext); err != nil {
					o.logger.Debug("prefetch failed", "query", request.Query, "result_id", request.ResultIDs[index], "error", err)
				}
				return nil
			})
		}
		return waiters.Wait()
	})
	return nil, nil
}

// Close flushes pending batches and waits for prefetches and in-flight
// fetches to finish or for ctx to end.
func (o *Orchestrator) Close(ctx context.Context) error {
	err := o.consolidator.Close(ctx)
	o.cancel()
	o.group.Wait()
	return err
}

// Cached returns the number of results cached or in flight.
func (o *Orchestrator) Cached() int {
	return o.cache.Len()
}

func (o *Orchestrator) deferred(ctx context.Context) bool {
	enabled, err := o.settings.Bool(ctx, settings.Deferred)
	if err != nil {
		o.logger.Warn("reading deferred option, assuming off", "error", err)
		return false
	}
	return enabled
}

func (o *Orchestrator) report(text string, context ...any) {
	o.logger.Debug("image request failed", context...)
	if o.reporter != nil {
		o.reporter.Report(text, context...)
	}
}

// backgroundUpstream fetches results through the background context.
type backgroundUpstream struct {
	caller Caller
}

func (u *backgroundUpstream) FetchResult(ctx context.Context, request envelope.FetchResult) (*envelope.QueryResult, error) {
	var result envelope.QueryResult
	if err := u.caller.CallInto(ctx, request, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (u *backgroundUpstream) FetchDeferred(ctx context.Context, reference string) (*envelope.QueryResult, error) {
	var result envelope.QueryResult
	if err := u.caller.CallInto(ctx, envelope.FetchDeferred{Reference: reference}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
