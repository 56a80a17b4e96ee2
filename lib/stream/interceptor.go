// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/moresteps/lib/errs"
)

// InterceptorConfig configures an Interceptor.
type InterceptorConfig struct {
	Enricher Enricher

	// Reporter, if set, receives a notice for every event that could
	// not be parsed or enriched.
	Reporter Reporter

	Logger *slog.Logger
}

// Interceptor wraps listeners so that their events are enriched and
// delivered in order.
type Interceptor struct {
	enricher Enricher
	reporter Reporter
	logger   *slog.Logger

	ctx    context.Context
	active sync.WaitGroup
}

// NewInterceptor creates an interceptor. Enrichments receive ctx;
// cancelling it asks running enrichments to give up.
func NewInterceptor(ctx context.Context, config InterceptorConfig) (*Interceptor, error) {
	if config.Enricher == nil {
		return nil, fmt.Errorf("stream: Enricher is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Interceptor{
		enricher: config.Enricher,
		reporter: config.Reporter,
		logger:   config.Logger,
		ctx:      ctx,
	}, nil
}

// Wrap returns a listener that enriches events before passing them to
// listener in arrival order. Each call to Wrap creates an independent
// ordering queue.
func (i *Interceptor) Wrap(listener Listener) Listener {
	queue := newOrderedQueue(listener)
	return func(event Event) {
		slot := queue.push(event)
		original := event

		enrichment, err := i.enricher.Inspect(&event)
		if err != nil {
			malformed := &errs.MalformedEventError{Err: err}
			i.logger.Warn("passing through unreadable event", "origin", event.Origin, "error", malformed)
			i.report("Couldn't process event", malformed)
			queue.complete(slot, original)
			return
		}
		if enrichment == nil {
			queue.complete(slot, original)
			return
		}

		i.active.Add(1)
		go func() {
			defer i.active.Done()
			if err := enrichment(i.ctx); err != nil {
				i.logger.Warn("enrichment failed, delivering event unchanged", "origin", event.Origin, "error", err)
				i.report("Couldn't enrich event", err)
				queue.complete(slot, original)
				return
			}
			queue.complete(slot, event)
		}()
	}
}

// Wait blocks until all started enrichments have finished.
func (i *Interceptor) Wait() {
	i.active.Wait()
}

func (i *Interceptor) report(text string, err error) {
	if i.reporter != nil {
		i.reporter.Report(fmt.Sprintf("%s: %v", text, err), "error", err)
	}
}
