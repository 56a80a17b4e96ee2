// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package background is the only context that reaches the upstream
// API. It holds the API credential and answers content's fetch
// requests.
package background

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/moresteps/lib/channel"
	"github.com/bureau-foundation/moresteps/lib/envelope"
	"github.com/bureau-foundation/moresteps/lib/errs"
	"github.com/bureau-foundation/moresteps/lib/settings"
	"github.com/bureau-foundation/moresteps/lib/wolfram"
)

// Querier performs upstream API requests. *wolfram.Client implements
// it.
type Querier interface {
	PerformQuery(ctx context.Context, query wolfram.Query) (*envelope.QueryResult, error)
	FetchDeferred(ctx context.Context, reference string) (*envelope.QueryResult, error)
}

// Handler registers request handlers. *channel.Bridge implements it.
type Handler interface {
	Handle(kind envelope.Kind, handler channel.HandlerFunc)
}

// Service answers FetchResult and FetchDeferred requests.
type Service struct {
	client   Querier
	settings settings.Store
	logger   *slog.Logger
}

// New creates a Service.
func New(client Querier, store settings.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, settings: store, logger: logger}
}

// Register installs the content-facing handlers on content.
func (s *Service) Register(content Handler) {
	content.Handle(envelope.KindFetchResult, func(ctx context.Context, message envelope.Message) (any, error) {
		return s.FetchResult(ctx, message.(envelope.FetchResult))
	})
	content.Handle(envelope.KindFetchDeferred, func(ctx context.Context, message envelope.Message) (any, error) {
		return s.FetchDeferred(ctx, message.(envelope.FetchDeferred).Reference)
	})
}

// FetchResult performs one upstream query for every identifier in
// request. Without an API credential it fails with a
// *errs.NoCredentialError before any network attempt.
func (s *Service) FetchResult(ctx context.Context, request envelope.FetchResult) (*envelope.QueryResult, error) {
	appID, err := s.settings.String(ctx, settings.AppID)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", settings.AppID, err)
	}
	if appID == "" {
		return nil, &errs.NoCredentialError{Name: settings.AppID}
	}
	includePodID, err := s.settings.Bool(ctx, settings.IncludePodID)
	if err != nil {
		return nil, fmt.Errorf("reading %s option: %w", settings.IncludePodID, err)
	}

	s.logger.Info("fetching results",
		"query", request.Query,
		"result_ids", request.ResultIDs,
		"deferred", request.Deferred,
	)
	result, err := s.client.PerformQuery(ctx, wolfram.Query{
		AppID:        appID,
		Input:        request.Query,
		ResultIDs:    request.ResultIDs,
		Assumptions:  request.Assumptions,
		Deferred:     request.Deferred,
		IncludePodID: includePodID,
	})
	if err != nil {
		s.logger.Error("upstream query failed", "query", request.Query, "error", err)
		return nil, err
	}
	s.logger.Debug("upstream query answered", "query", request.Query, "pods", len(result.Pods))
	return result, nil
}

// FetchDeferred resolves a deferred pod reference.
func (s *Service) FetchDeferred(ctx context.Context, reference string) (*envelope.QueryResult, error) {
	result, err := s.client.FetchDeferred(ctx, reference)
	if err != nil {
		s.logger.Error("deferred fetch failed", "error", err)
		return nil, err
	}
	return result, nil
}
