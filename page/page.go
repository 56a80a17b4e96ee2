// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package page is the context that sees the live event stream.
//
// It never talks to the upstream API. Step-by-step events are held by
// the stream interceptor while the page asks the content context for
// the full-resolution image over its channel, rewrites the event, and
// records the new image in the marker set so the reconciliation
// observer can recognize it in the rendered document later.
package page

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/moresteps/lib/envelope"
	"github.com/bureau-foundation/moresteps/lib/reconcile"
	"github.com/bureau-foundation/moresteps/lib/stream"
)

// stepByStepType is the event type carrying a step-by-step pod.
const stepByStepType = "stepByStep"

// Caller sends a request over a channel and decodes the reply.
// *channel.Bridge implements it.
type Caller interface {
	CallInto(ctx context.Context, message envelope.Message, result any) error
}

// Context is the page-side state: the channel to content and the
// markers of images it has patched.
type Context struct {
	content Caller
	markers *reconcile.MarkerSet
	logger  *slog.Logger
}

// New creates a page context. markers may be shared with a
// reconcile.Observer.
func New(content Caller, markers *reconcile.MarkerSet, logger *slog.Logger) *Context {
	if markers == nil {
		markers = reconcile.NewMarkerSet()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{content: content, markers: markers, logger: logger}
}

// Markers returns the set of image sources this context has patched in.
func (c *Context) Markers() *reconcile.MarkerSet { return c.markers }

// Enricher returns the stream enricher for step-by-step events.
func (c *Context) Enricher() stream.Enricher {
	return stream.EnricherFunc(c.inspect)
}

// Prefetch asks the content context to start fetching the listed
// results ahead of the events that will need them.
func (c *Context) Prefetch(ctx context.Context, query string, resultIDs, assumptions []string) error {
	if len(resultIDs) == 0 {
		return nil
	}
	return c.content.CallInto(ctx, envelope.Prefetch{
		Query:       query,
		ResultIDs:   resultIDs,
		Assumptions: assumptions,
	}, nil)
}

// ImageData asks content for one result's image. Returns nil when
// content has nothing better to offer.
func (c *Context) ImageData(ctx context.Context, query, resultID string, assumptions []string) (*envelope.ImageData, error) {
	var data *envelope.ImageData
	err := c.content.CallInto(ctx, envelope.ImageDataRequest{
		Query:       query,
		ResultID:    resultID,
		Assumptions: assumptions,
	}, &data)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Context) inspect(event *stream.Event) (stream.Enrichment, error) {
	var header struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(event.Data, &header); err != nil {
		return nil, fmt.Errorf("decoding event: %w", err)
	}
	if header.Type != stepByStepType {
		return nil, nil
	}

	payload, err := parseStepByStep(event.Data)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) error {
		data, err := c.ImageData(ctx, payload.query, payload.podID, payload.assumptions)
		if err != nil {
			return fmt.Errorf("requesting image data for %q: %w", payload.podID, err)
		}
		if data == nil {
			c.logger.Debug("no image data, event left unchanged", "query", payload.query, "result_id", payload.podID)
			return nil
		}
		rewritten, err := payload.rewrite(*data)
		if err != nil {
			return err
		}
		event.Data = rewritten
		c.markers.Add(data.Src)
		c.logger.Debug("patched step-by-step event", "query", payload.query, "result_id", payload.podID)
		return nil
	}, nil
}

// stepByStep is a decoded step-by-step event. The whole document is
// kept generic so fields this package does not know about survive the
// rewrite.
type stepByStep struct {
	document    map[string]any
	query       string
	podID       string
	assumptions []string
}

func parseStepByStep(data []byte) (*stepByStep, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var document map[string]any
	if err := decoder.Decode(&document); err != nil {
		return nil, fmt.Errorf("decoding step-by-step event: %w", err)
	}

	query, ok := document["query"].(string)
	if !ok {
		return nil, errors.New("step-by-step event has no query")
	}
	pod, ok := document["pod"].(map[string]any)
	if !ok {
		return nil, errors.New("step-by-step event has no pod")
	}
	podID, ok := pod["id"].(string)
	if !ok || podID == "" {
		return nil, errors.New("step-by-step event pod has no id")
	}

	var assumptions []string
	if list, ok := document["assumptions"].([]any); ok {
		for _, item := range list {
			if assumption, ok := item.(string); ok {
				assumptions = append(assumptions, assumption)
			}
		}
	}

	return &stepByStep{document: document, query: query, podID: podID, assumptions: assumptions}, nil
}

// rewrite replaces the first subpod's image and the host, and returns
// the re-encoded event.
func (s *stepByStep) rewrite(data envelope.ImageData) ([]byte, error) {
	pod := s.document["pod"].(map[string]any)
	subpods, ok := pod["subpods"].([]any)
	if !ok || len(subpods) == 0 {
		return nil, fmt.Errorf("pod %q has no subpods to patch", s.podID)
	}
	subpod, ok := subpods[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("pod %q first subpod is not an object", s.podID)
	}
	image, ok := subpod["img"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("pod %q first subpod has no image", s.podID)
	}

	image["src"] = data.Src
	image["width"] = data.Width
	image["height"] = data.Height
	s.document["host"] = data.Host

	encoded, err := json.Marshal(s.document)
	if err != nil {
		return nil, fmt.Errorf("encoding patched event: %w", err)
	}
	return encoded, nil
}
