// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/bureau-foundation/moresteps/background"
	"github.com/bureau-foundation/moresteps/content"
	"github.com/bureau-foundation/moresteps/lib/channel"
	"github.com/bureau-foundation/moresteps/lib/config"
	"github.com/bureau-foundation/moresteps/lib/notify"
	"github.com/bureau-foundation/moresteps/lib/settings"
	"github.com/bureau-foundation/moresteps/lib/wolfram"
	"github.com/bureau-foundation/moresteps/page"
)

// newClient builds the upstream API client from cfg.
func newClient(cfg *config.Config, logger *slog.Logger) (*wolfram.Client, error) {
	return wolfram.New(wolfram.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.APITimeout(),
		Rate:    rate.Limit(cfg.API.Rate),
		Burst:   cfg.API.Burst,
		Logger:  logger.With("component", "wolfram"),
	})
}

// contexts is a running page, content, and background chain.
type contexts struct {
	page         *page.Context
	orchestrator *content.Orchestrator
	board        *notify.Board

	bridges []*channel.Bridge
}

// startContexts connects page to content and content to background.
// With socketPath set, background is the `moresteps serve` process
// listening there; otherwise it runs in-process.
func startContexts(ctx context.Context, cfg *config.Config, store settings.Store, socketPath string, logger *slog.Logger) (*contexts, error) {
	running := &contexts{board: notify.New(logger.With("component", "notify"), nil)}

	var toBackground *channel.Bridge
	if socketPath != "" {
		bridge, err := channel.Dial(ctx, socketPath, logger.With("component", "channel"))
		if err != nil {
			return nil, err
		}
		toBackground = bridge
		running.bridges = append(running.bridges, bridge)
	} else {
		client, err := newClient(cfg, logger)
		if err != nil {
			return nil, err
		}
		contentEnd, backgroundEnd := channel.Pipe()
		backgroundBridge := channel.New(backgroundEnd, logger.With("component", "background"))
		background.New(client, store, logger.With("component", "background")).Register(backgroundBridge)
		toBackground = channel.New(contentEnd, logger.With("component", "content"))
		running.bridges = append(running.bridges, toBackground, backgroundBridge)
	}

	orchestrator, err := content.New(content.Config{
		Background: toBackground,
		Settings:   store,
		Reporter:   running.board,
		Window:     cfg.BatchWindow(),
		Logger:     logger.With("component", "content"),
	})
	if err != nil {
		running.closeBridges()
		return nil, err
	}
	running.orchestrator = orchestrator

	pageEnd, contentEnd := channel.Pipe()
	contentBridge := channel.New(contentEnd, logger.With("component", "content"))
	orchestrator.Register(contentBridge)
	pageBridge := channel.New(pageEnd, logger.With("component", "page"))
	running.bridges = append(running.bridges, contentBridge, pageBridge)

	running.page = page.New(pageBridge, nil, logger.With("component", "page"))
	return running, nil
}

// close flushes content's pending work and shuts every channel down.
func (c *contexts) close(ctx context.Context) error {
	err := c.orchestrator.Close(ctx)
	if closeErr := c.closeBridges(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	if err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

func (c *contexts) closeBridges() error {
	var errs []error
	for _, bridge := range c.bridges {
		if err := bridge.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
