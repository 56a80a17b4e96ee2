// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/moresteps/background"
	"github.com/bureau-foundation/moresteps/cmd/moresteps/cli"
	"github.com/bureau-foundation/moresteps/lib/channel"
)

func (e *environment) serveCommand() *cli.Command {
	var socketPath string
	return &cli.Command{
		Name:    "serve",
		Summary: "Run the background context on a Unix socket",
		Description: `Run the background context on a Unix socket.

The background context is the only one holding the API credential. Other
moresteps commands reach it with --socket; each connection gets its own
channel. Only processes of the same user may connect.`,
		Usage: "moresteps serve [flags]",
		Examples: []cli.Example{
			{Description: "Serve on the configured socket", Command: "moresteps serve"},
			{Description: "Serve on an explicit path", Command: "moresteps serve --socket /run/user/1000/moresteps.sock"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := e.flags("serve")
			flagSet.StringVar(&socketPath, "socket", "", "socket path (default: paths.socket from config)")
			return flagSet
		},
		Run: func(ctx context.Context, _ []string, logger *slog.Logger) error {
			cfg, err := e.loadConfig()
			if err != nil {
				return err
			}
			if socketPath == "" {
				socketPath = cfg.Paths.Socket
			}
			store, err := e.openSettings(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			client, err := newClient(cfg, logger)
			if err != nil {
				return err
			}
			service := background.New(client, store, logger.With("component", "background"))
			return channel.Listen(ctx, socketPath, func(bridge *channel.Bridge) {
				service.Register(bridge)
			}, logger.With("component", "channel"))
		},
	}
}
