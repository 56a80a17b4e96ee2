// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/moresteps/cmd/moresteps/cli"
	"github.com/bureau-foundation/moresteps/lib/settings"
)

func (e *environment) settingsCommand() *cli.Command {
	var showSecrets bool
	return &cli.Command{
		Name:    "settings",
		Summary: "Show and change options",
		Description: `Show and change the options that steer fetching.

Options live in the settings database (paths.settings_db), shared by
every moresteps command on this machine.`,
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Summary: "List every option with its value",
				Flags: func() *pflag.FlagSet {
					flagSet := e.flags("settings list")
					flagSet.BoolVar(&showSecrets, "show-secrets", false, "print secret values instead of masking them")
					return flagSet
				},
				Run: func(ctx context.Context, _ []string, logger *slog.Logger) error {
					return e.withSettings(logger, func(store settings.Store) error {
						values, err := settings.Snapshot(ctx, store)
						if err != nil {
							return err
						}
						writer := tabwriter.NewWriter(e.stdout, 2, 0, 3, ' ', 0)
						fmt.Fprintln(writer, "NAME\tVALUE\tDEFAULT\tDESCRIPTION")
						for _, option := range settings.Options {
							fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
								option.Name, display(option, values[option.Name], showSecrets), display(option, option.Default, true), option.Description)
						}
						return writer.Flush()
					})
				},
			},
			{
				Name:    "get",
				Summary: "Print one option's value",
				Usage:   "moresteps settings get <name>",
				Flags:   func() *pflag.FlagSet { return e.flags("settings get") },
				Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
					if len(args) != 1 {
						return fmt.Errorf("settings get needs exactly one option name")
					}
					return e.withSettings(logger, func(store settings.Store) error {
						value, err := store.String(ctx, args[0])
						if err != nil {
							return err
						}
						fmt.Fprintln(e.stdout, value)
						return nil
					})
				},
			},
			{
				Name:    "set",
				Summary: "Change one option",
				Usage:   "moresteps settings set <name> <value>",
				Examples: []cli.Example{
					{Description: "Store the API AppID", Command: "moresteps settings set appid XXXXXX-XXXXXXXXXX"},
					{Description: "Fetch prefetched results one request each", Command: "moresteps settings set consolidate false"},
				},
				Flags: func() *pflag.FlagSet { return e.flags("settings set") },
				Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
					if len(args) != 2 {
						return fmt.Errorf("settings set needs an option name and a value")
					}
					return e.withSettings(logger, func(store settings.Store) error {
						return store.Set(ctx, args[0], args[1])
					})
				},
			},
			{
				Name:    "import",
				Summary: "Load options from a JSONC file",
				Usage:   "moresteps settings import <file>",
				Description: `Load options from a JSONC file (JSON with comments and trailing
commas) whose keys are option names. Every value is validated before
any is written.`,
				Flags: func() *pflag.FlagSet { return e.flags("settings import") },
				Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
					if len(args) != 1 {
						return fmt.Errorf("settings import needs exactly one file")
					}
					return e.withSettings(logger, func(store settings.Store) error {
						count, err := settings.Import(ctx, store, args[0])
						if err != nil {
							return err
						}
						fmt.Fprintf(e.stdout, "imported %d option(s)\n", count)
						return nil
					})
				},
			},
		},
	}
}

func (e *environment) withSettings(logger *slog.Logger, fn func(settings.Store) error) error {
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	store, err := e.openSettings(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

// display renders value for listing, masking secrets unless reveal is
// set.
func display(option settings.Option, value string, reveal bool) string {
	if value == "" {
		return "-"
	}
	if option.Secret && !reveal {
		if len(value) <= 4 {
			return strings.Repeat("*", len(value))
		}
		return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
	}
	return value
}
