// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the moresteps command tree.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/moresteps/cmd/moresteps/cli"
	"github.com/bureau-foundation/moresteps/lib/config"
	"github.com/bureau-foundation/moresteps/lib/settings"
	"github.com/bureau-foundation/moresteps/lib/version"
)

// environment is the state shared by every command of one invocation:
// output streams and the flags common to all commands.
type environment struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	verbose    bool
}

// Execute runs the command line args (without the program name).
func Execute(ctx context.Context, args []string) error {
	env := &environment{stdout: os.Stdout, stderr: os.Stderr}
	return env.root().Execute(ctx, args, env.newLogger)
}

func (e *environment) newLogger() *slog.Logger {
	return cli.NewLogger(e.verbose)
}

// flags returns a flag set carrying the common flags.
func (e *environment) flags(name string) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.StringVar(&e.configPath, "config", "", "path to moresteps.yaml (default: $"+config.EnvironmentVariable+", then built-in defaults)")
	flagSet.BoolVarP(&e.verbose, "verbose", "v", false, "log at debug level")
	return flagSet
}

// loadConfig loads --config, else the file named by the environment,
// else the defaults.
func (e *environment) loadConfig() (*config.Config, error) {
	if e.configPath != "" {
		return config.LoadFile(e.configPath)
	}
	if os.Getenv(config.EnvironmentVariable) != "" {
		return config.Load()
	}
	return config.Default(), nil
}

// openSettings opens the settings database named by cfg.
func (e *environment) openSettings(cfg *config.Config, logger *slog.Logger) (*settings.SQLite, error) {
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}
	return settings.OpenSQLite(cfg.Paths.SettingsDB, logger)
}

func (e *environment) root() *cli.Command {
	var showVersion bool
	return &cli.Command{
		Name: "moresteps",
		Description: `moresteps: step-by-step solution images for Wolfram|Alpha result streams.

Intercepts step-by-step events from a live or recorded result stream,
fetches the full solution image for each through the query API, and
delivers the patched events in their original order.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("moresteps", pflag.ContinueOnError)
			flagSet.BoolVar(&showVersion, "version", false, "print version information")
			return flagSet
		},
		Subcommands: []*cli.Command{
			e.serveCommand(),
			e.queryCommand(),
			e.watchCommand(),
			e.settingsCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(context.Context, []string, *slog.Logger) error {
					fmt.Fprintln(e.stdout, version.Full())
					return nil
				},
			},
		},
		Run: func(context.Context, []string, *slog.Logger) error {
			if showVersion {
				fmt.Fprintln(e.stdout, version.Info())
				return nil
			}
			return fmt.Errorf("subcommand required\n\nRun 'moresteps --help' for usage.")
		},
	}
}
