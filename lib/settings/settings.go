// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package settings stores the user options that steer fetching: the
// upstream API credential and the prefetch, batching, and pod-filter
// switches.
//
// Every option has a fixed name, kind, and default (see [Options]).
// Values are stored as strings; [Store.Bool] parses them. Reading an
// option that was never set returns its default. Two backends exist:
// [Memory] for tests and ephemeral runs, and [SQLite] for persistent
// state shared between commands. [Import] loads values from a JSONC
// options file into any Store.
package settings

import (
	"context"
	"fmt"
	"strconv"
)

// Option names.
const (
	AppID        = "appid"
	Prefetch     = "prefetch"
	Consolidate  = "consolidate"
	IncludePodID = "includepodid"
	Deferred     = "deferred"
	HideBanner   = "misc-hidebanner"
)

// Kind is the value type of an option.
type Kind int

const (
	KindBool Kind = iota
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Option describes one setting.
type Option struct {
	Name        string
	Kind        Kind
	Default     string
	Description string

	// Secret options are masked when displayed.
	Secret bool
}

// Options lists every known option in display order.
var Options = []Option{
	{Name: AppID, Kind: KindString, Default: "", Description: "Wolfram|Alpha API AppID", Secret: true},
	{Name: Prefetch, Kind: KindBool, Default: "true", Description: "Prefetch step-by-step solutions when a query's results appear"},
	{Name: Consolidate, Kind: KindBool, Default: "true", Description: "Combine prefetches for one query into a single API request"},
	{Name: IncludePodID, Kind: KindBool, Default: "true", Description: "Restrict API responses to the requested pods"},
	{Name: Deferred, Kind: KindBool, Default: "false", Description: "Ask the API to defer expensive pods and fetch them separately"},
	{Name: HideBanner, Kind: KindBool, Default: "false", Description: "Hide the top banner"},
}

// Lookup returns the option named name.
func Lookup(name string) (Option, bool) {
	for _, option := range Options {
		if option.Name == name {
			return option, true
		}
	}
	return Option{}, false
}

// Store reads and writes options.
type Store interface {
	Bool(ctx context.Context, name string) (bool, error)
	String(ctx context.Context, name string) (string, error)
	Set(ctx context.Context, name, value string) error
}

// backend is the raw key-value layer behind a Store.
type backend interface {
	load(ctx context.Context, name string) (value string, found bool, err error)
	save(ctx context.Context, name, value string) error
}

// typed implements Store over a backend, applying defaults and
// validation.
type typed struct {
	backend backend
}

func (t typed) String(ctx context.Context, name string) (string, error) {
	option, ok := Lookup(name)
	if !ok {
		return "", fmt.Errorf("unknown option %q", name)
	}
	value, found, err := t.backend.load(ctx, name)
	if err != nil {
		return "", fmt.Errorf("reading option %s: %w", name, err)
	}
	if !found {
		return option.Default, nil
	}
	return value, nil
}

func (t typed) Bool(ctx context.Context, name string) (bool, error) {
	option, ok := Lookup(name)
	if !ok {
		return false, fmt.Errorf("unknown option %q", name)
	}
	if option.Kind != KindBool {
		return false, fmt.Errorf("option %s is a %s, not a bool", name, option.Kind)
	}
	value, err := t.String(ctx, name)
	if err != nil {
		return false, err
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("option %s has invalid value %q: %w", name, value, err)
	}
	return parsed, nil
}

func (t typed) Set(ctx context.Context, name, value string) error {
	option, ok := Lookup(name)
	if !ok {
		return fmt.Errorf("unknown option %q", name)
	}
	if option.Kind == KindBool {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("option %s takes true or false, got %q", name, value)
		}
		value = strconv.FormatBool(parsed)
	}
	if err := t.backend.save(ctx, name, value); err != nil {
		return fmt.Errorf("writing option %s: %w", name, err)
	}
	return nil
}

// Snapshot returns the current value of every option, keyed by name.
func Snapshot(ctx context.Context, store Store) (map[string]string, error) {
	values := make(map[string]string, len(Options))
	for _, option := range Options {
		value, err := store.String(ctx, option.Name)
		if err != nil {
			return nil, err
		}
		values[option.Name] = value
	}
	return values, nil
}
