// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestExecuteDispatchesToSubcommand(t *testing.T) {
	var called string
	var receivedArgs []string
	root := &Command{
		Name: "moresteps",
		Subcommands: []*Command{
			{
				Name: "settings",
				Subcommands: []*Command{
					{
						Name: "get",
						Run: func(_ context.Context, args []string, _ *slog.Logger) error {
							called = "settings get"
							receivedArgs = args
							return nil
						},
					},
				},
			},
			{
				Name: "serve",
				Run: func(context.Context, []string, *slog.Logger) error {
					called = "serve"
					return nil
				},
			},
		},
	}

	if err := root.Execute(context.Background(), []string{"settings", "get", "prefetch"}, discard); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if called != "settings get" {
		t.Errorf("dispatched to %q", called)
	}
	if len(receivedArgs) != 1 || receivedArgs[0] != "prefetch" {
		t.Errorf("args = %v", receivedArgs)
	}
}

func TestExecuteParsesFlags(t *testing.T) {
	var socket string
	var verbose bool
	var loggerVerbose bool
	command := &Command{
		Name: "serve",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("serve", pflag.ContinueOnError)
			flagSet.StringVar(&socket, "socket", "", "socket path")
			flagSet.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
			return flagSet
		},
		Run: func(context.Context, []string, *slog.Logger) error { return nil },
	}

	newLogger := func() *slog.Logger {
		loggerVerbose = verbose
		return discard()
	}
	if err := command.Execute(context.Background(), []string{"--socket", "/tmp/x.sock", "-v"}, newLogger); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if socket != "/tmp/x.sock" {
		t.Errorf("socket = %q", socket)
	}
	if !loggerVerbose {
		t.Error("logger was built before flags were parsed")
	}
}

func TestExecuteSuggestsCommand(t *testing.T) {
	root := &Command{
		Name:        "moresteps",
		Subcommands: []*Command{{Name: "query"}, {Name: "settings"}},
	}
	err := root.Execute(context.Background(), []string{"qurey"}, discard)
	if err == nil || !strings.Contains(err.Error(), `did you mean "query"`) {
		t.Fatalf("error = %v", err)
	}
}

func TestExecuteSuggestsFlag(t *testing.T) {
	command := &Command{
		Name: "query",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("query", pflag.ContinueOnError)
			flagSet.StringSlice("pod", nil, "result identifier")
			return flagSet
		},
		Run: func(context.Context, []string, *slog.Logger) error { return nil },
	}
	err := command.Execute(context.Background(), []string{"--pdo", "Indefinite"}, discard)
	if err == nil || !strings.Contains(err.Error(), "did you mean --pod") {
		t.Fatalf("error = %v", err)
	}
}

func TestExecuteRequiresSubcommand(t *testing.T) {
	root := &Command{Name: "moresteps", Subcommands: []*Command{{Name: "serve"}}}
	if err := root.Execute(context.Background(), nil, discard); err == nil {
		t.Fatal("Execute without a subcommand succeeded")
	}
}

func TestPrintHelp(t *testing.T) {
	root := &Command{
		Name:        "moresteps",
		Description: "Step-by-step image orchestration.",
		Subcommands: []*Command{{Name: "serve", Summary: "Run the background context"}},
		Examples:    []Example{{Description: "Run in the foreground", Command: "moresteps serve"}},
	}
	var buffer bytes.Buffer
	root.PrintHelp(&buffer)
	output := buffer.String()
	for _, want := range []string{"Step-by-step image orchestration.", "serve", "Run the background context", "# Run in the foreground"} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q:\n%s", want, output)
		}
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "abc", 3},
		{"serve", "serve", 0},
		{"serv", "serve", 1},
		{"qurey", "query", 2},
		{"kitten", "sitting", 3},
	}
	for _, test := range tests {
		if got := levenshtein(test.a, test.b); got != test.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
		}
	}
}

func TestNewLoggerFormats(t *testing.T) {
	var buffer bytes.Buffer
	newLogger(&buffer, false, false).Debug("hidden")
	newLogger(&buffer, false, false).Info("shown", "query", "x")
	var record map[string]any
	if err := json.Unmarshal(buffer.Bytes(), &record); err != nil {
		t.Fatalf("piped output is not one JSON record: %v\n%s", err, buffer.String())
	}
	if record["msg"] != "shown" || record["query"] != "x" {
		t.Errorf("record = %v", record)
	}

	buffer.Reset()
	newLogger(&buffer, true, true).Debug("detail")
	if !strings.Contains(buffer.String(), "msg=detail") {
		t.Errorf("terminal verbose output = %q", buffer.String())
	}
}

func TestWriteJSONEmptyValues(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"nil slice", []string(nil), "[]\n"},
		{"nil map", map[string]int(nil), "{}\n"},
		{"struct", struct {
			Src string `json:"src"`
		}{"a.gif"}, "{\n  \"src\": \"a.gif\"\n}\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var buffer bytes.Buffer
			if err := WriteJSON(&buffer, test.value); err != nil {
				t.Fatalf("WriteJSON: %v", err)
			}
			if buffer.String() != test.want {
				t.Errorf("output = %q, want %q", buffer.String(), test.want)
			}
		})
	}
}

func TestExitError(t *testing.T) {
	err := &ExitError{Code: 3}
	if err.ExitCode() != 3 || err.Error() != "exit status 3" {
		t.Errorf("ExitError{Code: 3} = (%d, %q)", err.ExitCode(), err.Error())
	}
	err.Reason = "results missing"
	if err.Error() != "results missing" {
		t.Errorf("Error() = %q", err.Error())
	}
}
