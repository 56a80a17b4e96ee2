// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "moresteps.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	config := Default()

	if err := config.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if config.Paths.Root != "/home/tester/.local/state/moresteps" {
		t.Errorf("paths.root = %q", config.Paths.Root)
	}
	if config.Paths.Socket != "/home/tester/.local/state/moresteps/background.sock" {
		t.Errorf("paths.socket = %q", config.Paths.Socket)
	}
	if config.BatchWindow() != 500*time.Millisecond {
		t.Errorf("batch window = %v", config.BatchWindow())
	}
	if config.LogLevel() != slog.LevelInfo {
		t.Errorf("log level = %v", config.LogLevel())
	}
}

func TestLoadRequiresEnvironmentVariable(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")
	_, err := Load()
	if err == nil {
		t.Fatal("Load succeeded without MORESTEPS_CONFIG")
	}
	if !strings.HasPrefix(err.Error(), "MORESTEPS_CONFIG environment variable not set") {
		t.Errorf("error = %q", err)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	path := writeConfig(t, `
api:
  rate: 0.5
  burst: 1
batch:
  window: 250ms
paths:
  root: /srv/moresteps
log:
  level: debug
`)
	t.Setenv(EnvironmentVariable, path)

	config, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if config.API.Rate != 0.5 || config.API.Burst != 1 {
		t.Errorf("api = %+v", config.API)
	}
	if config.API.BaseURL != "https://api.wolframalpha.com/v2/query" {
		t.Errorf("api.base_url default lost: %q", config.API.BaseURL)
	}
	if config.BatchWindow() != 250*time.Millisecond {
		t.Errorf("batch window = %v", config.BatchWindow())
	}
	if config.LogLevel() != slog.LevelDebug {
		t.Errorf("log level = %v", config.LogLevel())
	}
	// Default paths follow the root set in the file.
	if config.Paths.Socket != "/srv/moresteps/background.sock" {
		t.Errorf("paths.socket = %q", config.Paths.Socket)
	}
	if config.Paths.SettingsDB != "/srv/moresteps/settings.db" {
		t.Errorf("paths.settings_db = %q", config.Paths.SettingsDB)
	}
}

func TestVariableExpansion(t *testing.T) {
	t.Setenv("MORESTEPS_TEST_RUNTIME", "/run/user/1000")
	path := writeConfig(t, `
paths:
  root: /var/lib/moresteps
  socket: ${MORESTEPS_TEST_RUNTIME}/moresteps.sock
  settings_db: ${MORESTEPS_TEST_UNSET:-/tmp/fallback}/settings.db
`)
	config, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if config.Paths.Socket != "/run/user/1000/moresteps.sock" {
		t.Errorf("paths.socket = %q", config.Paths.Socket)
	}
	if config.Paths.SettingsDB != "/tmp/fallback/settings.db" {
		t.Errorf("paths.settings_db = %q", config.Paths.SettingsDB)
	}
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"zero rate", "api:\n  rate: 0\n", "api.rate"},
		{"zero burst", "api:\n  burst: 0\n", "api.burst"},
		{"bad timeout", "api:\n  timeout: soon\n", "api.timeout"},
		{"negative window", "batch:\n  window: -1s\n", "batch.window"},
		{"bad level", "log:\n  level: loud\n", "log.level"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, test.content))
			if err == nil {
				t.Fatal("LoadFile accepted an invalid config")
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Errorf("error %q does not mention %s", err, test.want)
			}
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("LoadFile succeeded on a missing file")
	}
}

func TestEnsurePaths(t *testing.T) {
	root := t.TempDir()
	config := &Config{Paths: PathsConfig{
		Root:       filepath.Join(root, "state"),
		Socket:     filepath.Join(root, "run", "moresteps.sock"),
		SettingsDB: filepath.Join(root, "state", "settings.db"),
	}}
	if err := config.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths: %v", err)
	}
	for _, directory := range []string{"state", "run"} {
		if info, err := os.Stat(filepath.Join(root, directory)); err != nil || !info.IsDir() {
			t.Errorf("%s not created: %v", directory, err)
		}
	}
}
