// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the config file for Load.
const EnvironmentVariable = "MORESTEPS_CONFIG"

// Config is the complete configuration.
type Config struct {
	API   APIConfig   `yaml:"api"`
	Batch BatchConfig `yaml:"batch"`
	Paths PathsConfig `yaml:"paths"`
	Log   LogConfig   `yaml:"log"`
}

// APIConfig configures the upstream query API client.
type APIConfig struct {
	// BaseURL is the query endpoint.
	BaseURL string `yaml:"base_url"`

	// Rate is the sustained request rate in requests per second.
	Rate float64 `yaml:"rate"`

	// Burst is how many requests may be made at once above Rate.
	Burst int `yaml:"burst"`

	// Timeout bounds one HTTP request, as a Go duration string.
	Timeout string `yaml:"timeout"`
}

// BatchConfig configures request consolidation.
type BatchConfig struct {
	// Window is how long a batch stays open, as a Go duration string.
	Window string `yaml:"window"`
}

// PathsConfig configures file locations.
type PathsConfig struct {
	// Root is the base directory for state.
	Root string `yaml:"root"`

	// Socket is where `moresteps serve` listens.
	Socket string `yaml:"socket"`

	// SettingsDB is the settings database.
	SettingsDB string `yaml:"settings_db"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	config := unexpandedDefaults()
	config.expandVariables()
	return config
}

// unexpandedDefaults is the base a loaded file is merged into. Paths
// keep their ${...} references so they follow a root set by the file.
func unexpandedDefaults() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "https://api.wolframalpha.com/v2/query",
			Rate:    2,
			Burst:   4,
			Timeout: "30s",
		},
		Batch: BatchConfig{Window: "500ms"},
		Paths: PathsConfig{
			Root:       "${HOME}/.local/state/moresteps",
			Socket:     "${MORESTEPS_ROOT}/background.sock",
			SettingsDB: "${MORESTEPS_ROOT}/settings.db",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load loads the file named by MORESTEPS_CONFIG. Fails if the variable
// is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your moresteps.yaml config file, or use --config", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile loads path over the defaults, expands variables, and
// validates the result.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	config := unexpandedDefaults()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	config.expandVariables()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return config, nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	var errs []error
	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	}
	if c.API.Rate <= 0 {
		errs = append(errs, fmt.Errorf("api.rate must be positive, got %v", c.API.Rate))
	}
	if c.API.Burst < 1 {
		errs = append(errs, fmt.Errorf("api.burst must be at least 1, got %d", c.API.Burst))
	}
	if _, err := positiveDuration(c.API.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("api.timeout: %w", err))
	}
	if _, err := positiveDuration(c.Batch.Window); err != nil {
		errs = append(errs, fmt.Errorf("batch.window: %w", err))
	}
	if c.Paths.Socket == "" {
		errs = append(errs, errors.New("paths.socket is required"))
	}
	if c.Paths.SettingsDB == "" {
		errs = append(errs, errors.New("paths.settings_db is required"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// APITimeout returns api.timeout. Call only on a validated config.
func (c *Config) APITimeout() time.Duration {
	duration, _ := positiveDuration(c.API.Timeout)
	return duration
}

// BatchWindow returns batch.window. Call only on a validated config.
func (c *Config) BatchWindow() time.Duration {
	duration, _ := positiveDuration(c.Batch.Window)
	return duration
}

// LogLevel returns log.level. Call only on a validated config.
func (c *Config) LogLevel() slog.Level {
	level, _ := parseLevel(c.Log.Level)
	return level
}

// EnsurePaths creates the directories holding the socket and the
// settings database.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.Paths.Root, filepath.Dir(c.Paths.Socket), filepath.Dir(c.Paths.SettingsDB)} {
		if path == "" || path == "." {
			continue
		}
		if err := os.MkdirAll(path, 0o700); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}

func positiveDuration(text string) (time.Duration, error) {
	duration, err := time.ParseDuration(text)
	if err != nil {
		return 0, err
	}
	if duration <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", text)
	}
	return duration, nil
}

func parseLevel(text string) (slog.Level, error) {
	switch strings.ToLower(text) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown level %q", text)
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} in path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{"HOME": os.Getenv("HOME")}
	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["MORESTEPS_ROOT"] = c.Paths.Root
	c.Paths.Socket = expandVars(c.Paths.Socket, vars)
	c.Paths.SettingsDB = expandVars(c.Paths.SettingsDB, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name := parts[1]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return parts[2]
	})
}
