// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/tidwall/jsonc"
)

// Import reads a JSONC options file (an object of option name to
// boolean or string value; comments and trailing commas allowed) and
// writes every value into store. Nothing is written if any entry is
// invalid. Returns the number of options written.
func Import(ctx context.Context, store Store, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}
	values, err := ParseOptions(data)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := store.Set(ctx, name, values[name]); err != nil {
			return 0, err
		}
	}
	return len(names), nil
}

// ParseOptions parses JSONC options and validates every entry against
// the option table. Values are returned in their string form.
func ParseOptions(data []byte) (map[string]string, error) {
	var raw map[string]any
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return nil, fmt.Errorf("parsing options: %w", err)
	}

	values := make(map[string]string, len(raw))
	for name, value := range raw {
		option, ok := Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown option %q", name)
		}
		switch typed := value.(type) {
		case bool:
			if option.Kind != KindBool {
				return nil, fmt.Errorf("option %s takes a string", name)
			}
			values[name] = strconv.FormatBool(typed)
		case string:
			if option.Kind != KindString {
				return nil, fmt.Errorf("option %s takes true or false", name)
			}
			values[name] = typed
		default:
			return nil, fmt.Errorf("option %s has unsupported value %v", name, value)
		}
	}
	return values, nil
}
