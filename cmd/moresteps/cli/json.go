// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
)

// WriteJSON writes value to w as indented JSON followed by a newline,
// the format of every --json output. Nil slices and maps are written
// as [] and {} so scripts never have to handle null for "no results".
func WriteJSON(w io.Writer, value any) error {
	data, err := json.MarshalIndent(emptyIfNil(value), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

func emptyIfNil(value any) any {
	reflected := reflect.ValueOf(value)
	switch {
	case reflected.Kind() == reflect.Slice && reflected.IsNil():
		return reflect.MakeSlice(reflected.Type(), 0, 0).Interface()
	case reflected.Kind() == reflect.Map && reflected.IsNil():
		return reflect.MakeMap(reflected.Type()).Interface()
	}
	return value
}
