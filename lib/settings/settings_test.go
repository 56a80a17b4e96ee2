// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bureau-foundation/moresteps/lib/testutil"
)

// stores returns one fresh instance of each backend.
func stores(t *testing.T) map[string]Store {
	t.Helper()
	persistent, err := OpenSQLite(filepath.Join(t.TempDir(), "settings.db"), testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { persistent.Close() })
	return map[string]Store{
		"memory": NewMemory(nil),
		"sqlite": persistent,
	}
}

func TestDefaults(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, option := range []struct {
				name string
				want bool
			}{
				{Prefetch, true},
				{Consolidate, true},
				{IncludePodID, true},
				{Deferred, false},
				{HideBanner, false},
			} {
				got, err := store.Bool(ctx, option.name)
				if err != nil {
					t.Fatalf("Bool(%s): %v", option.name, err)
				}
				if got != option.want {
					t.Errorf("Bool(%s) = %v, want %v", option.name, got, option.want)
				}
			}
			appID, err := store.String(ctx, AppID)
			if err != nil || appID != "" {
				t.Errorf("String(appid) = (%q, %v), want empty", appID, err)
			}
		})
	}
}

func TestSetAndRead(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Set(ctx, AppID, "DEMO-1234"); err != nil {
				t.Fatalf("Set(appid): %v", err)
			}
			if err := store.Set(ctx, Prefetch, "0"); err != nil {
				t.Fatalf("Set(prefetch): %v", err)
			}
			if err := store.Set(ctx, Prefetch, "FALSE"); err != nil {
				t.Fatalf("second Set(prefetch): %v", err)
			}

			appID, err := store.String(ctx, AppID)
			if err != nil || appID != "DEMO-1234" {
				t.Errorf("String(appid) = (%q, %v)", appID, err)
			}
			prefetch, err := store.Bool(ctx, Prefetch)
			if err != nil || prefetch {
				t.Errorf("Bool(prefetch) = (%v, %v), want false", prefetch, err)
			}
			raw, _ := store.String(ctx, Prefetch)
			if raw != "false" {
				t.Errorf("stored prefetch = %q, want canonical false", raw)
			}
		})
	}
}

func TestValidation(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(nil)

	if err := store.Set(ctx, "theme", "dark"); err == nil {
		t.Error("Set accepted an unknown option")
	}
	if err := store.Set(ctx, Consolidate, "sometimes"); err == nil {
		t.Error("Set accepted a non-boolean value for a bool option")
	}
	if _, err := store.Bool(ctx, AppID); err == nil {
		t.Error("Bool accepted a string option")
	}
	if _, err := store.String(ctx, "theme"); err == nil {
		t.Error("String accepted an unknown option")
	}
}

func TestSQLitePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.db")

	first, err := OpenSQLite(path, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := first.Set(ctx, AppID, "PERSISTED"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := OpenSQLite(path, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	if appID, err := second.String(ctx, AppID); err != nil || appID != "PERSISTED" {
		t.Errorf("String(appid) after reopen = (%q, %v)", appID, err)
	}
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "options.jsonc")
	content := `{
		// credential from the developer portal
		"appid": "IMPORTED",
		"consolidate": false,
		"misc-hidebanner": true, /* trailing comma below */
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	store := NewMemory(nil)
	count, err := Import(ctx, store, path)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if count != 3 {
		t.Errorf("imported %d options, want 3", count)
	}
	snapshot, err := Snapshot(ctx, store)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	want := map[string]string{
		AppID:        "IMPORTED",
		Prefetch:     "true",
		Consolidate:  "false",
		IncludePodID: "true",
		Deferred:     "false",
		HideBanner:   "true",
	}
	for name, value := range want {
		if snapshot[name] != value {
			t.Errorf("%s = %q, want %q", name, snapshot[name], value)
		}
	}
}

func TestImportRejectsInvalidFileAtomically(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown option", `{"appid": "X", "theme": "dark"}`},
		{"wrong kind", `{"appid": "X", "prefetch": "yes"}`},
		{"string option as bool", `{"appid": true}`},
		{"number", `{"appid": "X", "consolidate": 1}`},
		{"not an object", `["appid"]`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "options.jsonc")
			if err := os.WriteFile(path, []byte(test.content), 0o600); err != nil {
				t.Fatal(err)
			}
			store := NewMemory(nil)
			if _, err := Import(context.Background(), store, path); err == nil {
				t.Fatal("Import accepted an invalid file")
			}
			if appID, _ := store.String(context.Background(), AppID); appID != "" {
				t.Errorf("appid = %q after failed import, want unchanged", appID)
			}
		})
	}
}

func TestNewMemoryInitialValues(t *testing.T) {
	store := NewMemory(map[string]string{AppID: "INIT", Prefetch: "false"})
	if enabled, _ := store.Bool(context.Background(), Prefetch); enabled {
		t.Error("initial prefetch=false not applied")
	}
}
