// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the YAML configuration for moresteps commands.
//
// Configuration comes from a single file named by the --config flag
// (via [LoadFile]) or the MORESTEPS_CONFIG environment variable (via
// [Load]). There is no discovery. Commands that run without a config
// file use [Default].
//
// After loading, ${HOME}, ${MORESTEPS_ROOT}, and ${VAR:-default}
// patterns are expanded in path fields. Nothing else reads the
// environment.
//
// User-facing options (the API credential, prefetch and batching
// switches) are not configuration; they live in the settings store.
package config
