// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports which moresteps build is running. The CLI
// prints it for --version and `moresteps version`, the watch banner
// shows it, and the query API client sends it as its User-Agent.
//
// Release builds set the identity with the linker:
//
//	go build -ldflags "-X github.com/bureau-foundation/moresteps/lib/version.GitCommit=$(git rev-parse --short HEAD)" ./cmd/moresteps
//
// Development builds and tests report "0.1.0-dev" with an unknown
// commit.
package version
