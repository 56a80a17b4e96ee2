// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
)

// Program is the name every version string starts with.
const Program = "moresteps"

// Build identity, overridden with -ldflags "-X" by release builds.
var (
	GitCommit = "unknown"
	GitDirty  = "false"
	BuildTime = "unknown"
	Version   = "0.1.0-dev"
)

// Info is the one-line answer to `moresteps --version`:
// "moresteps 0.1.0 (abc1234-dirty, 2026-01-02T03:04:05Z)".
func Info() string {
	commit := GitCommit
	if GitDirty == "true" {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s %s (%s, %s)", Program, Version, commit, BuildTime)
}

// Full is Info followed by the toolchain and target platform, printed
// by `moresteps version`.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short is the bare version, shown in the watch banner.
func Short() string {
	return Version
}

// UserAgent identifies moresteps to the upstream query API.
func UserAgent() string {
	return Program + "/" + Version
}
