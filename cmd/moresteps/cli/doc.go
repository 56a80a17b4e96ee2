// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command framework behind the moresteps
// binary: a tree of [Command] values with pflag flag sets, help
// output, and typo suggestions for unknown commands and flags.
//
// A command's Run receives a context cancelled on SIGINT/SIGTERM and a
// logger built by [NewLogger]. Returning an [ExitError] exits non-zero
// without printing an extra error line.
package cli
