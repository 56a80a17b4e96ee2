// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ExitError ends a command with Code after the command has already
// reported the problem itself, e.g. `moresteps query` printing
// "(no image)" rows for results that could not be fetched. main exits
// with Code and prints nothing further.
type ExitError struct {
	Code int

	// Reason is returned by Error for callers that log the error
	// instead of exiting.
	Reason string
}

func (e *ExitError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode is the process exit status main uses.
func (e *ExitError) ExitCode() int {
	return e.Code
}
