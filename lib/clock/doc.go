// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the time source for every component that waits.
//
// The batch window of the request consolidator, the receive timestamps
// on intercepted stream events, and the notice timestamps on the
// notification board all read time through [Clock] rather than the
// time package. Production wiring passes [Real]; tests pass [Fake] and
// move time explicitly:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	consolidator := consolidate.New(ctx, consolidate.Config{Clock: fake, ...})
//	consolidator.Request("x^2", "Result", nil)
//	fake.WaitForTimers(1)
//	fake.Advance(500 * time.Millisecond) // batch window expires here
//
// WaitForTimers closes the gap between a goroutine arming a timer and
// the test advancing past it, so no test needs a real sleep.
package clock
