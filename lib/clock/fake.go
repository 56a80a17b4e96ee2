// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock is a Clock whose time moves only when Advance is called.
// It is safe for concurrent use.
//
// AfterFunc callbacks run synchronously on the goroutine calling
// Advance, in deadline order (registration order breaks ties). A
// callback must not call Advance itself.
type FakeClock struct {
	mu       sync.Mutex
	changed  *sync.Cond
	now      time.Time
	sequence uint64
	waiters  []*waiter
}

type waiter struct {
	deadline time.Time
	sequence uint64

	// Exactly one of channel and callback is set.
	channel  chan time.Time
	callback func()
}

// Fake returns a FakeClock reading initial until advanced.
func Fake(initial time.Time) *FakeClock {
	fake := &FakeClock{now: initial}
	fake.changed = sync.NewCond(&fake.mu)
	return fake
}

// Now returns the fake current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After registers a one-shot channel waiter.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	channel := make(chan time.Time, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if d <= 0 {
		channel <- c.now
		return channel
	}
	c.addLocked(&waiter{deadline: c.now.Add(d), channel: channel})
	return channel
}

// AfterFunc registers f to run when the clock passes now+d. A
// non-positive d runs f before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{stop: func() bool { return false }}
	}

	c.mu.Lock()
	pending := &waiter{deadline: c.now.Add(d), callback: f}
	c.addLocked(pending)
	c.mu.Unlock()

	return &Timer{stop: func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		for index, candidate := range c.waiters {
			if candidate == pending {
				c.waiters = append(c.waiters[:index], c.waiters[index+1:]...)
				c.changed.Broadcast()
				return true
			}
		}
		return false
	}}
}

// Advance moves the clock forward by d and fires every waiter whose
// deadline is at or before the new time.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now
	c.mu.Unlock()

	for {
		next := c.popExpired(target)
		if next == nil {
			return
		}
		if next.callback != nil {
			next.callback()
			continue
		}
		select {
		case next.channel <- target:
		default:
		}
	}
}

// popExpired removes and returns the earliest waiter due at target,
// or nil when none is due. Callbacks registered by a firing callback
// are considered on the next iteration.
func (c *FakeClock) popExpired(target time.Time) *waiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.waiters) == 0 || c.waiters[0].deadline.After(target) {
		return nil
	}
	next := c.waiters[0]
	c.waiters = c.waiters[1:]
	c.changed.Broadcast()
	return next
}

// WaitForTimers blocks until at least n waiters are pending.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.waiters) < n {
		c.changed.Wait()
	}
}

// PendingCount returns the number of waiters that have neither fired
// nor been stopped.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

func (c *FakeClock) addLocked(w *waiter) {
	c.sequence++
	w.sequence = c.sequence
	c.waiters = append(c.waiters, w)
	sort.SliceStable(c.waiters, func(i, j int) bool {
		if c.waiters[i].deadline.Equal(c.waiters[j].deadline) {
			return c.waiters[i].sequence < c.waiters[j].sequence
		}
		return c.waiters[i].deadline.Before(c.waiters[j].deadline)
	})
	c.changed.Broadcast()
}
