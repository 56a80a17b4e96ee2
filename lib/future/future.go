// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package future provides a settle-once result slot shared by any
// number of waiters.
//
// A Future is the unit the dedup cache memoizes and the consolidator
// hands out per result identifier: it is created pending, settled
// exactly once by Resolve or Reject, and observed through Done, Wait,
// or OnSettle. Settled futures keep their outcome, so a waiter that
// arrives late sees the same value or error as the first one.
package future

import (
	"context"
	"sync"
)

// Future holds a value of type T or an error, set exactly once.
type Future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

// New returns a pending future.
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns a future already settled with value.
func Resolved[T any](value T) *Future[T] {
	f := New[T]()
	f.Resolve(value)
	return f
}

// Failed returns a future already settled with err.
func Failed[T any](err error) *Future[T] {
	f := New[T]()
	f.Reject(err)
	return f
}

// Resolve settles the future with value. Reports false if the future
// was already settled.
func (f *Future[T]) Resolve(value T) bool {
	var zero error
	return f.settle(value, zero)
}

// Reject settles the future with err. Reports false if the future was
// already settled.
func (f *Future[T]) Reject(err error) bool {
	var zero T
	return f.settle(zero, err)
}

func (f *Future[T]) settle(value T, err error) bool {
	settled := false
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
		settled = true
	})
	return settled
}

// Done is closed once the future is settled.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Settled reports whether the future has an outcome.
func (f *Future[T]) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the future settles or ctx is done. A cancelled
// wait does not affect the future or its other waiters.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Peek returns the outcome if settled. ok is false while pending.
func (f *Future[T]) Peek() (value T, err error, ok bool) {
	if !f.Settled() {
		return value, nil, false
	}
	return f.value, f.err, true
}

// OnSettle runs callback on its own goroutine once the future settles.
func (f *Future[T]) OnSettle(callback func(T, error)) {
	go func() {
		<-f.done
		callback(f.value, f.err)
	}()
}

// Forward settles target with source's outcome once source settles.
func Forward[T any](source, target *Future[T]) {
	source.OnSettle(func(value T, err error) {
		if err != nil {
			target.Reject(err)
			return
		}
		target.Resolve(value)
	})
}
