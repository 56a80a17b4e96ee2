// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import "sync"

type entryState int

const (
	statePending entryState = iota
	stateDone
	stateDelivered
)

type entry struct {
	event Event
	state entryState
}

// orderedQueue delivers events in the order they were pushed, each
// only once its entry is complete. Delivery happens outside the lock
// and at most one goroutine delivers at a time.
type orderedQueue struct {
	deliver Listener

	mu       sync.Mutex
	entries  []*entry
	draining bool
}

func newOrderedQueue(deliver Listener) *orderedQueue {
	return &orderedQueue{deliver: deliver}
}

// push appends a pending entry for event.
func (q *orderedQueue) push(event Event) *entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	slot := &entry{event: event, state: statePending}
	q.entries = append(q.entries, slot)
	return slot
}

// complete marks slot done with its final event and delivers whatever
// is now deliverable from the front of the queue.
func (q *orderedQueue) complete(slot *entry, event Event) {
	q.mu.Lock()
	if slot.state != statePending {
		q.mu.Unlock()
		return
	}
	slot.event = event
	slot.state = stateDone
	if q.draining {
		// The active drainer re-checks the head under the lock after
		// each delivery and will pick this entry up.
		q.mu.Unlock()
		return
	}
	q.draining = true

	for len(q.entries) > 0 && q.entries[0].state == stateDone {
		head := q.entries[0]
		q.entries[0] = nil
		q.entries = q.entries[1:]
		head.state = stateDelivered
		q.mu.Unlock()

		q.deliver(head.event)

		q.mu.Lock()
	}
	q.draining = false
	q.mu.Unlock()
}

// pending returns the number of entries not yet delivered.
func (q *orderedQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
