// Copyright (c) 2024-2026 SohriAI
//
// Licensed under GPL-2.0 with Sohri Additional Terms.
// See LICENSE.md for commercial usage.

package internal_dispatch

import (
	"sync"

	internal_type "github.com/sohriai/gateway/api/gateway-api/internal/type"
)

// Queue is the global recognition work queue: sessions push, the dispatcher
// splices. Items from different sessions interleave freely; per-session
// ordering is restored by sorting each spliced batch by sequence.
type Queue struct {
	mu    sync.Mutex
	items []internal_type.WorkItem
}

func NewQueue() *Queue {
	return &Queue{}
}

// Push appends one work item.
func (q *Queue) Push(item internal_type.WorkItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
}

// Splice atomically removes and returns up to n items from the head.
func (q *Queue) Splice(n int) []internal_type.WorkItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n > len(q.items) {
		n = len(q.items)
	}
	if n == 0 {
		return nil
	}
	out := make([]internal_type.WorkItem, n)
	copy(out, q.items[:n])
	q.items = append(q.items[:0], q.items[n:]...)
	return out
}

// SpliceSession atomically removes and returns up to n items belonging to
// one session, leaving other sessions' items queued in place.
func (q *Queue) SpliceSession(sessionID string, n int) []internal_type.WorkItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []internal_type.WorkItem
	rest := q.items[:0]
	for _, item := range q.items {
		if item.SessionID == sessionID && len(out) < n {
			out = append(out, item)
			continue
		}
		rest = append(rest, item)
	}
	q.items = rest
	return out
}

// SessionDepth counts queued items for one session.
func (q *Queue) SessionDepth(sessionID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, item := range q.items {
		if item.SessionID == sessionID {
			n++
		}
	}
	return n
}

// Len returns the total queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
