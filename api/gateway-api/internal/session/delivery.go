// Copyright (c) 2024-2026 SohriAI
//
// Licensed under GPL-2.0 with Sohri Additional Terms.
// See LICENSE.md for commercial usage.

package internal_session

import (
	"sync"

	internal_type "github.com/sohriai/gateway/api/gateway-api/internal/type"
	"github.com/sohriai/gateway/pkg/commons"
)

type pendingResult struct {
	result  string
	isFinal bool
	skipped bool
}

// Reassembler restores per-session delivery order. Recognitions arrive
// tagged with their sequence in whatever order batches complete; the client
// only ever observes strictly ascending sequences. A missing sequence blocks
// everything behind it until either it arrives, it is skipped explicitly, or
// the turn-end drain flushes the holes.
type Reassembler struct {
	logger    commons.Logger
	sessionID string
	sink      internal_type.ClientSink

	mu       sync.Mutex
	expected uint64
	pending  map[uint64]pendingResult
}

func NewReassembler(logger commons.Logger, sessionID string, sink internal_type.ClientSink) *Reassembler {
	return &Reassembler{
		logger:    logger,
		sessionID: sessionID,
		sink:      sink,
		pending:   make(map[uint64]pendingResult),
	}
}

// Deliver buffers one recognition and releases every result that is now in
// order. Sequences already released are dropped as duplicates.
func (r *Reassembler) Deliver(seq uint64, result string, isFinal bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if seq < r.expected {
		r.logger.Debugw("delivery: dropping duplicate result", "sessionId", r.sessionID, "seq", seq)
		return
	}
	if _, exists := r.pending[seq]; exists {
		r.logger.Debugw("delivery: dropping duplicate pending result", "sessionId", r.sessionID, "seq", seq)
		return
	}
	r.pending[seq] = pendingResult{result: result, isFinal: isFinal}
	r.releaseLocked()
}

// Skip marks a sequence that will never produce a result (stale buffer range
// or an utterance the recognition response omitted) so delivery can advance
// past it.
func (r *Reassembler) Skip(seq uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if seq < r.expected {
		return
	}
	if _, exists := r.pending[seq]; exists {
		return
	}
	r.pending[seq] = pendingResult{skipped: true}
	r.releaseLocked()
}

// Pending returns how many results are buffered waiting for order.
func (r *Reassembler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Expected returns the next sequence eligible for delivery.
func (r *Reassembler) Expected() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.expected
}

// FlushHoles releases everything buffered below upTo, advancing past any
// holes left by failed batches. Only the turn-end drain calls this; during
// an active session holes block.
func (r *Reassembler) FlushHoles(upTo uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for r.expected < upTo {
		if p, ok := r.pending[r.expected]; ok {
			delete(r.pending, r.expected)
			if !p.skipped {
				r.sink.SendDelivery(r.sessionID, p.result, p.isFinal)
			}
		} else {
			r.logger.Warnw("delivery: skipping hole after drain", "sessionId", r.sessionID, "seq", r.expected)
		}
		r.expected++
	}
}

func (r *Reassembler) releaseLocked() {
	for {
		p, ok := r.pending[r.expected]
		if !ok {
			return
		}
		delete(r.pending, r.expected)
		if !p.skipped {
			r.sink.SendDelivery(r.sessionID, p.result, p.isFinal)
		}
		r.expected++
	}
}
