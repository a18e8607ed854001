// Copyright (c) 2024-2026 SohriAI
//
// Licensed under GPL-2.0 with Sohri Additional Terms.
// See LICENSE.md for commercial usage.

package internal_session

import (
	"sync"
	"time"

	internal_audio "github.com/sohriai/gateway/api/gateway-api/internal/audio"
	internal_segmentation "github.com/sohriai/gateway/api/gateway-api/internal/segmentation"
	internal_type "github.com/sohriai/gateway/api/gateway-api/internal/type"
)

// Stats accumulates recognition latency for one session.
type Stats struct {
	TotalMs int64
	Count   int64
}

// Session is one client turn: a ring buffer, a segmentation machine, a
// sequence counter and a delivery reassembler, all owned exclusively.
// The mutex is the per-session serialization discipline — chunk ingress,
// detector events and drain steps never mutate concurrently.
type Session struct {
	mu sync.Mutex

	id          string
	sink        internal_type.ClientSink
	buffer      *internal_audio.RingBuffer
	fsm         *internal_segmentation.FSM
	reassembler *Reassembler
	nextSeq     uint64
	stats       Stats
	createdAt   time.Time
	ending      bool
}

func (s *Session) ID() string { return s.id }

// NChunks reads the session clock.
func (s *Session) NChunks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fsm.NChunks
}

// IssuedSequences returns how many work items the session has enqueued.
func (s *Session) IssuedSequences() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSeq
}

func (s *Session) recordLatency(elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.TotalMs += elapsed.Milliseconds()
	s.stats.Count++
}

func (s *Session) snapshotStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// markEnding flags the session so a second turn-end is a no-op. Returns
// false when the drain is already running.
func (s *Session) markEnding() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ending {
		return false
	}
	s.ending = true
	return true
}
