// Copyright (c) 2024-2026 SohriAI
//
// Licensed under GPL-2.0 with Sohri Additional Terms.
// See LICENSE.md for commercial usage.

package internal_audio

import (
	"fmt"
	"sync"
)

// RingBuffer is a per-session append-only PCM buffer addressable in chunk
// units. Byte 0 of the buffer corresponds to chunk index baseChunk; appends
// grow the tail and TruncateUntil discards the head after an utterance has
// been recognised, so long sessions keep bounded memory.
type RingBuffer struct {
	mu        sync.Mutex
	data      []byte
	baseChunk int
}

// NewRingBuffer returns an empty buffer with baseChunk 0.
func NewRingBuffer() *RingBuffer {
	return &RingBuffer{data: make([]byte, 0, 64*ChunkBytes)}
}

// Append concatenates PCM bytes to the tail. It never fails and never
// moves baseChunk.
func (rb *RingBuffer) Append(p []byte) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.data = append(rb.data, p...)
}

// BaseChunk returns the chunk index corresponding to buffer byte 0.
func (rb *RingBuffer) BaseChunk() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.baseChunk
}

// Len returns the number of buffered bytes.
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return len(rb.data)
}

// ReadRange copies the PCM bytes covering [startChunk, endChunk). The range
// must sit inside [baseChunk, baseChunk+chunks]; a start below baseChunk
// means the segment was already truncated away and the caller should treat
// the work item as delivered.
func (rb *RingBuffer) ReadRange(startChunk, endChunk int) ([]byte, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if startChunk > endChunk {
		return nil, fmt.Errorf("ringbuffer: invalid range [%d, %d)", startChunk, endChunk)
	}
	if startChunk < rb.baseChunk {
		return nil, fmt.Errorf("ringbuffer: range [%d, %d) below base chunk %d", startChunk, endChunk, rb.baseChunk)
	}

	from := (startChunk - rb.baseChunk) * ChunkBytes
	to := (endChunk - rb.baseChunk) * ChunkBytes
	if to > len(rb.data) {
		to = len(rb.data)
	}
	if from > to {
		return nil, fmt.Errorf("ringbuffer: range [%d, %d) beyond buffered data", startChunk, endChunk)
	}

	out := make([]byte, to-from)
	copy(out, rb.data[from:to])
	return out, nil
}

// TruncateUntil discards all bytes before chunk c and advances baseChunk
// to c. baseChunk never moves backwards; calls with c <= baseChunk are
// no-ops.
func (rb *RingBuffer) TruncateUntil(c int) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if c <= rb.baseChunk {
		return
	}
	drop := (c - rb.baseChunk) * ChunkBytes
	if drop > len(rb.data) {
		drop = len(rb.data)
	}
	rb.data = append(rb.data[:0], rb.data[drop:]...)
	rb.baseChunk = c
}
