// Copyright (c) 2024-2026 SohriAI
//
// Licensed under GPL-2.0 with Sohri Additional Terms.
// See LICENSE.md for commercial usage.
package internal_type

import (
	"context"
	"fmt"
	"time"
)

// WorkItem is one recognition request: an immutable snapshot of segmentation
// state captured at enqueue time. Sequence is per-session and assigned in
// emission order; delivery to the client follows it strictly.
type WorkItem struct {
	SessionID string
	Sequence  uint64
	Start     int // chunk index, inclusive
	End       int // chunk index, exclusive
	IsFinal   bool
}

// UtteranceID is the wire identity of the item: the recognition engine keys
// its response entries by this filename stem.
func (w WorkItem) UtteranceID() string {
	return fmt.Sprintf("%s_%d-%d", w.SessionID, w.Start, w.End)
}

// BatchItem is a work item with its PCM resolved from the session buffer.
type BatchItem struct {
	WorkItem
	PCM []byte
}

// Recognition is one recognised utterance routed back to its session.
type Recognition struct {
	SessionID string
	Sequence  uint64
	Result    string
	IsFinal   bool
	Elapsed   time.Duration
}

// Recognizer converts utterance audio into text in batches. Results may come
// back in any order and entries may be missing; callers reassociate by
// utterance id and treat holes as non-fatal.
type Recognizer interface {
	Batch(ctx context.Context, items []BatchItem) ([]Recognition, error)
}

// ClientSink is the outbound half of one client connection. Implementations
// must never block the caller; slow clients drop messages instead.
type ClientSink interface {
	SendTurnReady(sessionID string)
	SendDelivery(sessionID, result string, isFinal bool)
	SendDeliveryEnd(sessionID string)
	SendEventResponse(sessionID string)
}

// ChunkSender forwards one PCM chunk to the endpoint detector. A send while
// the upstream connection is down drops the chunk; the segmentation clock
// simply advances with one fewer event.
type ChunkSender interface {
	Send(sessionID string, chunk []byte) error
}

// WorkQueue is the global recognition queue: many sessions push, one
// dispatcher drains.
type WorkQueue interface {
	Push(item WorkItem)
	SessionDepth(sessionID string) int
}

// SessionFlusher drains all queued work for a single session, used by the
// turn-end drain.
type SessionFlusher interface {
	FlushSession(ctx context.Context, sessionID string)
}
