// Copyright (c) 2024-2026 SohriAI
//
// Licensed under GPL-2.0 with Sohri Additional Terms.
// See LICENSE.md for commercial usage.

package internal_dispatch

import (
	"context"
	"sort"
	"time"

	internal_segmentation "github.com/sohriai/gateway/api/gateway-api/internal/segmentation"
	internal_type "github.com/sohriai/gateway/api/gateway-api/internal/type"
	"github.com/sohriai/gateway/pkg/commons"
)

// PCMSource resolves a work item's chunk range into PCM bytes. A range-miss
// error means the segment was truncated away after delivery; the item is
// skipped and its sequence advanced. TruncateUntil reclaims buffer space
// once a final's audio has been consumed.
type PCMSource interface {
	ReadUtterance(sessionID string, startChunk, endChunk int) ([]byte, error)
	TruncateUntil(sessionID string, chunk int)
}

// ResultRouter hands recognitions to the owning session's reassembler.
// Skip advances a sequence that will never produce a result.
type ResultRouter interface {
	Deliver(rec internal_type.Recognition)
	Skip(sessionID string, seq uint64)
}

// Dispatcher is the single long-running consumer of the work queue. Every
// tick it splices a batch, sorts it by sequence, calls the recognizer, and
// routes results. Failed batches are never retried: a retry would deliver
// out of sequence, so the holes are left for the drain to resolve.
type Dispatcher struct {
	logger     commons.Logger
	queue      *Queue
	recognizer internal_type.Recognizer
	source     PCMSource
	router     ResultRouter
	interval   time.Duration
	batchSize  int
}

func NewDispatcher(
	logger commons.Logger,
	queue *Queue,
	recognizer internal_type.Recognizer,
	source PCMSource,
	router ResultRouter,
	interval time.Duration,
	batchSize int,
) *Dispatcher {
	return &Dispatcher{
		logger:     logger,
		queue:      queue,
		recognizer: recognizer,
		source:     source,
		router:     router,
		interval:   interval,
		batchSize:  batchSize,
	}
}

// Run drives the dispatch loop until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if items := d.queue.Splice(d.batchSize); len(items) > 0 {
				d.dispatch(ctx, items)
			}
		}
	}
}

// FlushSession repeatedly drains all queued items for one session. Called
// from the turn-end drain after the detector has gone quiescent.
func (d *Dispatcher) FlushSession(ctx context.Context, sessionID string) {
	for {
		items := d.queue.SpliceSession(sessionID, d.batchSize)
		if len(items) == 0 {
			return
		}
		d.dispatch(ctx, items)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, items []internal_type.WorkItem) {
	sort.Slice(items, func(i, j int) bool { return items[i].Sequence < items[j].Sequence })

	batch := make([]internal_type.BatchItem, 0, len(items))
	for _, item := range items {
		pcm, err := d.source.ReadUtterance(item.SessionID, item.Start, item.End)
		if err != nil {
			// Segment already truncated away: treat as delivered.
			d.logger.Debugw("dispatch: skipping stale work item",
				"sessionId", item.SessionID, "seq", item.Sequence, "error", err)
			d.router.Skip(item.SessionID, item.Sequence)
			continue
		}
		batch = append(batch, internal_type.BatchItem{WorkItem: item, PCM: pcm})
	}
	if len(batch) == 0 {
		return
	}

	recs, err := d.recognizer.Batch(ctx, batch)
	if err != nil {
		// Dropped sequences become delivery holes; the drain skips them.
		d.logger.Warnw("dispatch: recognition batch failed, dropping sequences",
			"items", len(batch), "error", err)
		return
	}

	// Sequences are per-session; key holes by (session, sequence).
	type seqKey struct {
		sessionID string
		seq       uint64
	}
	returned := make(map[seqKey]bool, len(recs))
	for _, rec := range recs {
		returned[seqKey{rec.SessionID, rec.Sequence}] = true
		d.router.Deliver(rec)
	}
	for _, item := range batch {
		if !returned[seqKey{item.SessionID, item.Sequence}] {
			// Response omitted this utterance: non-fatal hole, advance.
			d.logger.Warnw("dispatch: recognition response omitted utterance",
				"utteranceId", item.UtteranceID(), "seq", item.Sequence)
			d.router.Skip(item.SessionID, item.Sequence)
		}
	}

	// A recognised final closes its utterance; everything before the next
	// utterance's earliest possible pre-roll can be reclaimed. FIFO order
	// guarantees no still-queued item reaches further back.
	for _, item := range batch {
		if item.IsFinal {
			d.source.TruncateUntil(item.SessionID, item.End-internal_segmentation.PreRoll)
		}
	}
}
