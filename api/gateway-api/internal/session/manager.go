// Copyright (c) 2024-2026 SohriAI
//
// Licensed under GPL-2.0 with Sohri Additional Terms.
// See LICENSE.md for commercial usage.

package internal_session

import (
	"context"
	"fmt"
	"sync"
	"time"

	internal_artifacts "github.com/sohriai/gateway/api/gateway-api/internal/artifacts"
	internal_audio "github.com/sohriai/gateway/api/gateway-api/internal/audio"
	internal_epd "github.com/sohriai/gateway/api/gateway-api/internal/epd"
	internal_segmentation "github.com/sohriai/gateway/api/gateway-api/internal/segmentation"
	internal_type "github.com/sohriai/gateway/api/gateway-api/internal/type"
	"github.com/sohriai/gateway/pkg/commons"
	"github.com/sohriai/gateway/pkg/utils"
)

// Manager owns session lifecycles: start, chunk ingress, detector event
// routing, turn-end drain and cleanup. It is also the dispatcher's PCM
// source and result router, since both resolve through the session map.
type Manager struct {
	logger    commons.Logger
	epd       internal_type.ChunkSender
	queue     internal_type.WorkQueue
	artifacts *internal_artifacts.Store

	idleInterval time.Duration
	maxWait      time.Duration

	// flusher is set after construction; the dispatcher needs the manager
	// and the drain needs the dispatcher.
	flusher internal_type.SessionFlusher

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(
	logger commons.Logger,
	epd internal_type.ChunkSender,
	queue internal_type.WorkQueue,
	artifacts *internal_artifacts.Store,
	idleInterval, maxWait time.Duration,
) *Manager {
	return &Manager{
		logger:       logger,
		epd:          epd,
		queue:        queue,
		artifacts:    artifacts,
		idleInterval: idleInterval,
		maxWait:      maxWait,
		sessions:     make(map[string]*Session),
	}
}

// SetFlusher wires the dispatcher's session flush into the drain.
func (m *Manager) SetFlusher(f internal_type.SessionFlusher) {
	m.flusher = f
}

// Start creates a fresh session bound to a client sink and notifies the
// client that the turn is ready.
func (m *Manager) Start(sink internal_type.ClientSink) string {
	id := utils.NewSessionID()
	sess := &Session{
		id:          id,
		sink:        sink,
		buffer:      internal_audio.NewRingBuffer(),
		fsm:         internal_segmentation.NewFSM(),
		reassembler: NewReassembler(m.logger, id, sink),
		createdAt:   time.Now(),
	}

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	m.logger.Infow("session: started", "sessionId", id)
	sink.SendTurnReady(id)
	return id
}

// OnChunk appends one client audio chunk to the session buffer and forwards
// it to the endpoint detector. The session clock does not advance here —
// only detector events move it, keeping segmentation phase-locked to the
// detector's view of the stream.
func (m *Manager) OnChunk(sessionID string, pcm []byte) {
	sess := m.lookup(sessionID)
	if sess == nil {
		return
	}

	sess.mu.Lock()
	sess.buffer.Append(pcm)
	sess.mu.Unlock()

	if err := m.epd.Send(sessionID, pcm); err != nil {
		m.logger.Warnw("session: failed to forward chunk", "sessionId", sessionID, "error", err)
	}
}

// OnEpdEvent routes a detector event to the session's segmentation machine
// and enqueues whatever recognition work it produced, stamping each item
// with the session's next sequence. Events for unknown sessions are dropped.
func (m *Manager) OnEpdEvent(ev internal_epd.Event) {
	sess := m.lookup(ev.SessionID)
	if sess == nil {
		m.logger.Debugw("session: dropping event for unknown session", "sessionId", ev.SessionID)
		return
	}

	sess.mu.Lock()
	emits := sess.fsm.OnStatus(ev.Status)
	m.enqueueLocked(sess, emits)
	sess.mu.Unlock()
}

// enqueueLocked pushes FSM emissions onto the global queue. Caller holds
// the session mutex.
func (m *Manager) enqueueLocked(sess *Session, emits []internal_segmentation.Emit) {
	for _, emit := range emits {
		seq := sess.nextSeq
		sess.nextSeq++
		m.queue.Push(internal_type.WorkItem{
			SessionID: sess.id,
			Sequence:  seq,
			Start:     emit.Start,
			End:       emit.End,
			IsFinal:   emit.IsFinal,
		})
	}
}

// ReadUtterance implements the dispatcher's PCM source.
func (m *Manager) ReadUtterance(sessionID string, startChunk, endChunk int) ([]byte, error) {
	sess := m.lookup(sessionID)
	if sess == nil {
		return nil, fmt.Errorf("session: unknown session %s", sessionID)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.buffer.ReadRange(startChunk, endChunk)
}

// TruncateUntil drops buffered PCM before the given chunk. The dispatcher
// calls it once a final has been recognised, so long sessions keep bounded
// memory without destroying audio that is still queued for recognition.
func (m *Manager) TruncateUntil(sessionID string, chunk int) {
	sess := m.lookup(sessionID)
	if sess == nil {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.buffer.TruncateUntil(chunk)
}

// Deliver implements the dispatcher's result router.
func (m *Manager) Deliver(rec internal_type.Recognition) {
	sess := m.lookup(rec.SessionID)
	if sess == nil {
		return
	}
	sess.recordLatency(rec.Elapsed)
	sess.reassembler.Deliver(rec.Sequence, rec.Result, rec.IsFinal)
}

// Skip implements the dispatcher's result router.
func (m *Manager) Skip(sessionID string, seq uint64) {
	sess := m.lookup(sessionID)
	if sess == nil {
		return
	}
	sess.reassembler.Skip(seq)
}

// End runs the turn-end drain: wait for the detector to go quiescent, close
// any leftover utterance, flush the session's queued work, wait for delivery
// to settle, then emit the delivery-end notification and clean up. Bounded
// by the configured maximum wait; past the deadline, delivery holes are
// skipped so the client always sees a delivery end.
func (m *Manager) End(ctx context.Context, sessionID string) {
	sess := m.lookup(sessionID)
	if sess == nil {
		return
	}
	if !sess.markEnding() {
		return
	}

	deadline := time.Now().Add(m.maxWait)

	// 1. Detector quiescence: the clock standing still across one idle
	// interval means every forwarded chunk has been answered.
	prev := sess.NChunks()
	for time.Now().Before(deadline) {
		if !m.sleep(ctx, m.idleInterval) {
			break
		}
		cur := sess.NChunks()
		if cur == prev {
			break
		}
		prev = cur
	}

	// 2. Leftover final for an utterance still open at turn end.
	sess.mu.Lock()
	m.enqueueLocked(sess, sess.fsm.Leftover())
	sess.mu.Unlock()

	// 3. Flush this session's queued recognition work.
	if m.flusher != nil {
		m.flusher.FlushSession(ctx, sessionID)
	}

	// 4. Delivery quiescence, then skip whatever holes remain.
	for sess.reassembler.Pending() > 0 && time.Now().Before(deadline) {
		if !m.sleep(ctx, m.idleInterval) {
			break
		}
	}
	sess.reassembler.FlushHoles(sess.IssuedSequences())

	sess.sink.SendDeliveryEnd(sessionID)
	m.Cleanup(sessionID)
}

// EndAllFor treats a client disconnect as an implicit turn end for every
// session owned by that sink.
func (m *Manager) EndAllFor(ctx context.Context, sink internal_type.ClientSink) {
	m.mu.RLock()
	var owned []string
	for id, sess := range m.sessions {
		if sess.sink == sink {
			owned = append(owned, id)
		}
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, id := range owned {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			m.End(ctx, id)
		}(id)
	}
	wg.Wait()
}

// Cleanup erases all per-session state and scratch artifacts.
func (m *Manager) Cleanup(sessionID string) {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if !ok {
		return
	}

	stats := sess.snapshotStats()
	m.logger.Infow("session: cleaned up",
		"sessionId", sessionID,
		"recognitions", stats.Count,
		"recognitionTotalMs", stats.TotalMs,
		"duration", time.Since(sess.createdAt).String(),
	)
	m.artifacts.PurgeSession(sessionID)
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) lookup(sessionID string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[sessionID]
}

// sleep waits one interval, returning false when ctx is cancelled.
func (m *Manager) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
