// Copyright (c) 2024-2026 SohriAI
//
// Licensed under GPL-2.0 with Sohri Additional Terms.
// See LICENSE.md for commercial usage.

package channel_ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	internal_session "github.com/sohriai/gateway/api/gateway-api/internal/session"
	"github.com/sohriai/gateway/pkg/commons"
)

// Client event codes.
const (
	EventTurnStart = 10
	EventPause     = 11
	EventResume    = 12
	EventTurnEnd   = 13
)

// inboundMessage is either an event request (Event set) or an audio chunk
// (Content set). TtsStatus is accepted and ignored.
type inboundMessage struct {
	Event     *int   `json:"event,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Content   string `json:"content,omitempty"`
	TtsStatus *int   `json:"ttsStatus,omitempty"`
}

type outboundMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Result    string `json:"result,omitempty"`
	End       *int   `json:"end,omitempty"`
}

const outputChannelSize = 256

// Streamer adapts one client websocket to the session manager. It is the
// session's client sink: deliveries are pushed onto a buffered channel and
// written by a single writer goroutine, so sends never block the
// recognition path — a slow client drops messages instead.
type Streamer struct {
	mu sync.Mutex

	logger  commons.Logger
	manager *internal_session.Manager
	conn    *websocket.Conn

	ctx    context.Context
	cancel context.CancelFunc
	closed bool

	outputCh chan outboundMessage

	// sessions this connection started; binary frames are routed here when
	// exactly one is active.
	owned map[string]bool
}

// NewStreamer wires a freshly upgraded connection and starts its read and
// write loops. The streamer owns its context so cleanup is not cut short by
// the HTTP handler returning.
func NewStreamer(logger commons.Logger, manager *internal_session.Manager, conn *websocket.Conn) *Streamer {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Streamer{
		logger:   logger,
		manager:  manager,
		conn:     conn,
		ctx:      ctx,
		cancel:   cancel,
		outputCh: make(chan outboundMessage, outputChannelSize),
		owned:    make(map[string]bool),
	}
	go s.runReader()
	go s.runWriter()
	return s
}

// ============================================================================
// Read path
// ============================================================================

func (s *Streamer) runReader() {
	defer s.disconnect()

	for {
		msgType, payload, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		switch msgType {
		case websocket.TextMessage:
			s.handleText(payload)
		case websocket.BinaryMessage:
			s.handleBinary(payload)
		}
	}
}

func (s *Streamer) handleText(payload []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.logger.Warnw("channel: discarding unparseable message", "error", err)
		return
	}

	if msg.Event != nil {
		s.handleEvent(*msg.Event, msg.SessionID)
		return
	}
	if msg.Content != "" {
		pcm, err := base64.StdEncoding.DecodeString(msg.Content)
		if err != nil {
			s.logger.Warnw("channel: discarding undecodable audio", "sessionId", msg.SessionID, "error", err)
			return
		}
		s.manager.OnChunk(msg.SessionID, pcm)
	}
}

// handleBinary treats a raw frame as one PCM chunk when the connection owns
// exactly one session; with several sessions the frame is ambiguous.
func (s *Streamer) handleBinary(payload []byte) {
	s.mu.Lock()
	var target string
	if len(s.owned) == 1 {
		for id := range s.owned {
			target = id
		}
	}
	s.mu.Unlock()

	if target == "" {
		s.logger.Warnw("channel: dropping binary frame without a unique session", "owned", len(s.owned))
		return
	}
	s.manager.OnChunk(target, payload)
}

func (s *Streamer) handleEvent(event int, sessionID string) {
	switch event {
	case EventTurnStart:
		id := s.manager.Start(s)
		s.mu.Lock()
		s.owned[id] = true
		s.mu.Unlock()

	case EventTurnEnd:
		s.SendEventResponse(sessionID)
		go func() {
			s.manager.End(context.Background(), sessionID)
			s.mu.Lock()
			delete(s.owned, sessionID)
			s.mu.Unlock()
		}()

	case EventPause, EventResume:
		// Accepted, no-op.

	default:
		s.logger.Warnw("channel: unknown event code", "event", event)
	}
}

// ============================================================================
// Write path
// ============================================================================

func (s *Streamer) runWriter() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.outputCh:
			payload, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.logger.Debugw("channel: write failed", "type", msg.Type, "error", err)
				return
			}
		}
	}
}

// push sends a message to the writer (non-blocking).
func (s *Streamer) push(msg outboundMessage) {
	select {
	case s.outputCh <- msg:
	default:
		s.logger.Warnw("channel: output channel full, dropping message", "type", msg.Type, "sessionId", msg.SessionID)
	}
}

// ============================================================================
// ClientSink
// ============================================================================

func (s *Streamer) SendTurnReady(sessionID string) {
	s.push(outboundMessage{Type: "turnReady", SessionID: sessionID})
}

func (s *Streamer) SendDelivery(sessionID, result string, isFinal bool) {
	end := 0
	if isFinal {
		end = 1
	}
	s.push(outboundMessage{Type: "delivery", SessionID: sessionID, Result: result, End: &end})
}

func (s *Streamer) SendDeliveryEnd(sessionID string) {
	s.push(outboundMessage{Type: "deliveryEnd", SessionID: sessionID})
}

func (s *Streamer) SendEventResponse(sessionID string) {
	s.push(outboundMessage{Type: "eventResponse", SessionID: sessionID})
}

// ============================================================================
// Disconnect
// ============================================================================

// disconnect is idempotent. A dropped client is an implicit turn end for
// every session this connection owns; the drain still runs so queued
// recognitions are flushed and state is cleaned up.
func (s *Streamer) disconnect() {
	s.mu.Lock()
	alreadyClosed := s.closed
	s.closed = true
	s.mu.Unlock()
	if alreadyClosed {
		return
	}

	s.manager.EndAllFor(context.Background(), s)
	s.cancel()
	s.conn.Close()
}
