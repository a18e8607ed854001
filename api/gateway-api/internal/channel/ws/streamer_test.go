// Copyright (c) 2024-2026 SohriAI
//
// Licensed under GPL-2.0 with Sohri Additional Terms.
// See LICENSE.md for commercial usage.

package channel_ws

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internal_artifacts "github.com/sohriai/gateway/api/gateway-api/internal/artifacts"
	internal_audio "github.com/sohriai/gateway/api/gateway-api/internal/audio"
	internal_dispatch "github.com/sohriai/gateway/api/gateway-api/internal/dispatch"
	internal_epd "github.com/sohriai/gateway/api/gateway-api/internal/epd"
	internal_session "github.com/sohriai/gateway/api/gateway-api/internal/session"
	internal_type "github.com/sohriai/gateway/api/gateway-api/internal/type"
	"github.com/sohriai/gateway/pkg/commons"
)

// recordingSender captures chunks forwarded to the detector.
type recordingSender struct {
	mu     sync.Mutex
	chunks [][]byte
}

func (r *recordingSender) Send(sessionID string, chunk []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, chunk)
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chunks)
}

type echoRecognizer struct{}

func (echoRecognizer) Batch(_ context.Context, items []internal_type.BatchItem) ([]internal_type.Recognition, error) {
	out := make([]internal_type.Recognition, 0, len(items))
	for _, item := range items {
		out = append(out, internal_type.Recognition{
			SessionID: item.SessionID,
			Sequence:  item.Sequence,
			Result:    fmt.Sprintf("text %d-%d", item.Start, item.End),
			IsFinal:   item.IsFinal,
		})
	}
	return out, nil
}

type harness struct {
	manager *internal_session.Manager
	epd     *recordingSender
	client  *websocket.Conn
}

// newHarness upgrades one real websocket pair with a Streamer on the server
// side and returns the client end.
func newHarness(t *testing.T) *harness {
	t.Helper()
	logger, err := commons.NewApplicationLogger()
	require.NoError(t, err)

	epd := &recordingSender{}
	queue := internal_dispatch.NewQueue()
	artifacts := internal_artifacts.NewStore(logger, t.TempDir())
	manager := internal_session.NewManager(logger, epd, queue, artifacts, 5*time.Millisecond, 300*time.Millisecond)
	dispatcher := internal_dispatch.NewDispatcher(logger, queue, echoRecognizer{}, manager, manager, 10*time.Millisecond, 16)
	manager.SetFlusher(dispatcher)

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewStreamer(logger, manager, conn)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return &harness{manager: manager, epd: epd, client: client}
}

func (h *harness) sendJSON(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, h.client.WriteJSON(v))
}

// readMessage reads the next outbound text message within a deadline.
func (h *harness) readMessage(t *testing.T) outboundMessage {
	t.Helper()
	require.NoError(t, h.client.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg outboundMessage
	require.NoError(t, h.client.ReadJSON(&msg))
	return msg
}

// startTurn runs the turn-start handshake and returns the session id.
func (h *harness) startTurn(t *testing.T) string {
	t.Helper()
	h.sendJSON(t, map[string]any{"event": EventTurnStart})
	msg := h.readMessage(t)
	require.Equal(t, "turnReady", msg.Type)
	require.NotEmpty(t, msg.SessionID)
	return msg.SessionID
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestStreamer_TurnStartHandshake(t *testing.T) {
	h := newHarness(t)

	id := h.startTurn(t)
	assert.Equal(t, 1, h.manager.Count())
	_ = id
}

func TestStreamer_Base64AudioForwarded(t *testing.T) {
	h := newHarness(t)
	id := h.startTurn(t)

	pcm := make([]byte, internal_audio.ChunkBytes)
	pcm[0] = 0x7f
	h.sendJSON(t, map[string]any{
		"sessionId": id,
		"content":   base64.StdEncoding.EncodeToString(pcm),
	})

	waitFor(t, func() bool { return h.epd.count() == 1 })
	h.epd.mu.Lock()
	defer h.epd.mu.Unlock()
	assert.Equal(t, byte(0x7f), h.epd.chunks[0][0])
}

func TestStreamer_BinaryAudioRoutedToOwnedSession(t *testing.T) {
	h := newHarness(t)
	h.startTurn(t)

	pcm := make([]byte, internal_audio.ChunkBytes)
	require.NoError(t, h.client.WriteMessage(websocket.BinaryMessage, pcm))

	waitFor(t, func() bool { return h.epd.count() == 1 })
}

func TestStreamer_BinaryDroppedWithoutSession(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.client.WriteMessage(websocket.BinaryMessage, make([]byte, 8)))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, h.epd.count())
}

func TestStreamer_TurnEndDeliversResultsThenEnd(t *testing.T) {
	h := newHarness(t)
	id := h.startTurn(t)

	// Push audio and detector events through the manager directly, as the
	// detector callback would.
	for i := 0; i < 10; i++ {
		h.manager.OnChunk(id, make([]byte, internal_audio.ChunkBytes))
		h.manager.OnEpdEvent(internal_epd.Event{SessionID: id, Status: internal_epd.StatusSpeech})
	}

	h.sendJSON(t, map[string]any{"event": EventTurnEnd, "sessionId": id})

	// eventResponse acknowledges the request immediately; the drain then
	// emits the recognitions and the delivery end.
	msg := h.readMessage(t)
	assert.Equal(t, "eventResponse", msg.Type)

	var types []string
	var finals []int
	for {
		msg = h.readMessage(t)
		types = append(types, msg.Type)
		if msg.Type == "delivery" {
			require.NotNil(t, msg.End)
			finals = append(finals, *msg.End)
		}
		if msg.Type == "deliveryEnd" {
			break
		}
	}

	assert.Equal(t, []string{"delivery", "delivery", "deliveryEnd"}, types)
	assert.Equal(t, []int{0, 1}, finals, "partial first, then the closing final")
	waitFor(t, func() bool { return h.manager.Count() == 0 })
}

func TestStreamer_UnknownEventIgnored(t *testing.T) {
	h := newHarness(t)
	id := h.startTurn(t)

	h.sendJSON(t, map[string]any{"event": 99, "sessionId": id})
	h.sendJSON(t, map[string]any{"event": EventPause, "sessionId": id})
	h.sendJSON(t, map[string]any{"event": EventResume, "sessionId": id})

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, h.manager.Count(), "session unaffected by pause, resume, junk")
}

func TestStreamer_DisconnectEndsOwnedSessions(t *testing.T) {
	h := newHarness(t)
	h.startTurn(t)
	h.startTurn(t)
	require.Equal(t, 2, h.manager.Count())

	h.client.Close()

	waitFor(t, func() bool { return h.manager.Count() == 0 })
}
