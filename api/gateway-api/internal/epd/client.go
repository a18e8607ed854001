// Copyright (c) 2024-2026 SohriAI
//
// Licensed under GPL-2.0 with Sohri Additional Terms.
// See LICENSE.md for commercial usage.

package internal_epd

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sohriai/gateway/pkg/commons"
	"github.com/sohriai/gateway/pkg/utils"
)

// Callback receives inbound detector events one-for-one in receive order.
type Callback func(Event)

// Client is the single process-wide connection to the endpoint detector.
// Outbound frames are binary: 16 raw session-uuid bytes followed by the PCM
// chunk verbatim. Inbound frames are JSON status events demuxed to the
// registered callback. The connection heartbeats on a timer and reconnects
// after a configurable delay unless explicitly shut down.
type Client struct {
	logger commons.Logger

	url               string
	reconnectInterval time.Duration
	heartbeatInterval time.Duration

	mu       sync.Mutex // guards connection, closed, writes
	conn     *websocket.Conn
	closed   bool
	callback Callback

	stopHeartbeat chan struct{}
}

func NewClient(logger commons.Logger, url string, reconnectInterval, heartbeatInterval time.Duration) *Client {
	return &Client{
		logger:            logger,
		url:               url,
		reconnectInterval: reconnectInterval,
		heartbeatInterval: heartbeatInterval,
	}
}

// SetCallback registers the event sink. Must be called before Connect.
func (c *Client) SetCallback(cb Callback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callback = cb
}

// Connect opens the detector websocket. Idempotent: a second call while the
// connection is open is a no-op.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}
	if c.closed {
		return fmt.Errorf("epd: client is shut down")
	}

	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("epd: failed to connect to %s: %w", c.url, err)
	}
	c.conn = conn
	c.stopHeartbeat = make(chan struct{})

	go c.readLoop(conn)
	go c.heartbeat(conn, c.stopHeartbeat)

	c.logger.Infof("epd: connected to %s", c.url)
	return nil
}

// Send transmits one binary frame of exactly 16+len(chunk) bytes. When the
// connection is down the chunk is dropped silently; the segmentation clock
// advances with one fewer detector event and no retry is attempted.
func (c *Client) Send(sessionID string, chunk []byte) error {
	raw, err := utils.SessionIDBytes(sessionID)
	if err != nil {
		return fmt.Errorf("epd: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		c.logger.Debugw("epd: connection down, dropping chunk", "sessionId", sessionID, "bytes", len(chunk))
		return nil
	}

	frame := make([]byte, 0, len(raw)+len(chunk))
	frame = append(frame, raw...)
	frame = append(frame, chunk...)
	if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("epd: failed to send chunk: %w", err)
	}
	return nil
}

// Connected reports whether the websocket is currently up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Shutdown closes the connection and disables reconnection.
func (c *Client) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.teardownLocked()
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			c.onDisconnect(conn, err)
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			c.logger.Warnw("epd: discarding unparseable event", "error", err)
			continue
		}
		if ev.SpeechScore != nil {
			c.logger.Debugw("epd: event", "sessionId", ev.SessionID, "status", ev.Status.String(), "speechScore", *ev.SpeechScore)
		}

		c.mu.Lock()
		cb := c.callback
		c.mu.Unlock()
		if cb != nil {
			cb(ev)
		}
	}
}

func (c *Client) heartbeat(conn *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(c.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.conn != conn {
				c.mu.Unlock()
				return
			}
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			c.mu.Unlock()
			if err != nil {
				c.logger.Warnw("epd: heartbeat failed", "error", err)
			}
		}
	}
}

// onDisconnect tears the connection down and, unless Shutdown ran, schedules
// a reconnect. Sessions are unaware of the gap; chunks sent meanwhile drop.
func (c *Client) onDisconnect(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		// A newer connection already replaced this one.
		c.mu.Unlock()
		return
	}
	c.teardownLocked()
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return
	}
	c.logger.Warnw("epd: connection lost, scheduling reconnect", "error", cause, "after", c.reconnectInterval)
	c.scheduleReconnect()
}

func (c *Client) scheduleReconnect() {
	time.AfterFunc(c.reconnectInterval, func() {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		if err := c.Connect(); err != nil {
			c.logger.Errorf("epd: reconnect failed: %v", err)
			c.scheduleReconnect()
		}
	})
}

func (c *Client) teardownLocked() {
	if c.stopHeartbeat != nil {
		close(c.stopHeartbeat)
		c.stopHeartbeat = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
