// Copyright (c) 2024-2026 SohriAI
//
// Licensed under GPL-2.0 with Sohri Additional Terms.
// See LICENSE.md for commercial usage.

package gateway_api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	channel_ws "github.com/sohriai/gateway/api/gateway-api/internal/channel/ws"
	internal_session "github.com/sohriai/gateway/api/gateway-api/internal/session"
	"github.com/sohriai/gateway/pkg/commons"
)

type TalkAPI struct {
	logger   commons.Logger
	manager  *internal_session.Manager
	upgrader websocket.Upgrader
}

func NewTalkAPI(logger commons.Logger, manager *internal_session.Manager) *TalkAPI {
	return &TalkAPI{
		logger:  logger,
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			// Origin policy is enforced by the CORS middleware upstream.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Talk upgrades the connection and hands it to a streamer; the streamer's
// goroutines own the socket from here.
func (t *TalkAPI) Talk(c *gin.Context) {
	conn, err := t.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		t.logger.Warnw("talk: websocket upgrade failed", "error", err)
		return
	}
	channel_ws.NewStreamer(t.logger, t.manager, conn)
}
