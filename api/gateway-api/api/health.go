// Copyright (c) 2024-2026 SohriAI
//
// Licensed under GPL-2.0 with Sohri Additional Terms.
// See LICENSE.md for commercial usage.

package gateway_api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	internal_epd "github.com/sohriai/gateway/api/gateway-api/internal/epd"
	internal_session "github.com/sohriai/gateway/api/gateway-api/internal/session"
	"github.com/sohriai/gateway/config"
	"github.com/sohriai/gateway/pkg/commons"
)

type HealthAPI struct {
	cfg     *config.AppConfig
	logger  commons.Logger
	epd     *internal_epd.Client
	manager *internal_session.Manager
}

func NewHealthAPI(cfg *config.AppConfig, logger commons.Logger, epd *internal_epd.Client, manager *internal_session.Manager) *HealthAPI {
	return &HealthAPI{cfg: cfg, logger: logger, epd: epd, manager: manager}
}

func (h *HealthAPI) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": h.cfg.Name,
		"version": h.cfg.Version,
	})
}

// Readiness fails while the endpoint-detector link is down: without it the
// gateway can accept audio but never segment it.
func (h *HealthAPI) Readiness(c *gin.Context) {
	if !h.epd.Connected() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "epd disconnected"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"sessions": h.manager.Count(),
	})
}
