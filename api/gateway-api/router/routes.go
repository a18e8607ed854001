// Copyright (c) 2024-2026 SohriAI
//
// Licensed under GPL-2.0 with Sohri Additional Terms.
// See LICENSE.md for commercial usage.

package gateway_routers

import (
	"github.com/gin-gonic/gin"

	gateway_api "github.com/sohriai/gateway/api/gateway-api/api"
	internal_epd "github.com/sohriai/gateway/api/gateway-api/internal/epd"
	internal_session "github.com/sohriai/gateway/api/gateway-api/internal/session"
	"github.com/sohriai/gateway/config"
	"github.com/sohriai/gateway/pkg/commons"
)

func HealthCheckRoutes(cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger, epd *internal_epd.Client, manager *internal_session.Manager) {
	logger.Info("Internal HealthCheckRoutes added to engine.")
	apiv1 := engine.Group("")
	hcApi := gateway_api.NewHealthAPI(cfg, logger, epd, manager)
	{
		apiv1.GET("/readiness/", hcApi.Readiness)
		apiv1.GET("/healthz/", hcApi.Healthz)
	}
}

func TalkRoutes(cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger, manager *internal_session.Manager) {
	logger.Info("Talk websocket route added to engine.")
	talkApi := gateway_api.NewTalkAPI(logger, manager)
	engine.GET("/ws/talk", talkApi.Talk)
}
