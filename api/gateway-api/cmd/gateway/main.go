// Copyright (c) 2024-2026 SohriAI
//
// Licensed under GPL-2.0 with Sohri Additional Terms.
// See LICENSE.md for commercial usage.

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	internal_artifacts "github.com/sohriai/gateway/api/gateway-api/internal/artifacts"
	internal_dispatch "github.com/sohriai/gateway/api/gateway-api/internal/dispatch"
	internal_epd "github.com/sohriai/gateway/api/gateway-api/internal/epd"
	internal_session "github.com/sohriai/gateway/api/gateway-api/internal/session"
	internal_stt "github.com/sohriai/gateway/api/gateway-api/internal/stt"
	gateway_routers "github.com/sohriai/gateway/api/gateway-api/router"
	"github.com/sohriai/gateway/config"
	"github.com/sohriai/gateway/pkg/commons"
)

func main() {
	v, err := config.InitConfig()
	if err != nil {
		log.Fatalf("failed to init config: %v", err)
	}
	cfg, err := config.GetApplicationConfig(v)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := commons.NewApplicationLogger()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	logger.Infow("starting gateway",
		"service", cfg.Name, "version", cfg.Version, "env", cfg.Environment().Get())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	artifacts := internal_artifacts.NewStore(logger, cfg.ResultDir)

	encoder, err := internal_stt.NewEncoder(cfg.SpeechAudioFormat)
	if err != nil {
		logger.Errorf("invalid audio format: %v", err)
		return
	}
	sttClient := internal_stt.NewClient(logger, cfg.SpeechAPIURL, cfg.SpeechAPIBatchURL, cfg.SpeechAPIToken, encoder, artifacts)

	epdClient := internal_epd.NewClient(logger, cfg.WsURL, cfg.WsReconnectInterval, cfg.WsHeartbeatInterval)
	queue := internal_dispatch.NewQueue()
	manager := internal_session.NewManager(logger, epdClient, queue, artifacts, cfg.DrainIdleInterval, cfg.DrainMaxWait)
	dispatcher := internal_dispatch.NewDispatcher(logger, queue, sttClient, manager, manager, cfg.DispatchInterval, cfg.DispatchBatchSize)
	manager.SetFlusher(dispatcher)

	epdClient.SetCallback(manager.OnEpdEvent)
	if err := epdClient.Connect(); err != nil {
		// The reconnect timer keeps trying; readiness reports the gap.
		logger.Warnw("initial epd connect failed", "error", err)
	}
	defer epdClient.Shutdown()

	if cfg.Environment().IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
	}))
	gateway_routers.HealthCheckRoutes(cfg, engine, logger, epdClient, manager)
	gateway_routers.TalkRoutes(cfg, engine, logger, manager)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: engine,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Run(gctx)
	})
	g.Go(func() error {
		logger.Infof("listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Errorf("gateway exited: %v", err)
	}
	logger.Info("gateway stopped")
}
