package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jupiterclapton/cenackle/pkg/logger"
	"github.com/jupiterclapton/cenackle/pkg/telemetry"
	"github.com/jupiterclapton/cenackle/services/api-gateway/config"
	"github.com/jupiterclapton/cenackle/services/api-gateway/internal/router"
)

func main() {
	// 1. Configuration & Logger
	cfg := config.Load()
	log := logger.Init(cfg.Env)
	log.Info("🚀 Starting API Gateway", "port", cfg.Port, "env", cfg.Env)

	if cfg.JWTSecret == "" {
		log.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Télémétrie (Tracing)
	tp, err := telemetry.InitTracer(ctx, "api-gateway", cfg.Env, cfg.OtelEndpoint)
	if err != nil {
		log.Error("Failed to init tracer", "error", err)
	} else {
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	// 3. Routage : /v1/* -> services
	h, err := router.New(cfg, log)
	if err != nil {
		log.Error("Invalid upstream configuration", "error", err)
		os.Exit(1)
	}
	log.Info("Upstreams configured",
		"identity", cfg.IdentityURL,
		"posts", cfg.PostURL,
		"media", cfg.MediaURL,
		"search", cfg.SearchURL,
	)

	// 4. Démarrage Graceful
	srvHTTP := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("📡 Gateway listening", "port", cfg.Port)
		if err := srvHTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("🛑 Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srvHTTP.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("👋 Server exited")
}
