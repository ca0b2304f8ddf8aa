package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Drivers
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	// Interne
	"github.com/jupiterclapton/cenackle/pkg/eventbus"
	"github.com/jupiterclapton/cenackle/pkg/events"
	"github.com/jupiterclapton/cenackle/pkg/healthcheck"
	"github.com/jupiterclapton/cenackle/pkg/httpx"
	"github.com/jupiterclapton/cenackle/pkg/logger"
	"github.com/jupiterclapton/cenackle/pkg/telemetry"
	"github.com/jupiterclapton/cenackle/services/media-service/config"
	event_adapter "github.com/jupiterclapton/cenackle/services/media-service/internal/adapters/primary/events"
	http_adapter "github.com/jupiterclapton/cenackle/services/media-service/internal/adapters/primary/http"
	"github.com/jupiterclapton/cenackle/services/media-service/internal/adapters/secondary/repository"
	"github.com/jupiterclapton/cenackle/services/media-service/internal/adapters/secondary/storage"
	"github.com/jupiterclapton/cenackle/services/media-service/internal/core/services"
)

func main() {
	// 1. Config & Logger
	cfg := config.Load()
	log := logger.Init(cfg.Env)
	log.Info("🚀 Starting Media Service", "http_port", cfg.HTTPPort, "env", cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Télémétrie (Tracing)
	tp, err := telemetry.InitTracer(ctx, "media-service", cfg.Env, cfg.OtelEndpoint)
	if err != nil {
		log.Error("Failed to init tracer", "error", err)
	} else {
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	// 3. Infrastructure: Postgres via gorm
	db, err := gorm.Open(postgres.Open(cfg.DBUrl), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Error("Unable to connect to database", "error", err)
		os.Exit(1)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	mediaRepo := repository.NewGormRepo(db)
	if err := mediaRepo.Migrate(ctx); err != nil {
		log.Error("Unable to migrate schema", "error", err)
		os.Exit(1)
	}
	log.Info("✅ Connected to Postgres")

	// 4. Infrastructure: Cloudinary
	blobs, err := storage.NewCloudinaryStorage(cfg.CloudName, cfg.CloudAPIKey, cfg.CloudAPISecret, cfg.CloudFolder)
	if err != nil {
		log.Error("Unable to configure Cloudinary", "error", err)
		os.Exit(1)
	}

	// 5. Initialisation du Core
	retry := services.DefaultRetryPolicy()
	if cfg.CleanupMaxTries > 0 {
		retry.MaxTries = cfg.CleanupMaxTries
	}
	mediaService := services.NewMediaService(mediaRepo, blobs, retry, log)

	// 6. Event Bus + Consumer (Driving Adapter - Async)
	bus := eventbus.NewClient(eventbus.Config{URL: cfg.NatsUrl, Name: "media-service"}, log)
	defer bus.Close()
	if err := bus.DeclareTopic(ctx, events.Exchange, cfg.DurableTopic); err != nil {
		log.Warn("Topic declaration deferred", "error", err)
	}
	if err := event_adapter.NewConsumer(mediaService, log).Register(ctx, bus, cfg.QueueName); err != nil {
		log.Error("Failed to subscribe", "error", err)
		os.Exit(1)
	}
	go func() {
		if err := bus.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Event bus supervisor stopped", "error", err)
		}
	}()
	log.Info("👂 Listening for events", "topic", events.Exchange)

	// 7. Primary Adapter (HTTP) + Health Check gRPC
	engine := httpx.NewEngine(cfg.Env, log)
	http_adapter.NewHandler(mediaService, log).Register(engine)
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           httpx.Handler(engine, "media-service"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	healthServer := healthcheck.New(log)
	healthServer.Follow(bus)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Error("Failed to listen", "error", err)
		os.Exit(1)
	}

	// 8. Démarrage
	go func() {
		if err := healthServer.Serve(lis); err != nil {
			log.Error("gRPC health server error", "error", err)
		}
	}()
	go func() {
		log.Info("📡 Media Service listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("🛑 Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	healthServer.GracefulStop()
	log.Info("👋 Server exited")
}
