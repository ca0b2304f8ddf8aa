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

	// Interne
	"github.com/jupiterclapton/cenackle/pkg/cache"
	"github.com/jupiterclapton/cenackle/pkg/eventbus"
	"github.com/jupiterclapton/cenackle/pkg/events"
	"github.com/jupiterclapton/cenackle/pkg/healthcheck"
	"github.com/jupiterclapton/cenackle/pkg/httpx"
	"github.com/jupiterclapton/cenackle/pkg/logger"
	"github.com/jupiterclapton/cenackle/pkg/telemetry"
	"github.com/jupiterclapton/cenackle/services/search-service/config"
	event_adapter "github.com/jupiterclapton/cenackle/services/search-service/internal/adapters/primary/events"
	http_adapter "github.com/jupiterclapton/cenackle/services/search-service/internal/adapters/primary/http"
	"github.com/jupiterclapton/cenackle/services/search-service/internal/adapters/secondary/repository"
	"github.com/jupiterclapton/cenackle/services/search-service/internal/core/services"
)

func main() {
	// 1. Config & Logger
	cfg := config.Load()
	log := logger.Init(cfg.Env)
	log.Info("🚀 Starting Search Service", "http_port", cfg.HTTPPort, "env", cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Télémétrie (Tracing)
	tp, err := telemetry.InitTracer(ctx, "search-service", cfg.Env, cfg.OtelEndpoint)
	if err != nil {
		log.Error("Failed to init tracer", "error", err)
	} else {
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	// 3. Infrastructure: MongoDB (projection de recherche)
	mongoClient, err := repository.Connect(ctx, cfg.MongoURI)
	if err != nil {
		log.Error("Unable to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	searchRepo := repository.NewMongoRepo(mongoClient.Database(cfg.MongoDatabase).Collection("searches"))
	if err := searchRepo.EnsureIndexes(ctx); err != nil {
		log.Error("Unable to create indexes", "error", err)
		os.Exit(1)
	}
	log.Info("✅ Connected to MongoDB")

	// 4. Infrastructure: Redis
	redisClient, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, 0)
	if err != nil {
		log.Error("Unable to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info("✅ Connected to Redis")

	// 5. Initialisation du Core
	invalidator := cache.NewInvalidator(cache.NewRedisStore(redisClient), log)
	searchService := services.NewSearchService(searchRepo, invalidator, cfg.SearchCacheTTL, log)

	// 6. Event Bus + Consumer (Driving Adapter - Async)
	// Les abonnements faits avant la connexion sont installés dès qu'elle s'établit.
	bus := eventbus.NewClient(eventbus.Config{URL: cfg.NatsUrl, Name: "search-service"}, log)
	defer bus.Close()
	if err := bus.DeclareTopic(ctx, events.Exchange, cfg.DurableTopic); err != nil {
		log.Warn("Topic declaration deferred", "error", err)
	}
	if err := event_adapter.NewConsumer(searchService, log).Register(ctx, bus, cfg.QueueName); err != nil {
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
	http_adapter.NewHandler(searchService, log).Register(engine)
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           httpx.Handler(engine, "search-service"),
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
		log.Info("📡 Search Service listening", "port", cfg.HTTPPort)
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
