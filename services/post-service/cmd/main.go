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
	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"

	// Interne
	"github.com/jupiterclapton/cenackle/pkg/cache"
	"github.com/jupiterclapton/cenackle/pkg/eventbus"
	"github.com/jupiterclapton/cenackle/pkg/events"
	"github.com/jupiterclapton/cenackle/pkg/healthcheck"
	"github.com/jupiterclapton/cenackle/pkg/httpx"
	"github.com/jupiterclapton/cenackle/pkg/logger"
	"github.com/jupiterclapton/cenackle/pkg/telemetry"
	"github.com/jupiterclapton/cenackle/services/post-service/config"
	http_adapter "github.com/jupiterclapton/cenackle/services/post-service/internal/adapters/primary/http"
	"github.com/jupiterclapton/cenackle/services/post-service/internal/adapters/secondary/eventbroker"
	"github.com/jupiterclapton/cenackle/services/post-service/internal/adapters/secondary/repository"
	"github.com/jupiterclapton/cenackle/services/post-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/post-service/internal/core/services"
)

func main() {
	// 1. Config & Logger
	cfg := config.Load()
	log := logger.Init(cfg.Env)
	log.Info("🚀 Starting Post Service", "http_port", cfg.HTTPPort, "env", cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Télémétrie (Tracing)
	tp, err := telemetry.InitTracer(ctx, "post-service", cfg.Env, cfg.OtelEndpoint)
	if err != nil {
		log.Error("Failed to init tracer", "error", err)
	} else {
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	// 3. Infrastructure: Base de données (Postgres)
	dbConfig, err := pgxpool.ParseConfig(cfg.DBUrl)
	if err != nil {
		log.Error("Unable to parse DB config", "error", err)
		os.Exit(1)
	}
	dbConfig.ConnConfig.Tracer = otelpgx.NewTracer()

	dbPool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		log.Error("Unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	if err := repository.EnsureSchema(ctx, dbPool); err != nil {
		log.Error("Unable to prepare schema", "error", err)
		os.Exit(1)
	}
	log.Info("✅ Connected to Postgres")

	// 4. Infrastructure: Cache (Redis)
	redisClient, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, 0)
	if err != nil {
		log.Error("Unable to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info("✅ Connected to Redis")

	// 5. Infrastructure: Event Bus (NATS JetStream), connexion supervisée en tâche de fond
	bus := eventbus.NewClient(eventbus.Config{URL: cfg.NatsUrl, Name: "post-service"}, log)
	defer bus.Close()
	if err := bus.DeclareTopic(ctx, events.Exchange, cfg.DurableTopic); err != nil {
		log.Warn("Topic declaration deferred", "error", err)
	}
	go func() {
		if err := bus.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Event bus supervisor stopped", "error", err)
		}
	}()

	// 6. Initialisation des Adapters (Driven)
	postRepo := repository.NewPostgresRepo(dbPool)
	eventPub := eventbroker.NewPublisher(bus, log)
	invalidator := cache.NewInvalidator(cache.NewRedisStore(redisClient), log)

	// 7. Initialisation du Core (Domain Logic)
	svcCfg := services.DefaultConfig()
	svcCfg.Content = domain.ContentPolicy{Min: cfg.ContentMin, Max: cfg.ContentMax}
	svcCfg.ListTTL = cfg.ListCacheTTL
	svcCfg.ItemTTL = cfg.ItemCacheTTL
	postService := services.NewPostService(postRepo, invalidator, eventPub, svcCfg, log)

	// 8. Primary Adapter (HTTP) + Health Check gRPC
	engine := httpx.NewEngine(cfg.Env, log)
	http_adapter.NewHandler(postService, log).Register(engine)
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           httpx.Handler(engine, "post-service"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	healthServer := healthcheck.New(log)
	healthServer.Follow(bus)

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Error("Failed to listen", "error", err)
		os.Exit(1)
	}

	// 9. Démarrage
	go func() {
		if err := healthServer.Serve(lis); err != nil {
			log.Error("gRPC health server error", "error", err)
		}
	}()
	go func() {
		log.Info("📡 Post Service listening", "port", cfg.HTTPPort)
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
