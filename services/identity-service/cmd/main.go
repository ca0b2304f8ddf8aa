package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// PostgreSQL Driver
	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"

	// Interne
	"github.com/jupiterclapton/cenackle/pkg/cache"
	"github.com/jupiterclapton/cenackle/pkg/healthcheck"
	"github.com/jupiterclapton/cenackle/pkg/httpx"
	"github.com/jupiterclapton/cenackle/pkg/logger"
	"github.com/jupiterclapton/cenackle/pkg/telemetry"
	"github.com/jupiterclapton/cenackle/services/identity-service/config"
	http_adapter "github.com/jupiterclapton/cenackle/services/identity-service/internal/adapters/primary/http"
	"github.com/jupiterclapton/cenackle/services/identity-service/internal/adapters/secondary/repository"
	"github.com/jupiterclapton/cenackle/services/identity-service/internal/adapters/secondary/security"
	"github.com/jupiterclapton/cenackle/services/identity-service/internal/adapters/secondary/tokenstore"
	"github.com/jupiterclapton/cenackle/services/identity-service/internal/core/services"
)

func main() {
	// 1. Charger la Config
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. Logger
	log := logger.Init(cfg.Env)
	log.Info("🚀 Starting Identity Service", "env", cfg.Env, "http_port", cfg.HTTPPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Tracing (OpenTelemetry)
	tp, err := telemetry.InitTracer(ctx, "identity-service", cfg.Env, cfg.OtelEndpoint)
	if err != nil {
		log.Error("Failed to init tracer", "error", err)
	} else {
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	// 4. Infrastructure : Postgres
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

	// Vérification connectivité immédiate (Fail Fast)
	if err := dbPool.Ping(ctx); err != nil {
		log.Error("Database ping failed", "error", err)
		os.Exit(1)
	}
	if err := repository.EnsureSchema(ctx, dbPool); err != nil {
		log.Error("Unable to prepare schema", "error", err)
		os.Exit(1)
	}
	log.Info("✅ Database connected")

	// 5. Infrastructure : Redis (refresh tokens)
	redisClient, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, 0)
	if err != nil {
		log.Error("Unable to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info("✅ Connected to Redis")

	// 6. Sécurité (JWT HS256 & Argon2)
	issuer, err := security.NewHS256Issuer(cfg.JWTSecret, cfg.AccessTTL)
	if err != nil {
		log.Error("Failed to init JWT issuer", "error", err)
		os.Exit(1)
	}
	hasher := security.NewArgon2Hasher(security.DefaultParams)

	// 7. Wiring
	identityService := services.NewIdentityService(
		repository.NewPostgresRepo(dbPool),
		hasher,
		issuer,
		tokenstore.NewRedisStore(redisClient),
		log,
	)

	// 8. Primary Adapter (HTTP) + Health Check gRPC
	engine := httpx.NewEngine(cfg.Env, log)
	http_adapter.NewHandler(identityService, log).Register(engine)
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           httpx.Handler(engine, "identity-service"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Pas de bus ici : prêt dès que Postgres et Redis répondent
	healthServer := healthcheck.New(log)
	healthServer.SetServing(true)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Error("Failed to listen", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := healthServer.Serve(lis); err != nil {
			log.Error("gRPC health server error", "error", err)
		}
	}()
	go func() {
		log.Info("📡 Identity Service listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// 9. Graceful Shutdown
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
