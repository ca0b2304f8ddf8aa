// Package router assemble la chaîne de middlewares de la gateway.
package router

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jupiterclapton/cenackle/services/api-gateway/config"
	"github.com/jupiterclapton/cenackle/services/api-gateway/internal/auth"
	"github.com/jupiterclapton/cenackle/services/api-gateway/internal/proxy"
	"github.com/jupiterclapton/cenackle/services/api-gateway/internal/ratelimit"
)

// AuthPrefix reste public : login et register n'ont pas encore de token.
const AuthPrefix = "/v1/auth"

func New(cfg config.Config, logger *slog.Logger) (http.Handler, error) {
	gw, err := proxy.New([]proxy.Route{
		{Name: "auth", Upstream: cfg.IdentityURL},
		{Name: "posts", Upstream: cfg.PostURL},
		{Name: "media", Upstream: cfg.MediaURL},
		{Name: "search", Upstream: cfg.SearchURL},
	}, logger)
	if err != nil {
		return nil, err
	}

	// 1. Auth (pose x-user-id)
	var h http.Handler = auth.Middleware(auth.NewVerifier(cfg.JWTSecret), logger, AuthPrefix)(gw)

	// 2. Logs + rate limit par IP
	h = requestLogger(logger)(h)
	h = ratelimit.New(cfg.RateLimitMax, cfg.RateLimitWindow, logger).Middleware(h)

	// 3. CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "baggage", "sentry-trace"},
		AllowCredentials: true,
	})
	h = c.Handler(h)

	// 4. OTEL HTTP (Racine)
	h = otelhttp.NewHandler(h, "api-gateway", otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
		return fmt.Sprintf("HTTP %s %s", r.Method, r.URL.Path)
	}))

	mux := http.NewServeMux()
	mux.Handle("/v1/", h)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	return mux, nil
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Info("Received request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		})
	}
}
