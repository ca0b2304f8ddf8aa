package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port         string
	JWTSecret    string
	IdentityURL  string
	PostURL      string
	MediaURL     string
	SearchURL    string
	OtelEndpoint string
	Env          string // "local" ou "prod"

	RateLimitMax    int
	RateLimitWindow time.Duration
	AllowedOrigins  []string
}

func Load() Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "3000")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("IDENTITY_SERVICE_URL", "http://localhost:3001")
	v.SetDefault("POST_SERVICE_URL", "http://localhost:3002")
	v.SetDefault("MEDIA_SERVICE_URL", "http://localhost:3003")
	v.SetDefault("SEARCH_SERVICE_URL", "http://localhost:3004")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	v.SetDefault("APP_ENV", "local")
	v.SetDefault("RATE_LIMIT_MAX", 100)
	v.SetDefault("RATE_LIMIT_WINDOW", "15m")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000 http://localhost:19006")

	return Config{
		Port:            v.GetString("PORT"),
		JWTSecret:       v.GetString("JWT_SECRET"),
		IdentityURL:     v.GetString("IDENTITY_SERVICE_URL"),
		PostURL:         v.GetString("POST_SERVICE_URL"),
		MediaURL:        v.GetString("MEDIA_SERVICE_URL"),
		SearchURL:       v.GetString("SEARCH_SERVICE_URL"),
		OtelEndpoint:    v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Env:             v.GetString("APP_ENV"),
		RateLimitMax:    v.GetInt("RATE_LIMIT_MAX"),
		RateLimitWindow: v.GetDuration("RATE_LIMIT_WINDOW"),
		AllowedOrigins:  v.GetStringSlice("CORS_ALLOWED_ORIGINS"),
	}
}
