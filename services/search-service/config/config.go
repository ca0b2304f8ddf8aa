package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPPort      string
	GRPCPort      string // health check
	MongoURI      string
	MongoDatabase string
	NatsUrl       string
	RedisAddr     string
	RedisPassword string
	OtelEndpoint  string
	Env           string
	// QueueName vide => files anonymes exclusives (comportement par défaut)
	QueueName      string
	SearchCacheTTL time.Duration
	DurableTopic   bool
}

func Load() Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("HTTP_PORT", "3004")
	v.SetDefault("GRPC_PORT", "50054")
	v.SetDefault("MONGODB_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGODB_DATABASE", "search_db")
	v.SetDefault("NATS_URL", "nats://localhost:4222")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	v.SetDefault("APP_ENV", "local")
	v.SetDefault("EVENTS_QUEUE", "")
	v.SetDefault("SEARCH_CACHE_TTL", "120s")
	v.SetDefault("EVENTS_DURABLE", false)

	return Config{
		HTTPPort:       v.GetString("HTTP_PORT"),
		GRPCPort:       v.GetString("GRPC_PORT"),
		MongoURI:       v.GetString("MONGODB_URI"),
		MongoDatabase:  v.GetString("MONGODB_DATABASE"),
		NatsUrl:        v.GetString("NATS_URL"),
		RedisAddr:      v.GetString("REDIS_ADDR"),
		RedisPassword:  v.GetString("REDIS_PASSWORD"),
		OtelEndpoint:   v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Env:            v.GetString("APP_ENV"),
		QueueName:      v.GetString("EVENTS_QUEUE"),
		SearchCacheTTL: v.GetDuration("SEARCH_CACHE_TTL"),
		DurableTopic:   v.GetBool("EVENTS_DURABLE"),
	}
}
