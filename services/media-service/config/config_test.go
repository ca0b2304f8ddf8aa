package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "3003", cfg.HTTPPort)
	assert.Equal(t, "50055", cfg.GRPCPort)
	assert.Equal(t, uint(3), cfg.CleanupMaxTries)
	assert.Empty(t, cfg.QueueName)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("CLOUDINARY_CLOUD_NAME", "demo")
	t.Setenv("EVENTS_QUEUE", "media")
	t.Setenv("MEDIA_CLEANUP_MAX_TRIES", "5")

	cfg := Load()
	assert.Equal(t, "demo", cfg.CloudName)
	assert.Equal(t, "media", cfg.QueueName)
	assert.Equal(t, uint(5), cfg.CleanupMaxTries)
}
