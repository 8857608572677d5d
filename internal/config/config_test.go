package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithHeaderAuth(t *testing.T) {
	t.Setenv("AUTH_MODE", "header")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "chat-service", cfg.ServiceName)
	assert.Equal(t, StoreBackendPostgres, cfg.StoreBackend)
	assert.Equal(t, ":8083", cfg.HTTPAddr())
	assert.Equal(t, int64(100*1024*1024), cfg.UploadMaxBytes)
	assert.Equal(t, time.Hour, cfg.S3PresignTTL)
	assert.Equal(t, 24*time.Hour, cfg.TranscriptRetention)
	assert.False(t, cfg.UploadsEnabled())
}

func TestLoadRequiresJWKSForJWTMode(t *testing.T) {
	t.Setenv("AUTH_MODE", "jwt")
	t.Setenv("AUTH_JWKS_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_JWKS_URL")
}

func TestLoadRejectsUnknownStoreBackend(t *testing.T) {
	t.Setenv("AUTH_MODE", "header")
	t.Setenv("STORE_BACKEND", "dynamo")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadNormalizesPublicURL(t *testing.T) {
	t.Setenv("AUTH_MODE", "HEADER")
	t.Setenv("STORE_BACKEND", "Memory")
	t.Setenv("S3_PUBLIC_URL", "https://cdn.example.com/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreBackendMemory, cfg.StoreBackend)
	assert.Equal(t, AuthModeHeader, cfg.AuthMode)
	assert.Equal(t, "https://cdn.example.com", cfg.S3PublicBaseURL)
}
