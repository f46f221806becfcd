// SPDX-License-Identifier: AGPL-3.0-only
package config

import (
	"bytes"
	"encoding/base64"
	"testing"
	"time"

	"github.com/fluffyriot/creatorsync/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TOKEN_ENCRYPTION_KEY", base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 32)))
	t.Setenv("OAUTH_STATE_SECRET", "state-secret")
	t.Setenv("AUTH_JWT_SECRET", "jwt-secret")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_URL", "https://creators.example.com/")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "v18.0", cfg.InstagramAPIVersion)
	assert.Equal(t, 6*time.Hour, cfg.SyncInterval)
	assert.Len(t, cfg.TokenEncryptionKey, 32)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "https://creators.example.com/api/auth/tiktok/callback", cfg.CallbackURL(database.PlatformTikTok))
	assert.Equal(t, "https://creators.example.com/dashboard", cfg.DashboardURL())
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	t.Setenv("TOKEN_ENCRYPTION_KEY", "")
	t.Setenv("OAUTH_STATE_SECRET", "")
	t.Setenv("AUTH_JWT_SECRET", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOKEN_ENCRYPTION_KEY")
	assert.Contains(t, err.Error(), "OAUTH_STATE_SECRET")
}

func TestLoadConfig_BadKey(t *testing.T) {
	setRequired(t)
	t.Setenv("TOKEN_ENCRYPTION_KEY", base64.StdEncoding.EncodeToString([]byte("too-short")))

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("INSTAGRAM_API_VERSION", "19.0")
	t.Setenv("SYNC_INTERVAL", "30m")
	t.Setenv("PROVIDER_RPS", "2.5")
	t.Setenv("WORKER_CONCURRENCY", "nope")
	t.Setenv("APP_ENV", "development")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "v19.0", cfg.InstagramAPIVersion)
	assert.Equal(t, 30*time.Minute, cfg.SyncInterval)
	assert.Equal(t, 2.5, cfg.ProviderRPS)
	assert.Equal(t, 4, cfg.WorkerConcurrency)
	assert.True(t, cfg.IsDevelopment())
}

func TestDatabaseURL(t *testing.T) {
	t.Setenv("POSTGRES_DB", "creators")
	t.Setenv("POSTGRES_USER", "app")
	t.Setenv("POSTGRES_PASSWORD", "pw")
	t.Setenv("POSTGRES_HOST", "")
	t.Setenv("POSTGRES_PORT", "")

	url, err := databaseURL(&AppConfig{})
	require.NoError(t, err)
	assert.Equal(t, "postgres://app:pw@db:5432/creators?sslmode=disable", url)

	url, err = databaseURL(&AppConfig{DatabaseURL: "postgres://x"})
	require.NoError(t, err)
	assert.Equal(t, "postgres://x", url)

	t.Setenv("POSTGRES_DB", "")
	_, err = databaseURL(&AppConfig{})
	assert.Error(t, err)
}

func TestConfigured(t *testing.T) {
	cfg := &AppConfig{GoogleClientID: "id", GoogleClientSecret: "secret", TikTokClientKey: "key"}

	assert.True(t, cfg.Configured(database.PlatformYouTube))
	assert.False(t, cfg.Configured(database.PlatformInstagram))
	assert.False(t, cfg.Configured(database.PlatformTikTok))
	assert.False(t, cfg.Configured(database.Platform("myspace")))
}
