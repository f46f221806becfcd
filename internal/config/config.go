// SPDX-License-Identifier: AGPL-3.0-only
package config

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fluffyriot/creatorsync/internal/auth"
	"github.com/fluffyriot/creatorsync/internal/database"
	"github.com/pressly/goose/v3"

	_ "github.com/lib/pq"
)

type AppConfig struct {
	AppEnv        string
	AppURL        string
	DashboardPath string
	Port          string

	TokenEncryptionKey []byte
	OAuthStateSecret   string
	AuthJWTSecret      string
	AuthJWTIssuer      string

	GoogleClientID      string
	GoogleClientSecret  string
	FacebookAppID       string
	FacebookAppSecret   string
	InstagramAPIVersion string
	TikTokClientKey     string
	TikTokClientSecret  string

	SyncInterval      time.Duration
	HTTPTimeout       time.Duration
	ProviderRPS       float64
	ProviderBurst     int
	WorkerConcurrency int

	DatabaseURL string
}

func (c *AppConfig) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// CallbackURL is the redirect URI registered with the provider.
func (c *AppConfig) CallbackURL(platform database.Platform) string {
	return strings.TrimRight(c.AppURL, "/") + "/api/auth/" + string(platform) + "/callback"
}

// Configured reports whether the OAuth credentials of platform are set.
func (c *AppConfig) Configured(platform database.Platform) bool {
	switch platform {
	case database.PlatformYouTube:
		return c.GoogleClientID != "" && c.GoogleClientSecret != ""
	case database.PlatformInstagram:
		return c.FacebookAppID != "" && c.FacebookAppSecret != ""
	case database.PlatformTikTok:
		return c.TikTokClientKey != "" && c.TikTokClientSecret != ""
	}
	return false
}

func (c *AppConfig) DashboardURL() string {
	return strings.TrimRight(c.AppURL, "/") + c.DashboardPath
}

func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{
		AppEnv:              getEnvString("APP_ENV", "production"),
		AppURL:              getEnvString("APP_URL", "http://localhost:8080"),
		DashboardPath:       getEnvString("DASHBOARD_PATH", "/dashboard"),
		Port:                getEnvString("PORT", "8080"),
		OAuthStateSecret:    os.Getenv("OAUTH_STATE_SECRET"),
		AuthJWTSecret:       os.Getenv("AUTH_JWT_SECRET"),
		AuthJWTIssuer:       os.Getenv("AUTH_JWT_ISSUER"),
		GoogleClientID:      os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:  os.Getenv("GOOGLE_CLIENT_SECRET"),
		FacebookAppID:       os.Getenv("FACEBOOK_APP_ID"),
		FacebookAppSecret:   os.Getenv("FACEBOOK_APP_SECRET"),
		InstagramAPIVersion: getEnvString("INSTAGRAM_API_VERSION", "v18.0"),
		TikTokClientKey:     os.Getenv("TIKTOK_CLIENT_KEY"),
		TikTokClientSecret:  os.Getenv("TIKTOK_CLIENT_SECRET"),
		SyncInterval:        getEnvDuration("SYNC_INTERVAL", 6*time.Hour),
		HTTPTimeout:         getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		ProviderRPS:         getEnvFloat("PROVIDER_RPS", 5),
		ProviderBurst:       getEnvInt("PROVIDER_BURST", 10),
		WorkerConcurrency:   getEnvInt("WORKER_CONCURRENCY", 4),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
	}

	var missing []string
	keyEnc := os.Getenv("TOKEN_ENCRYPTION_KEY")
	if keyEnc == "" {
		missing = append(missing, "TOKEN_ENCRYPTION_KEY")
	}
	if cfg.OAuthStateSecret == "" {
		missing = append(missing, "OAUTH_STATE_SECRET")
	}
	if cfg.AuthJWTSecret == "" {
		missing = append(missing, "AUTH_JWT_SECRET")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	key, err := auth.ParseKey(keyEnc)
	if err != nil {
		return nil, fmt.Errorf("TOKEN_ENCRYPTION_KEY: %w", err)
	}
	cfg.TokenEncryptionKey = key

	if !strings.HasPrefix(cfg.InstagramAPIVersion, "v") {
		cfg.InstagramAPIVersion = "v" + cfg.InstagramAPIVersion
	}

	return cfg, nil
}

func databaseURL(cfg *AppConfig) (string, error) {
	if cfg.DatabaseURL != "" {
		return cfg.DatabaseURL, nil
	}

	dbName := os.Getenv("POSTGRES_DB")
	dbUserName := os.Getenv("POSTGRES_USER")
	dbPassword := os.Getenv("POSTGRES_PASSWORD")
	dbHost := getEnvString("POSTGRES_HOST", "db")
	dbPort := getEnvString("POSTGRES_PORT", "5432")

	if dbName == "" || dbUserName == "" || dbPassword == "" {
		return "", fmt.Errorf("failed to load the database configuration: set DATABASE_URL or POSTGRES_DB, POSTGRES_USER and POSTGRES_PASSWORD")
	}

	return fmt.Sprintf("postgres://%v:%v@%v:%v/%v?sslmode=disable", dbUserName, dbPassword, dbHost, dbPort, dbName), nil
}

func LoadDatabase(cfg *AppConfig) (*sql.DB, *database.Queries, error) {
	connectDbUrl, err := databaseURL(cfg)
	if err != nil {
		return nil, nil, err
	}

	db, err := sql.Open("postgres", connectDbUrl)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to the DB: %w", err)
	}

	goose.SetBaseFS(database.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, nil, fmt.Errorf("failed to set migration dialect: %w", err)
	}

	if err := goose.Up(db, database.MigrationsDir); err != nil {
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get DB version: %w", err)
	}
	log.Printf("Migrations applied successfully. Current DB version: %d", version)

	return db, database.New(db), nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
