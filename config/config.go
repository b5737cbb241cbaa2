// Package config loads server configuration from the environment.
// A .env file in the working directory is honored when present.
package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPort        = "8080"
	defaultDataDir     = ".synapse"
	defaultChatTimeout = 30 * time.Second
)

// Config holds all server settings.
type Config struct {
	Port      string
	DataDir   string
	AuthToken string // empty disables API auth
	DevMode   bool

	// Outbound chat workflow (n8n webhook behind the /api/chat proxy)
	WebhookURL   string
	WebhookToken string
	ChatTimeout  time.Duration

	// Dashboard data source (Google Sheets values API)
	SpreadsheetID string
	SheetsAPIKey  string
}

// Load reads configuration from a .env file (if any) and the process
// environment. Missing values fall back to defaults; credentials left empty
// disable the feature that needs them.
func Load() Config {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	cfg := Config{
		Port:          getenv("PORT", defaultPort),
		DataDir:       getenv("DATA_DIR", defaultDataDir),
		AuthToken:     os.Getenv("AUTH_TOKEN"),
		DevMode:       os.Getenv("DEV_MODE") == "true",
		WebhookURL:    os.Getenv("N8N_WEBHOOK_URL"),
		WebhookToken:  os.Getenv("N8N_BEARER_TOKEN"),
		ChatTimeout:   defaultChatTimeout,
		SpreadsheetID: os.Getenv("GOOGLE_SPREADSHEET_ID"),
		SheetsAPIKey:  os.Getenv("GOOGLE_SHEETS_API_KEY"),
	}

	if env := os.Getenv("CHAT_TIMEOUT"); env != "" {
		if d, err := time.ParseDuration(env); err == nil {
			cfg.ChatTimeout = d
		} else {
			slog.Warn("invalid CHAT_TIMEOUT, using default", "value", env, "default", defaultChatTimeout)
		}
	}

	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
