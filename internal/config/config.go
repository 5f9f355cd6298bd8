// Package config は環境変数からのアプリケーション設定読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Server
	ServerPort string
	BaseURL    string

	// Mojang
	MojangAPIURL  string
	LookupTimeout time.Duration

	// Discord
	DiscordBotToken string
	CommandPrefix   string

	// Notifier
	NotifyInterval time.Duration

	// Cleanup
	SessionRetentionDays int
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// DISCORD_BOT_TOKENはbotモードでのみ必要なため、ここでは必須としない。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.MojangAPIURL = getEnvString("MOJANG_API_URL", "https://api.mojang.com")
	cfg.LookupTimeout = getEnvDuration("LOOKUP_TIMEOUT", 5*time.Second)
	cfg.DiscordBotToken = os.Getenv("DISCORD_BOT_TOKEN")
	cfg.CommandPrefix = getEnvString("COMMAND_PREFIX", "!")
	cfg.NotifyInterval = getEnvDuration("NOTIFY_INTERVAL", 10*time.Second)
	cfg.SessionRetentionDays = getEnvInt("SESSION_RETENTION_DAYS", 90)

	return cfg, nil
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
