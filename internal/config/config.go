package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port                int
	DatabaseURL         string
	LogLevel            string
	NatsURL             string
	NatsToken           string
	RedisURL            string
	TelegramBotToken    string
	TelegramSecret      string
	VisionAPIKey        string
	DriveAccessToken    string
	DriveFolderID       string
	AdminUsername       string
	AdminPassword       string
	SessionTimeout      time.Duration
	ConversationTTL     time.Duration
	CompanionAPIEnabled bool
}

func Load() Config {
	return Config{
		Port:                envInt("CANVASS_PORT", 8780),
		DatabaseURL:         envStr("DATABASE_URL", ""),
		LogLevel:            envStr("LOG_LEVEL", "info"),
		NatsURL:             envStr("NATS_URL", ""),
		NatsToken:           envStr("NATS_TOKEN", ""),
		RedisURL:            envStr("REDIS_URL", ""),
		TelegramBotToken:    envStr("TELEGRAM_BOT_TOKEN", ""),
		TelegramSecret:      envStr("TELEGRAM_WEBHOOK_SECRET", ""),
		VisionAPIKey:        envStr("VISION_API_KEY", ""),
		DriveAccessToken:    envStr("DRIVE_ACCESS_TOKEN", ""),
		DriveFolderID:       envStr("DRIVE_FOLDER_ID", ""),
		AdminUsername:       envStr("ADMIN_USERNAME", ""),
		AdminPassword:       envStr("ADMIN_PASSWORD", ""),
		SessionTimeout:      envDuration("SESSION_TIMEOUT", 24*time.Hour),
		ConversationTTL:     envDuration("CONVERSATION_TTL", 30*time.Minute),
		CompanionAPIEnabled: envBool("COMPANION_API_ENABLED", true),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// envDuration accepts Go duration strings ("45m", "24h"). Non-positive
// values fall back to the default.
func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
