package config

import (
	"os"
	"strconv"
	"time"
)

type AppConfig struct {
	// Server
	HTTPAddr    string
	DatabaseURL string
	RedisAddr   string
	RedisPass   string

	// JWT
	JWTSecret string
	JWTIssuer string
	JWTTTL    time.Duration

	// Session
	MaxDevicesPerUser int
	SessionTimeout    time.Duration
	ValidateInterval  time.Duration
	SyncInterval      time.Duration
	CleanupInterval   time.Duration
	DeviceStateTTL    time.Duration

	// Telegram
	TelegramBotUsername string
	TelegramBotToken    string

	// Bootstrap admin
	AdminEmail    string
	AdminPassword string
	AdminName     string
}

// Load loads environment variables into AppConfig.
func Load() AppConfig {
	return AppConfig{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8000"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:   getEnv("REDIS_PASS", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "saot-service"),
		JWTTTL:    getEnvDuration("JWT_TTL", 24*time.Hour),

		MaxDevicesPerUser: getEnvInt("SESSION_MAX_DEVICES", 2),
		SessionTimeout:    getEnvDuration("SESSION_TIMEOUT", 30*time.Minute),
		ValidateInterval:  getEnvDuration("SESSION_VALIDATE_INTERVAL", 30*time.Second),
		SyncInterval:      getEnvDuration("SESSION_SYNC_INTERVAL", 2*time.Minute),
		CleanupInterval:   getEnvDuration("SESSION_CLEANUP_INTERVAL", 5*time.Minute),
		DeviceStateTTL:    getEnvDuration("DEVICE_STATE_TTL", 24*time.Hour),

		TelegramBotUsername: getEnv("TELEGRAM_BOT_USERNAME", "proweb_sale_bot"),
		TelegramBotToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),

		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@proweb.uz"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminName:     getEnv("ADMIN_NAME", "Administrator"),
	}
}

// --- Helper functions ---

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
