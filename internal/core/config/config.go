package config

import (
	"log/slog" // Use the new structured logger
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	DatabaseURL     string
	WebhookURL      string
	Env             string
	GatewaySecret   string
	WebhookSecret   string
	MaxCreditAmount int64
}

// LoadConfig reads .env file and returns a Config struct
func LoadConfig() *Config {
	// Try loading .env file (it might not exist in Production, which is fine)
	err := godotenv.Load()
	if err != nil {
		// We use Warn because it's not a crash, but it's worth noting
		slog.Warn("No .env file found, relying on System Env Variables")
	}

	return &Config{
		Port:            getEnv("PORT", "3000"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		WebhookURL:      getEnv("WEBHOOK_URL", ""),
		Env:             getEnv("ENV", "development"),
		GatewaySecret:   getEnv("GATEWAY_SECRET", ""),
		WebhookSecret:   getEnv("WEBHOOK_SECRET", ""),
		MaxCreditAmount: getEnvInt64("MAX_CREDIT_AMOUNT", 100000),
	}
}

// Helper to get env with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// Same idea, but for numeric settings like MAX_CREDIT_AMOUNT
func getEnvInt64(key string, fallback int64) int64 {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		slog.Warn("Invalid number in env, using fallback", "key", key, "value", value)
		return fallback
	}
	return n
}
