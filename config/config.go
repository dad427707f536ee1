package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	DatabaseURL     string
	RedisAddr       string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	QuizTTL         time.Duration
	TrustTTL        time.Duration
}

func Load() *Config {
	// Best effort: a missing .env file is fine, env vars may come from the
	// environment directly.
	_ = godotenv.Load()

	return &Config{
		Port:            getEnv("PORT", "8080"),
		DatabaseURL:     os.Getenv("DB_URL"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		QuizTTL:         time.Duration(getEnvInt("QUIZ_TTL_HOURS", 24)) * time.Hour,
		TrustTTL:        time.Duration(getEnvInt("TRUST_TTL_HOURS", 6)) * time.Hour,
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
