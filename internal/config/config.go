package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret     string
	JWTExpiration time.Duration

	// CORS
	CORSAllowedOrigins []string

	// Challenge
	ChallengeTimeout       time.Duration
	ChallengeSweepInterval time.Duration

	// Queue
	PairRetries int
}

func Load() (*Config, error) {
	// .env 파일 로드 (있는 경우)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                   getEnv("PORT", "8080"),
		Env:                    getEnv("ENV", "development"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		RedisURL:               getEnv("REDIS_URL", "redis://localhost:6379"),
		JWTSecret:              getEnv("JWT_SECRET", "your-secret-key"),
		JWTExpiration:          parseDuration(getEnv("JWT_EXPIRATION", "24h"), 24*time.Hour),
		ChallengeTimeout:       parseDuration(getEnv("CHALLENGE_TIMEOUT", "30s"), 30*time.Second),
		ChallengeSweepInterval: parseDuration(getEnv("CHALLENGE_SWEEP_INTERVAL", "5s"), 5*time.Second),
		PairRetries:            parseInt(getEnv("PAIR_RETRIES", "3"), 3),
		CORSAllowedOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
