package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the service. Values come
// from environment variables, with a .env file loaded first when present.
type Config struct {
	Port         string
	DatabasePath string
	LogLevel     string

	JWTSecret string

	GeminiModel     string
	OracleTimeout   time.Duration
	MaxOutputTokens int32

	MaxUploadBytes int64

	// StatementYear is used for transaction dates that carry no year and
	// whose statement period does not reveal one.
	StatementYear int

	SessionTTL time.Duration

	UploadRatePerMinute int
}

const defaultJWTSecret = "insecure-dev-secret-change-me"

// Load reads configuration from the environment. It never fails; missing
// values fall back to development defaults, with warnings for the ones
// that matter in production.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded, relying on OS environment:", err)
	}

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		DatabasePath:        getEnv("DATABASE_PATH", "./expense-tracker.db"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		JWTSecret:           getEnv("JWT_SECRET", defaultJWTSecret),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		OracleTimeout:       getEnvDuration("ORACLE_TIMEOUT", 60*time.Second),
		MaxOutputTokens:     int32(getEnvInt("ORACLE_MAX_OUTPUT_TOKENS", 2000)),
		MaxUploadBytes:      int64(getEnvInt("MAX_UPLOAD_BYTES", 10*1024*1024)),
		StatementYear:       getEnvInt("STATEMENT_YEAR", time.Now().Year()),
		SessionTTL:          getEnvDuration("SESSION_TTL", 30*time.Minute),
		UploadRatePerMinute: getEnvInt("UPLOAD_RATE_PER_MINUTE", 6),
	}

	if cfg.JWTSecret == defaultJWTSecret {
		log.Println("WARNING: using default insecure JWT_SECRET; set JWT_SECRET for production")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARNING: invalid %s=%q, using default %d: %v", key, v, fallback, err)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("WARNING: invalid %s=%q, using default %s: %v", key, v, fallback, err)
		return fallback
	}
	return d
}
