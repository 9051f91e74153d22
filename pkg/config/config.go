package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds server configuration.
type Config struct {
	Port          string
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	AuditDBPath   string
	JWTSecret     string
	ProvidersFile string
	SweepInterval time.Duration
}

// Load loads configuration from environment variables.
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8084"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = "postgres://rentfold@localhost:5432/rentfold?sslmode=disable"
	}

	auditPath := os.Getenv("AUDIT_DB_PATH")
	if auditPath == "" {
		auditPath = "esign-audit.db"
	}

	providersFile := os.Getenv("PROVIDERS_FILE")
	if providersFile == "" {
		providersFile = "providers.yaml"
	}

	sweep := 1 * time.Minute
	if raw := os.Getenv("SWEEP_INTERVAL_SECONDS"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			sweep = time.Duration(v) * time.Second
		}
	}

	return &Config{
		Port:          port,
		LogLevel:      logLevel,
		DatabaseURL:   dbURL,
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		AuditDBPath:   auditPath,
		JWTSecret:     os.Getenv("JWT_SECRET"),
		ProvidersFile: providersFile,
		SweepInterval: sweep,
	}
}
