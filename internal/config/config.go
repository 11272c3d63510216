package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port        string
	LogLevel    string
	HTTPTimeout time.Duration
	// RetryAttempts is the per-request retry cap for platform API calls.
	RetryAttempts int
	// DatabaseDSN is a go-sql-driver DSN; parseTime=true is forced on open.
	DatabaseDSN     string
	CredentialsPath string
	CredentialsKey  string
	EnableScheduler bool
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}

	timeout, err := time.ParseDuration(getEnv("HTTP_TIMEOUT", "30s"))
	if err != nil {
		timeout = 30 * time.Second
	}
	retryAttempts, err := strconv.Atoi(getEnv("RETRY_ATTEMPTS", "3"))
	if err != nil {
		retryAttempts = 3
	}
	enableScheduler, err := strconv.ParseBool(getEnv("ENABLE_SCHEDULER", "true"))
	if err != nil {
		enableScheduler = true
	}

	return &Config{
		Port:            getEnv("PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		HTTPTimeout:     timeout,
		RetryAttempts:   retryAttempts,
		DatabaseDSN:     getEnv("DATABASE_DSN", ""),
		CredentialsPath: getEnv("CREDENTIALS_PATH", "credentials/api_credentials.enc"),
		CredentialsKey:  getEnv("CREDENTIALS_KEY", "change_this_in_production_environment"),
		EnableScheduler: enableScheduler,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
