package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	DatabasePath string
	LogLevel     string
	Port         string

	// Broker (Schwab) settings
	BrokerProvider  string // "schwab" or "sim"
	SchwabAppKey    string
	SchwabAppSecret string
	SchwabBaseURL   string
	SchwabTokenPath string
	SchwabAccountID string

	// Broker client behaviour
	BrokerTimeout       time.Duration
	BrokerCacheTTL      time.Duration
	BrokerRatePerSec    int
	DefaultLookbackDays int
	CheckLookbackDays   int
}

// Cfg is a global instance of the AppConfig.
var Cfg *AppConfig

// LoadConfig loads configuration from environment variables or a .env file.
// It centralizes all configuration logic for the application.
func LoadConfig() {
	// 1. Try loading from the current directory (standard behavior)
	errEnv := godotenv.Load()

	// 2. If not found, try loading from the parent directory
	if errEnv != nil {
		errEnv = godotenv.Load("../.env")
	}

	if errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Println("Info: No .env file found. Relying on OS environment variables.")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", errEnv)
		}
	}

	Cfg = &AppConfig{
		// Core
		DatabasePath: getEnv("DATABASE_PATH", "data/assignments.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Port:         getEnv("PORT", "8080"),

		// Broker
		BrokerProvider:  strings.ToLower(getEnv("BROKER_PROVIDER", "schwab")),
		SchwabAppKey:    getEnv("SCHWAB_APP_KEY", ""),
		SchwabAppSecret: getEnv("SCHWAB_APP_SECRET", ""),
		SchwabBaseURL:   getEnv("SCHWAB_BASE_URL", "https://api.schwabapi.com"),
		SchwabTokenPath: getEnv("SCHWAB_TOKEN_PATH", "data/schwab_token.json"),
		SchwabAccountID: getEnv("SCHWAB_ACCOUNT_ID", ""),

		// Broker client behaviour
		BrokerTimeout:       getEnvAsDuration("BROKER_TIMEOUT", 30*time.Second),
		BrokerCacheTTL:      getEnvAsDuration("BROKER_CACHE_TTL", 5*time.Minute),
		BrokerRatePerSec:    getEnvAsInt("BROKER_RATE_PER_SEC", 2),
		DefaultLookbackDays: getEnvAsInt("DEFAULT_LOOKBACK_DAYS", 30),
		CheckLookbackDays:   getEnvAsInt("CHECK_LOOKBACK_DAYS", 3),
	}

	log.Printf("Configuration loaded: LogLevel=%s, DBPath=%s, Broker=%s",
		Cfg.LogLevel, Cfg.DatabasePath, Cfg.BrokerProvider)
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getRequiredEnv retrieves an environment variable or terminates the application if not set.
func getRequiredEnv(key string) string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set or is empty.", key)
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a fallback.
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a fallback.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
