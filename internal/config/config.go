package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Port string
	Mode string

	// Database configuration
	DatabaseURL string

	// Redis configuration
	RedisURL string

	// App Store verification configuration
	AppStoreSharedSecret string            // global fallback shared secret
	BundleSecrets        map[string]string // per-bundle shared secrets
	GracePeriodDays      int               // extra days past subscription expiry

	// Outcome cache configuration
	CacheTTLMinutes int
	ServiceName     string
}

var AppConfig *Config

func InitConfig() error {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		// Ignore error if .env file doesn't exist
	}

	AppConfig = &Config{
		Port:                 getEnv("PORT", "8080"),
		Mode:                 getEnv("GIN_MODE", "debug"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		RedisURL:             getEnv("REDIS_URL", "redis://localhost:6379/0"),
		AppStoreSharedSecret: getEnv("APPSTORE_SHARED_SECRET", ""),
		BundleSecrets:        parseBundleSecrets(getEnv("APPSTORE_BUNDLE_SECRETS", "")),
		GracePeriodDays:      getEnvInt("SUBSCRIPTION_GRACE_PERIOD_DAYS", 0),
		CacheTTLMinutes:      getEnvInt("OUTCOME_CACHE_TTL_MINUTES", 5),
		ServiceName:          getEnv("SERVICE_NAME", "IAP Verification Service"),
	}

	if AppConfig.GracePeriodDays < 0 {
		AppConfig.GracePeriodDays = 0
	}

	return nil
}

// parseBundleSecrets parses "bundle=secret,bundle2=secret2" pairs
func parseBundleSecrets(raw string) map[string]string {
	secrets := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		secrets[parts[0]] = parts[1]
	}
	return secrets
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
