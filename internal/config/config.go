package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DatabaseURL           string
	HTTPPort              string
	CoinGeckoURL          string
	CoinGeckoAPIKey       string
	CoinGeckoDelay        time.Duration
	CoinGeckoRetryMax     int
	JWTSecret             string
	TokenTTL              time.Duration
	BcryptCost            int
	CORSOrigin            string
	LogLevel              string
	LogFile               string
	GoogleCredentialsJSON string
	SpreadsheetID         string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		DatabaseURL:           envOrDefaultWarn("DATABASE_URL", ""),
		HTTPPort:              envOrDefault("HTTP_PORT", "8080"),
		CoinGeckoURL:          envOrDefault("COINGECKO_URL", "https://api.coingecko.com/api/v3"),
		CoinGeckoAPIKey:       envOrDefault("COINGECKO_API_KEY", ""),
		CoinGeckoDelay:        envOrDefaultDuration("COINGECKO_DELAY", 2*time.Second),
		CoinGeckoRetryMax:     envOrDefaultInt("COINGECKO_RETRY_MAX", 0),
		JWTSecret:             envOrDefault("JWT_SECRET", ""),
		TokenTTL:              envOrDefaultDuration("TOKEN_TTL", 7*24*time.Hour),
		BcryptCost:            envOrDefaultInt("BCRYPT_COST", 10),
		CORSOrigin:            envOrDefault("CORS_ORIGIN", "*"),
		LogLevel:              envOrDefault("LOG_LEVEL", "info"),
		LogFile:               envOrDefault("LOG_FILE", ""),
		GoogleCredentialsJSON: envOrDefault("GOOGLE_CREDENTIALS_JSON", ""),
		SpreadsheetID:         envOrDefault("SPREADSHEET_ID", ""),
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultWarn(key, defaultVal string) string {
	v := envOrDefault(key, defaultVal)
	if v == "" {
		slog.Warn("required env var not set", "key", key)
	}
	return v
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}
