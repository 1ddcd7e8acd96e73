package app

import (
	"os"
	"strconv"
	"time"
)

// Provider names registered with the strategy. AUTH_PROVIDER selects which
// one is active at boot.
const (
	ProviderRSAJWE  = "rsa-jwe"
	ProviderRSAJWS  = "rsa-jws"
	ProviderHMACJWS = "hmac-jws"
)

type Config struct {
	Issuer   string // Required: issuer claim for tokens
	Provider string // Optional: active token provider at boot (default: rsa-jwe)

	RSABits        int           // Optional: RSA key size (default: 2048)
	KeyRetainFloor int           // Optional: minimum number of retained signing keys (default: 5)
	KeyPruneGrace  time.Duration // Optional: protection window for freshly demoted keys (default: 15m)
	MasterKeyPath  string        // Optional: path to master encryption key file (else AUTH_MASTER_KEY env)
	HMACSecret     string        // Optional: HMAC provider secret; a fresh one is generated when empty

	AccessTTL  time.Duration // Optional: access token lifetime (default: 15m)
	RefreshTTL time.Duration // Optional: refresh token lifetime (default: 168h)

	DatabaseFile string // Optional: path to SQLite database file (default: ./auth.db)
	PepperFile   string // Optional: path to pepper file for password hashing (default: ./pepper)

	RedisAddr     string // Optional: Redis address for revocation caches (default: localhost:6379)
	RedisPassword string // Optional: Redis password
	RedisDB       int    // Optional: Redis database number (default: 0)
	RevocationTTL time.Duration // Optional: revocation marker TTL (default: 15m)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)

	KeyRotateInterval  time.Duration // Optional: signing key rotation interval (default: 168h)
	KeyPruneInterval   time.Duration // Optional: key pruning interval (default: 6h)
	SessionSweepInterval time.Duration // Optional: expired session sweep interval (default: 1h)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:   getEnvOrDefault("AUTH_ISSUER", "bbmovie-auth"),
		Provider: getEnvOrDefault("AUTH_PROVIDER", ProviderRSAJWE),

		RSABits:        getEnvIntOrDefault("AUTH_RSA_BITS", 2048),
		KeyRetainFloor: getEnvIntOrDefault("AUTH_KEY_RETAIN_FLOOR", 5),
		KeyPruneGrace:  getEnvDurationOrDefault("AUTH_KEY_PRUNE_GRACE", 15*time.Minute),
		MasterKeyPath:  os.Getenv("AUTH_MASTER_KEY_PATH"),
		HMACSecret:     os.Getenv("AUTH_HMAC_SECRET"),

		AccessTTL:  getEnvDurationOrDefault("AUTH_ACCESS_TTL", 15*time.Minute),
		RefreshTTL: getEnvDurationOrDefault("AUTH_REFRESH_TTL", 7*24*time.Hour),

		DatabaseFile: getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		PepperFile:   getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),

		RedisAddr:     getEnvOrDefault("AUTH_REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("AUTH_REDIS_PASSWORD"),
		RedisDB:       getEnvIntOrDefault("AUTH_REDIS_DB", 0),
		RevocationTTL: getEnvDurationOrDefault("AUTH_REVOCATION_TTL", 15*time.Minute),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),

		KeyRotateInterval:    getEnvDurationOrDefault("AUTH_KEY_ROTATE_INTERVAL", 7*24*time.Hour),
		KeyPruneInterval:     getEnvDurationOrDefault("AUTH_KEY_PRUNE_INTERVAL", 6*time.Hour),
		SessionSweepInterval: getEnvDurationOrDefault("AUTH_SESSION_SWEEP_INTERVAL", 1*time.Hour),
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
