package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/pulsehq/pulse/pkg/jwtx"
)

type Config struct {
	Issuer    string // Issuer claim for tokens (default: pulse-auth)
	JWTSecret []byte // Required: HS256 signing secret, at least 32 bytes

	AccessTTL  time.Duration // Access token lifetime (default: 1h)
	RefreshTTL time.Duration // Refresh token lifetime (default: 720h)

	DatabaseFile string // Path to SQLite database file (default: ./pulse.db)

	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: json)

	Port                int           // HTTP server port (default: 8080)
	SecureCookies       bool          // Set the Secure flag on session cookies (default: true outside dev)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)

	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
	AuditRetention       time.Duration // Recovery attempt log retention (default: 720h)

	RecoveryMaxAttempts int           // Recovery attempts allowed per window (default: 5)
	RecoveryWindow      time.Duration // Recovery throttle window (default: 1h)

	NotifyAMQPURL      string // Optional: RabbitMQ URL; events go to the log when unset
	NotifyAMQPExchange string // Exchange for account events (default: auth.events)
}

// LoadConfig reads configuration from the environment. A .env file in the
// working directory is folded in first; real environment variables win.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Issuer:               getEnvOrDefault("AUTH_ISSUER", "pulse-auth"),
		JWTSecret:            []byte(os.Getenv("AUTH_JWT_SECRET")),
		AccessTTL:            getEnvDurationOrDefault("AUTH_ACCESS_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTTL:           getEnvDurationOrDefault("AUTH_REFRESH_TTL", jwtx.DefaultRefreshTokenTTL),
		DatabaseFile:         getEnvOrDefault("AUTH_DATABASE_FILE", "pulse.db"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
		AuditRetention:       getEnvDurationOrDefault("AUDIT_RETENTION", 30*24*time.Hour),
		RecoveryMaxAttempts:  getEnvIntOrDefault("RECOVERY_MAX_ATTEMPTS", 5),
		RecoveryWindow:       getEnvDurationOrDefault("RECOVERY_WINDOW", 1*time.Hour),
		NotifyAMQPURL:        os.Getenv("NOTIFY_AMQP_URL"),
		NotifyAMQPExchange:   getEnvOrDefault("NOTIFY_AMQP_EXCHANGE", "auth.events"),
	}

	cfg.SecureCookies = getEnvBoolOrDefault("SECURE_COOKIES", cfg.Env != "dev")

	if len(cfg.JWTSecret) == 0 {
		return Config{}, errors.New("AUTH_JWT_SECRET is required")
	}
	if len(cfg.JWTSecret) < jwtx.MinSecretBytes {
		return Config{}, fmt.Errorf("AUTH_JWT_SECRET must be at least %d bytes", jwtx.MinSecretBytes)
	}

	return cfg, nil
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

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}
