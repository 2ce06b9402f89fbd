package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/authflow/internal/auth/cache"
	"github.com/aussiebroadwan/authflow/internal/auth/service"
)

type Config struct {
	Issuer         string // Optional: issuer claim for tokens (default: authflow)
	NumKeys        int    // Optional: number of ephemeral signing keys (default: 1, max: 10)
	SigningKeyFile string // Optional: Ed25519 PEM loaded (or created) so signed links survive restarts
	DatabaseFile   string // Optional: path to SQLite database file (default: ./auth.db)
	PepperFile     string // Optional: path to file containing pepper for password hashing (default: ./pepper)

	TokenTTLs  service.TokenTTLs
	RoleFilter []string // Optional: roles allowed at credential lookup, empty means any

	CacheDefaultTTL  time.Duration // Optional: default lifetime of cached DTOs (default: 14 days)
	ActionRequestTTL time.Duration // Optional: lifetime of an action request (default: 1h)

	RedisAddr     string // Optional: (default: localhost:6379)
	RedisPassword string
	RedisDB       int

	KafkaBrokers []string // Optional: empty keeps events in the log only
	KafkaTopic   string   // Optional: (default: auth.events)
	EventSource  string   // Optional: CloudEvents source (default: /auth-service)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	defaults := service.DefaultTokenTTLs

	return Config{
		Issuer:         getEnvOrDefault("AUTH_ISSUER", "authflow"),
		NumKeys:        getEnvIntOrDefault("AUTH_NUM_KEYS", 1),
		SigningKeyFile: os.Getenv("AUTH_SIGNING_KEY_FILE"),
		DatabaseFile:   getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		PepperFile:     getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),

		TokenTTLs: service.TokenTTLs{
			Login:             getEnvDurationOrDefault("AUTH_LOGIN_TTL", defaults.Login),
			PasswordReset:     getEnvDurationOrDefault("AUTH_PASSWORD_RESET_TTL", defaults.PasswordReset),
			EmailVerification: getEnvDurationOrDefault("AUTH_EMAIL_VERIFICATION_TTL", defaults.EmailVerification),
			Access:            getEnvDurationOrDefault("AUTH_ACCESS_TTL", defaults.Access),
		},
		RoleFilter: getEnvListOrDefault("AUTH_ROLE_FILTER", nil),

		CacheDefaultTTL:  getEnvDurationOrDefault("CACHE_DEFAULT_TTL", cache.DefaultTTL),
		ActionRequestTTL: getEnvDurationOrDefault("ACTION_REQUEST_TTL", time.Hour),

		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvIntOrDefault("REDIS_DB", 0),

		KafkaBrokers: getEnvListOrDefault("KAFKA_BROKERS", nil),
		KafkaTopic:   getEnvOrDefault("KAFKA_TOPIC", "auth.events"),
		EventSource:  getEnvOrDefault("EVENT_SOURCE", "/auth-service"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
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

// getEnvListOrDefault splits a comma separated value, dropping empty items.
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for item := range strings.SplitSeq(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
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

	// Plain integers are minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
