// Package config loads runtime settings from the environment.
// Call godotenv.Load() before Load so values from a local .env are visible.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Logger   LoggerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Kafka    KafkaConfig
}

type ServerConfig struct {
	AppEnv         string
	Port           string
	AllowedOrigins []string
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

type DatabaseConfig struct {
	URL string
	// LockTimeout bounds how long a transaction waits for a row lock.
	LockTimeout time.Duration
	// MaxAttempts is how many times a retryable failure is attempted in total.
	MaxAttempts int
	AutoMigrate bool
}

type JWTConfig struct {
	Secret   string
	TokenTTL time.Duration
}

// KafkaConfig is optional. With no brokers, domain events are discarded.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.Server.AppEnv == "development" || c.Server.AppEnv == "dev"
}

// ValidateJWT rejects an empty signing secret outside development.
func (c *Config) ValidateJWT() error {
	if c.JWT.Secret == "" && !c.IsDevelopment() {
		return errors.New("JWT_SECRET must be set outside development")
	}
	return nil
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv:         getEnv("APP_ENV", "production"),
			Port:           getEnv("SERVER_PORT", "8080"),
			AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", nil),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOG_LEVEL", "info"),
			Encoding:          getEnv("LOG_ENCODING", "json"),
			DisableCaller:     getEnvBool("LOG_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOG_DISABLE_STACKTRACE", true),
		},
		Database: DatabaseConfig{
			URL:         getEnv("DATABASE_URL", ""),
			LockTimeout: getEnvDuration("LOCK_TIMEOUT", 5*time.Second),
			MaxAttempts: getEnvInt("TX_MAX_ATTEMPTS", 3),
			AutoMigrate: getEnvBool("DB_AUTO_MIGRATE", false),
		},
		JWT: JWTConfig{
			Secret:   getEnv("JWT_SECRET", ""),
			TokenTTL: getEnvDuration("JWT_TTL", time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvSlice("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_TOPIC", "storefront.ledger.events"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
