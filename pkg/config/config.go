package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkolev/warrantyhub/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Blob          BlobConfig
	Redis         RedisConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL         string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// BlobConfig holds blob store configuration. Type selects the backend:
// "s3" (MinIO or AWS) or "filesystem" for local development.
type BlobConfig struct {
	Type string

	// S3
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool

	// Filesystem
	FilesystemRoot string
}

// RedisConfig holds the Redis connection for sessions and rate limiting
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig holds credential and session settings
type AuthConfig struct {
	BcryptCost        int
	SessionTTL        time.Duration
	RateLimitPerMin   int
	RateLimitDisabled bool
}

// ObservabilityConfig holds logging and metrics settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("WHUB_HOST", "0.0.0.0"),
			Port:            getEnv("WHUB_PORT", "8080"),
			ReadTimeout:     getEnvDuration("WHUB_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("WHUB_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("WHUB_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("WHUB_SHUTDOWN_TIMEOUT", 30*time.Second),
			MaxBodyBytes:    getEnvInt64("WHUB_MAX_BODY_BYTES", 10*1024*1024),
		},
		Database: DatabaseConfig{
			URL:         getEnv("WHUB_POSTGRES_URL", ""),
			MaxConns:    getEnvInt("WHUB_POSTGRES_MAX_CONNS", 25),
			MinConns:    getEnvInt("WHUB_POSTGRES_MIN_CONNS", 5),
			Timeout:     getEnvDuration("WHUB_POSTGRES_TIMEOUT", 10*time.Second),
			MaxLifetime: getEnvDuration("WHUB_POSTGRES_MAX_LIFETIME", time.Hour),
			MaxIdleTime: getEnvDuration("WHUB_POSTGRES_MAX_IDLE_TIME", 10*time.Minute),
		},
		Blob: BlobConfig{
			Type:           getEnv("WHUB_BLOB_TYPE", "s3"),
			Endpoint:       getEnv("WHUB_S3_ENDPOINT", ""),
			Region:         getEnv("WHUB_S3_REGION", "us-east-1"),
			Bucket:         getEnv("WHUB_S3_BUCKET", "warrantyhub"),
			AccessKey:      getEnv("WHUB_S3_ACCESS_KEY", ""),
			SecretKey:      getEnv("WHUB_S3_SECRET_KEY", ""),
			UsePathStyle:   getEnvBool("WHUB_S3_USE_PATH_STYLE", true),
			FilesystemRoot: getEnv("WHUB_FILESYSTEM_ROOT", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("WHUB_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("WHUB_REDIS_PASSWORD", ""),
			DB:       getEnvInt("WHUB_REDIS_DB", 0),
		},
		Auth: AuthConfig{
			BcryptCost:        getEnvInt("WHUB_BCRYPT_COST", 10),
			SessionTTL:        getEnvDuration("WHUB_SESSION_TTL", 7*24*time.Hour),
			RateLimitPerMin:   getEnvInt("WHUB_RATE_LIMIT_PER_MIN", 120),
			RateLimitDisabled: getEnvBool("WHUB_RATE_LIMIT_DISABLED", false),
		},
		Observability: ObservabilityConfig{
			LogLevel:       observability.ParseLogLevel(getEnv("WHUB_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("WHUB_METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	switch c.Blob.Type {
	case "s3":
		if c.Blob.Bucket == "" {
			return fmt.Errorf("S3 bucket is required for s3 blob storage")
		}
	case "filesystem":
		if c.Blob.FilesystemRoot == "" {
			return fmt.Errorf("filesystem root is required for filesystem blob storage")
		}
	default:
		return fmt.Errorf("invalid blob storage type: %s (must be s3 or filesystem)", c.Blob.Type)
	}

	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	return nil
}

// getEnv returns a string environment variable or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
