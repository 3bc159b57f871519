package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultMaxUploadBytes is the decoded document size limit
const DefaultMaxUploadBytes = 45 * 1024 * 1024

// Config holds all application configuration
type Config struct {
	// Server configuration
	Environment    string
	Port           string
	LogLevel       string
	AppURL         string
	MaxUploadBytes int64

	// Database configuration
	DBType            string // mysql, mariadb, postgres, sqlite, sqlite-pure, sqlserver
	DBHost            string
	DBPort            string
	DBDatabase        string
	DBUser            string
	DBPassword        string
	DBConnectionLimit int
	DBLogLevel        string

	// Authorizer configuration
	AuthzURL      string
	AuthzClientID string

	// Change events, disabled when RedisURL is empty
	RedisURL      string
	EventsChannel string

	// Document content storage: db (inline column), minio or memory
	BlobBackend    string
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool

	// Outbound e-mail, disabled when SMTPHost is empty
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	EmailTimeout time.Duration
}

// Load loads configuration from environment variables.
// ENV_FILE names a dotenv file that must exist, otherwise a .env in the working
// directory is loaded when present. Variables already set are never overridden.
func Load() (*Config, error) {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := &Config{
		Environment:       getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "3000"),
		LogLevel:          getEnv("LOG_LEVEL", ""),
		AppURL:            strings.TrimSuffix(getEnv("APP_URL", "http://localhost:3000"), "/"),
		MaxUploadBytes:    getEnvAsInt64("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes),
		DBType:            getEnv("DB_TYPE", "mysql"),
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnv("DB_PORT", "3306"),
		DBDatabase:        getEnv("DB_DATABASE", ""),
		DBUser:            getEnv("DB_USER", ""),
		DBPassword:        getEnv("DB_PASSWORD", ""),
		DBConnectionLimit: getEnvAsInt("DB_CONNECTION_LIMIT", 5),
		DBLogLevel:        getEnv("DB_LOG_LEVEL", "warn"),
		AuthzURL:          getEnv("AUTHZ_URL", ""),
		AuthzClientID:     getEnv("AUTHZ_CLIENT_ID", ""),
		RedisURL:          getEnv("REDIS_URL", ""),
		EventsChannel:     getEnv("EVENTS_CHANNEL", "permit-review:changes"),
		BlobBackend:       getEnv("BLOB_BACKEND", "db"),
		MinIOEndpoint:     getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:    getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:    getEnv("MINIO_SECRET_KEY", ""),
		MinIOBucket:       getEnv("MINIO_BUCKET", "permit-documents"),
		MinIOUseSSL:       getEnvAsBool("MINIO_USE_SSL", false),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getEnv("SMTP_PORT", "587"),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:          getEnv("SMTP_FROM", ""),
		SMTPFromName:      getEnv("SMTP_FROM_NAME", "Permit Review"),
		EmailTimeout:      getEnvAsDuration("EMAIL_TIMEOUT", 10*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required fields and value ranges
func (cfg *Config) Validate() error {
	if cfg.DBDatabase == "" {
		return fmt.Errorf("DB_DATABASE is required")
	}
	if !cfg.IsSQLite() && cfg.DBUser == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if cfg.AuthzURL == "" {
		return fmt.Errorf("AUTHZ_URL is required")
	}
	if cfg.AuthzClientID == "" {
		return fmt.Errorf("AUTHZ_CLIENT_ID is required")
	}
	if cfg.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}

	switch cfg.BlobBackend {
	case "db", "memory":
	case "minio":
		if cfg.MinIOEndpoint == "" || cfg.MinIOBucket == "" {
			return fmt.Errorf("MINIO_ENDPOINT and MINIO_BUCKET are required for BLOB_BACKEND=minio")
		}
	default:
		return fmt.Errorf("unsupported BLOB_BACKEND: %s", cfg.BlobBackend)
	}

	return nil
}

// IsSQLite reports whether a file based driver is configured
func (cfg *Config) IsSQLite() bool {
	return cfg.DBType == "sqlite" || cfg.DBType == "sqlite-pure"
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	value, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}
