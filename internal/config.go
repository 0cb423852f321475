package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/DukeRupert/leaguekit/internal/storage"
)

type Config struct {
	Env      string
	Port     int
	LogLevel string

	// Storage Configuration
	StorageProvider string // "memory", "local", "redis", "postgres" or "r2"

	// Local Storage (development)
	LocalStoragePath string // Base directory for stored values

	// Redis Storage
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	// PostgreSQL Storage (runs migrations on start)
	DatabaseUrl string

	// R2 Storage
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string

	// Collaborator backend. When empty, the in-process memory backend is used.
	CollabBaseURL string
	CollabTimeout time.Duration

	// Sessions
	SessionLoadTimeout time.Duration // Bound on the fetches started when a form opens
	SessionIdleTimeout time.Duration // In-memory sessions idle longer than this are dropped
	SessionSweepEvery  time.Duration

	// Pricing fallbacks used until the collaborator answers
	KitBasePrice float64
	EntryBaseFee float64

	// Inline images longer than this are recompressed before submission
	ImageRecompressThreshold int

	// Rate limiting for mutating endpoints, per client IP
	RateLimitPerMinute int
	RateLimitBurst     int

	// CORS origins allowed to call the API with credentials
	AllowedOrigins []string

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string

	// Price settings writes. If both are empty, writes are unprotected.
	AdminUsername string
	AdminPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		// Storage defaults to memory for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", storage.ProviderMemory),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./data"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisPrefix:   getEnv("REDIS_PREFIX", "leaguekit:"),

		DatabaseUrl: os.Getenv("DATABASE_URL"),

		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),

		CollabBaseURL: getEnv("COLLAB_BASE_URL", ""),
		CollabTimeout: getEnvDuration("COLLAB_TIMEOUT", 15*time.Second),

		SessionLoadTimeout: getEnvDuration("SESSION_LOAD_TIMEOUT", 10*time.Second),
		SessionIdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		SessionSweepEvery:  getEnvDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),

		KitBasePrice: getEnvFloat("KIT_BASE_PRICE", 150),
		EntryBaseFee: getEnvFloat("ENTRY_BASE_FEE", 500),

		ImageRecompressThreshold: getEnvInt("IMAGE_RECOMPRESS_THRESHOLD", 0),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 30),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),

		AdminUsername: getEnv("ADMIN_USERNAME", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
	}

	// Parse allowed origins from comma-separated environment variable
	for _, origin := range strings.Split(getEnv("ALLOWED_ORIGINS", ""), ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks the provider-specific settings.
func (c *Config) validate() error {
	switch c.StorageProvider {
	case storage.ProviderMemory, storage.ProviderLocal, storage.ProviderRedis:
	case storage.ProviderPostgres:
		if c.DatabaseUrl == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE_PROVIDER is 'postgres'")
		}
	case storage.ProviderR2:
		if c.R2AccountID == "" {
			return fmt.Errorf("R2_ACCOUNT_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2AccessKeyID == "" {
			return fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2SecretAccessKey == "" {
			return fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2BucketName == "" {
			return fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	default:
		return fmt.Errorf("STORAGE_PROVIDER must be one of memory, local, redis, postgres or r2, got: %s", c.StorageProvider)
	}

	if c.RateLimitPerMinute <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE and RATE_LIMIT_BURST must be positive")
	}
	if c.KitBasePrice < 0 || c.EntryBaseFee < 0 {
		return fmt.Errorf("KIT_BASE_PRICE and ENTRY_BASE_FEE cannot be negative")
	}
	return nil
}

// IsSecure reports whether cookies and HSTS should assume HTTPS.
func (c *Config) IsSecure() bool {
	return c.Env != "development"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
