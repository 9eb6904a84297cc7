package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the API server and the
// external providers it talks to.
type Config struct {
	DatabaseURL string
	ServerAddr  string
	AppURL      string
	LogLevel    string

	ClerkJWKSURL       string
	ClerkWebhookSecret string

	StripeSecretKey     string
	StripeWebhookSecret string

	ReplicateAPIToken      string
	ReplicateBaseURL       string
	ReplicateWebhookSecret string
	ReplicateTimeout       time.Duration

	S3Endpoint      string
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3PublicBaseURL string
	S3UsePathStyle  bool

	// RedisURL is optional: without it the rate limiter and webhook
	// deduplicator run in fail-open mode.
	RedisURL string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	SignupBonusCredits int
}

// Load reads configuration from environment variables, optionally seeded
// from a .env file. Missing required secrets are reported together so a
// broken deployment fails once with the full list.
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		ServerAddr:             getEnv("SERVER_ADDR", ":8080"),
		AppURL:                 getEnv("APP_URL", "http://localhost:3000"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		ClerkJWKSURL:           os.Getenv("CLERK_JWKS_URL"),
		ClerkWebhookSecret:     os.Getenv("CLERK_WEBHOOK_SECRET"),
		StripeSecretKey:        os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:    os.Getenv("STRIPE_WEBHOOK_SECRET"),
		ReplicateAPIToken:      os.Getenv("REPLICATE_API_TOKEN"),
		ReplicateBaseURL:       getEnv("REPLICATE_BASE_URL", "https://api.replicate.com"),
		ReplicateWebhookSecret: os.Getenv("REPLICATE_WEBHOOK_SECRET"),
		ReplicateTimeout:       time.Second * time.Duration(getEnvInt("REPLICATE_TIMEOUT_SECONDS", 120)),
		S3Endpoint:             os.Getenv("S3_ENDPOINT"),
		S3Region:               getEnv("S3_REGION", "auto"),
		S3AccessKey:            os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:            os.Getenv("S3_SECRET_KEY"),
		S3Bucket:               getEnv("S3_BUCKET", "room-uploads"),
		S3PublicBaseURL:        os.Getenv("S3_PUBLIC_BASE_URL"),
		S3UsePathStyle:         getEnvBool("S3_USE_PATH_STYLE", true),
		RedisURL:               os.Getenv("REDIS_URL"),
		RateLimitRequests:      getEnvInt("RATE_LIMIT_REQUESTS", 5),
		RateLimitWindow:        time.Second * time.Duration(getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60)),
		SignupBonusCredits:     getEnvInt("SIGNUP_BONUS_CREDITS", 3),
	}

	var missing []string
	for _, v := range []struct {
		name, value string
	}{
		{"DATABASE_URL", cfg.DatabaseURL},
		{"CLERK_JWKS_URL", cfg.ClerkJWKSURL},
		{"CLERK_WEBHOOK_SECRET", cfg.ClerkWebhookSecret},
		{"STRIPE_SECRET_KEY", cfg.StripeSecretKey},
		{"STRIPE_WEBHOOK_SECRET", cfg.StripeWebhookSecret},
		{"REPLICATE_API_TOKEN", cfg.ReplicateAPIToken},
		{"REPLICATE_WEBHOOK_SECRET", cfg.ReplicateWebhookSecret},
		{"S3_ACCESS_KEY", cfg.S3AccessKey},
		{"S3_SECRET_KEY", cfg.S3SecretKey},
		{"S3_PUBLIC_BASE_URL", cfg.S3PublicBaseURL},
	} {
		if v.value == "" {
			missing = append(missing, v.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v", missing)
	}

	return cfg, nil
}

func loadEnvFile() {
	for _, path := range []string{".env", "configs/.env"} {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.IsDir() {
			continue
		}
		_ = godotenv.Load(path)
		return
	}
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
