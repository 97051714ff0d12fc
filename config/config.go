package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverMongo  = "mongo"
	StoreDriverMemory = "memory"
)

type Config struct {
	ServerPort     string
	AllowedOrigins string
	Environment    string

	MongoDBURL   string
	MongoDBName  string
	StoreDriver  string
	StoreTimeout time.Duration

	RedisURL string

	JWTSecret string
	TokenTTL  time.Duration

	AdminEmail    string
	AdminPassword string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
	MinioPublicURL string

	RazorpayKeyID     string
	RazorpayKeySecret string
	Currency          string
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationWithDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load() // Ignore error since file might not exist in production

	env := strings.ToLower(getEnvWithDefault("ENVIRONMENT", "development"))
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[env] {
		return nil, fmt.Errorf("invalid environment value: %s", env)
	}

	driver := strings.ToLower(getEnvWithDefault("STORE_DRIVER", StoreDriverMongo))
	if driver != StoreDriverMongo && driver != StoreDriverMemory {
		return nil, fmt.Errorf("invalid store driver: %s", driver)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	storeTimeout, err := getDurationWithDefault("STORE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	tokenTTL, err := getDurationWithDefault("TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	useSSL, _ := strconv.ParseBool(getEnvWithDefault("MINIO_USE_SSL", "true"))

	config := &Config{
		Environment:    env,
		ServerPort:     getEnvWithDefault("SERVER_PORT", "8080"),
		AllowedOrigins: getEnvWithDefault("ALLOWED_ORIGINS", "*"),

		MongoDBURL:   os.Getenv("MONGODB_URL"),
		MongoDBName:  getEnvWithDefault("MONGODB_NAME", "clinic"),
		StoreDriver:  driver,
		StoreTimeout: storeTimeout,

		RedisURL: getEnvWithDefault("REDIS_URL", "redis://localhost:6379/0"),

		JWTSecret: secret,
		TokenTTL:  tokenTTL,

		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioUseSSL:    useSSL,
		MinioPublicURL: os.Getenv("MINIO_PUBLIC_URL"),

		RazorpayKeyID:     os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret: os.Getenv("RAZORPAY_KEY_SECRET"),
		Currency:          getEnvWithDefault("CURRENCY", "INR"),
	}

	if config.StoreDriver == StoreDriverMongo && config.MongoDBURL == "" {
		return nil, fmt.Errorf("MONGODB_URL environment variable is required for the mongo store")
	}

	return config, nil
}

// IsDevelopment returns whether the current environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns whether the current environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsStaging returns whether the current environment is staging
func (c *Config) IsStaging() bool {
	return c.Environment == "staging"
}
