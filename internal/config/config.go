package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// defaultTokenTTL matches the lifetime of tokens issued by the previous API (66666666 ms).
const defaultTokenTTL = 66666666 * time.Millisecond

// Config holds all application configuration
type Config struct {
	ServiceName string
	ServicePort int
	Database    DatabaseConfig
	Auth        AuthConfig
	Redis       RedisConfig
	RabbitMQ    RabbitMQConfig
	HTTP        HTTPConfig
	Validation  ValidationConfig
	AirQuality  AirQualityConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string
}

// AuthConfig holds token signing settings
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// RedisConfig holds the current-readings cache settings.
// An empty URL disables the cache.
type RedisConfig struct {
	URL      string
	CacheTTL time.Duration
}

// RabbitMQConfig holds RabbitMQ connection and exchange settings.
// An empty URL disables both the auth event publisher and the ingest consumer.
type RabbitMQConfig struct {
	URL              string
	AuthExchange     string
	IngestExchange   string
	IngestQueue      string
	IngestRoutingKey string
	DLQQueue         string
	PrefetchCount    int
}

// HTTPConfig holds HTTP server settings
type HTTPConfig struct {
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// ValidationConfig holds validation settings
type ValidationConfig struct {
	TimestampToleranceMinutes int
}

// AirQualityConfig holds the CO2 upper bounds (ppm, exclusive) of each air quality level
type AirQualityConfig struct {
	ExcellentBelowPPM int
	GoodBelowPPM      int
	FairBelowPPM      int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Malformed durations fail Load rather than falling back to defaults
	var durationErrs []error
	duration := func(key string, defaultValue time.Duration) time.Duration {
		value, err := getEnvAsDuration(key, defaultValue)
		if err != nil {
			durationErrs = append(durationErrs, err)
		}
		return value
	}

	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "sensor-api"),
		ServicePort: getEnvAsInt("SERVICE_PORT", 8080),
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			TokenTTL:  duration("JWT_TTL", defaultTokenTTL),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			CacheTTL: duration("CACHE_TTL", 10*time.Second),
		},
		RabbitMQ: RabbitMQConfig{
			URL:              getEnv("RABBITMQ_URL", ""),
			AuthExchange:     getEnv("RABBITMQ_AUTH_EXCHANGE", "sensor-api.auth.events.exchange"),
			IngestExchange:   getEnv("RABBITMQ_INGEST_EXCHANGE", "sensors.ingest.exchange"),
			IngestQueue:      getEnv("RABBITMQ_INGEST_QUEUE", "sensor-api.readings.queue"),
			IngestRoutingKey: getEnv("RABBITMQ_INGEST_ROUTING_KEY", "sensor.reading.stored"),
			DLQQueue:         getEnv("RABBITMQ_DLQ_QUEUE", "sensor-api.readings.dlq"),
			PrefetchCount:    getEnvAsInt("RABBITMQ_PREFETCH", 10),
		},
		HTTP: HTTPConfig{
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			ReadTimeout:     duration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    duration("HTTP_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: duration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Validation: ValidationConfig{
			TimestampToleranceMinutes: getEnvAsInt("VALIDATION_TIMESTAMP_TOLERANCE_MINUTES", 10),
		},
		AirQuality: AirQualityConfig{
			ExcellentBelowPPM: getEnvAsInt("AIR_QUALITY_EXCELLENT_BELOW_PPM", 600),
			GoodBelowPPM:      getEnvAsInt("AIR_QUALITY_GOOD_BELOW_PPM", 800),
			FairBelowPPM:      getEnvAsInt("AIR_QUALITY_FAIR_BELOW_PPM", 1000),
		},
	}

	if err := errors.Join(durationErrs...); err != nil {
		return nil, err
	}

	// Validate required fields
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL is required but not set in environment variables")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required but not set in environment variables")
	}
	if cfg.Auth.TokenTTL <= 0 {
		return nil, fmt.Errorf("JWT_TTL must be positive, got %s", cfg.Auth.TokenTTL)
	}

	aq := cfg.AirQuality
	if aq.ExcellentBelowPPM >= aq.GoodBelowPPM || aq.GoodBelowPPM >= aq.FairBelowPPM {
		return nil, fmt.Errorf("air quality thresholds must be strictly increasing, got %d/%d/%d",
			aq.ExcellentBelowPPM, aq.GoodBelowPPM, aq.FairBelowPPM)
	}

	return cfg, nil
}

// CacheEnabled reports whether a Redis URL was configured
func (c *Config) CacheEnabled() bool {
	return c.Redis.URL != ""
}

// MessagingEnabled reports whether a RabbitMQ URL was configured
func (c *Config) MessagingEnabled() bool {
	return c.RabbitMQ.URL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

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

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue, fmt.Errorf("%s must be a duration such as 30s or 18h, got %q: %w", key, valueStr, err)
	}
	return value, nil
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
