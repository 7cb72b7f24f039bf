package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/teemow/zoombulk/internal/bulk"
	"github.com/teemow/zoombulk/internal/cache"
	"github.com/teemow/zoombulk/internal/directory"
	"github.com/teemow/zoombulk/internal/logging"
	"github.com/teemow/zoombulk/internal/oauth"
	"github.com/teemow/zoombulk/internal/zoom"
)

// Cache backends.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds the runtime settings of the CLI.
type Config struct {
	AccountID    string
	ClientID     string
	ClientSecret string

	// CacheBackend is one of BackendFile, BackendRedis or BackendMemory.
	CacheBackend string
	CacheDir     string
	RedisURL     string

	APIBaseURL string
	TokenURL   string

	MaxConcurrency    int
	RequestsPerSecond float64
	UsersCacheTTL     time.Duration
	TokenSafetyMargin time.Duration
	DefaultTimezone   string

	LogLevel  string
	LogFormat string
}

// LoadDotEnv loads variables from the given .env files, or ./.env when none
// are given. A missing default file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); errors.Is(err, os.ErrNotExist) {
			return nil
		}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// FromEnv reads the configuration from environment variables. Malformed
// numbers and durations are reported rather than replaced by defaults.
func FromEnv() (Config, error) {
	var errs []error

	cfg := Config{
		AccountID:       os.Getenv("ZOOM_ACCOUNT_ID"),
		ClientID:        os.Getenv("ZOOM_CLIENT_ID"),
		ClientSecret:    os.Getenv("ZOOM_CLIENT_SECRET"),
		CacheBackend:    getEnvOrDefault("ZOOM_CACHE_BACKEND", BackendFile),
		CacheDir:        getEnvOrDefault("CACHE_DIR", getEnvOrDefault("ZOOM_CACHE_DIR", cache.DefaultDir)),
		RedisURL:        os.Getenv("ZOOM_REDIS_URL"),
		APIBaseURL:      getEnvOrDefault("ZOOM_API_BASE_URL", zoom.DefaultBaseURL),
		TokenURL:        getEnvOrDefault("ZOOM_OAUTH_TOKEN_URL", oauth.DefaultTokenURL),
		DefaultTimezone: getEnvOrDefault("ZOOM_DEFAULT_TIMEZONE", zoom.DefaultTimezone),
		LogLevel:        getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       getEnvOrDefault("LOG_FORMAT", logging.FormatText),
	}

	var err error
	if cfg.MaxConcurrency, err = getEnvInt("ZOOM_MAX_CONCURRENCY", bulk.DefaultMaxConcurrency); err != nil {
		errs = append(errs, err)
	}
	if cfg.RequestsPerSecond, err = getEnvFloat("ZOOM_REQUESTS_PER_SECOND", 0); err != nil {
		errs = append(errs, err)
	}
	if cfg.UsersCacheTTL, err = getEnvDuration("ZOOM_USERS_CACHE_TTL", directory.DefaultTTL); err != nil {
		errs = append(errs, err)
	}
	if cfg.TokenSafetyMargin, err = getEnvDuration("ZOOM_TOKEN_SAFETY_MARGIN", oauth.DefaultSafetyMargin); err != nil {
		errs = append(errs, err)
	}

	return cfg, errors.Join(errs...)
}

// Credentials returns the OAuth credentials.
func (c *Config) Credentials() oauth.Credentials {
	return oauth.Credentials{
		AccountID:    c.AccountID,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
	}
}

// Validate checks the settings and the credentials.
func (c *Config) Validate() error {
	return errors.Join(c.ValidateSettings(), c.Credentials().Validate())
}

// ValidateSettings checks everything except the credentials, for commands
// that never talk to the API.
func (c *Config) ValidateSettings() error {
	var errs []error

	switch c.CacheBackend {
	case BackendFile, BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("ZOOM_REDIS_URL is required for the redis cache backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid cache backend %q, must be one of: file, redis, memory", c.CacheBackend))
	}

	if c.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("max concurrency must be at least 1, got %d", c.MaxConcurrency))
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("requests per second cannot be negative, got %g", c.RequestsPerSecond))
	}
	if c.TokenSafetyMargin < 0 {
		errs = append(errs, fmt.Errorf("token safety margin cannot be negative, got %s", c.TokenSafetyMargin))
	}
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid default timezone %q: %w", c.DefaultTimezone, err))
	}

	return errors.Join(errs...)
}

// getEnvOrDefault returns the value of an environment variable or a default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: invalid integer %q", key, value)
	}
	return parsed, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: invalid number %q", key, value)
	}
	return parsed, nil
}

// getEnvDuration accepts Go durations ("90m") and plain seconds ("3600").
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: invalid duration %q", key, value)
	}
	return parsed, nil
}
