package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// All environment variables are read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Provider adapters, one per data class
	Quotes       ProviderConfig
	Fundamentals ProviderConfig
	News         ProviderConfig
	Sentiment    ProviderConfig
	Macro        ProviderConfig

	// Cache policy
	Cache CacheConfig

	// Scoring weights policy file (YAML); empty means built-in defaults
	WeightsPath string

	// Instrument universe seed file (YAML)
	UniversePath string

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL     string
	Enabled bool

	// Connection pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// ProviderConfig holds the connection and budget settings for one
// external data provider.
type ProviderConfig struct {
	BaseURL   string
	APIKey    string
	RateLimit int           // calls allowed per window
	Window    time.Duration // rate limit window
	TTL       time.Duration // freshness class of this provider's data
}

// CacheConfig holds the cache and refresh scheduler policy knobs.
type CacheConfig struct {
	// ResultTTL is the TTL class for ranked results and score lookups.
	ResultTTL time.Duration

	// RefreshAhead is the fraction of TTL after which the background
	// refresher recomputes a hot key (0.8 = at 80% of TTL).
	RefreshAhead float64

	// MaxStaleFactor times TTL is the hard staleness floor; entries
	// older than that are never served, even on provider failure.
	MaxStaleFactor float64

	// ForegroundWait is how long an on-demand computation may wait on
	// a provider rate budget before failing with RateLimited.
	ForegroundWait time.Duration

	// BackgroundWait is the (shorter) budget wait for refresh jobs, so
	// background work yields to foreground requests.
	BackgroundWait time.Duration

	// RefreshInterval is how often the background sweep runs.
	RefreshInterval time.Duration
}

// Load reads configuration from environment variables.
// Only this function calls os.Getenv.
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			Enabled:         getEnvAsBool("DB_ENABLED", false),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Quotes: ProviderConfig{
			BaseURL:   getEnv("QUOTES_BASE_URL", "https://api.marketfeed.example.com"),
			APIKey:    getEnv("QUOTES_API_KEY", ""),
			RateLimit: getEnvAsInt("QUOTES_RATE_LIMIT", 10),
			Window:    getEnvAsDuration("QUOTES_RATE_WINDOW", "1s"),
			TTL:       getEnvAsDuration("QUOTES_TTL", "30s"),
		},

		Fundamentals: ProviderConfig{
			BaseURL:   getEnv("FUNDAMENTALS_BASE_URL", "https://api.fundata.example.com"),
			APIKey:    getEnv("FUNDAMENTALS_API_KEY", ""),
			RateLimit: getEnvAsInt("FUNDAMENTALS_RATE_LIMIT", 60),
			Window:    getEnvAsDuration("FUNDAMENTALS_RATE_WINDOW", "1m"),
			TTL:       getEnvAsDuration("FUNDAMENTALS_TTL", "24h"),
		},

		News: ProviderConfig{
			BaseURL:   getEnv("NEWS_BASE_URL", "https://newswire.example.com"),
			APIKey:    getEnv("NEWS_API_KEY", ""),
			RateLimit: getEnvAsInt("NEWS_RATE_LIMIT", 30),
			Window:    getEnvAsDuration("NEWS_RATE_WINDOW", "1m"),
			TTL:       getEnvAsDuration("NEWS_TTL", "5m"),
		},

		Sentiment: ProviderConfig{
			BaseURL:   getEnv("SENTIMENT_BASE_URL", "https://api.socialpulse.example.com"),
			APIKey:    getEnv("SENTIMENT_API_KEY", ""),
			RateLimit: getEnvAsInt("SENTIMENT_RATE_LIMIT", 30),
			Window:    getEnvAsDuration("SENTIMENT_RATE_WINDOW", "1m"),
			TTL:       getEnvAsDuration("SENTIMENT_TTL", "10m"),
		},

		Macro: ProviderConfig{
			BaseURL:   getEnv("MACRO_BASE_URL", "https://api.macrowatch.example.com"),
			APIKey:    getEnv("MACRO_API_KEY", ""),
			RateLimit: getEnvAsInt("MACRO_RATE_LIMIT", 10),
			Window:    getEnvAsDuration("MACRO_RATE_WINDOW", "1m"),
			TTL:       getEnvAsDuration("MACRO_TTL", "1h"),
		},

		Cache: CacheConfig{
			ResultTTL:       getEnvAsDuration("CACHE_RESULT_TTL", "60s"),
			RefreshAhead:    getEnvAsFloat("CACHE_REFRESH_AHEAD", 0.8),
			MaxStaleFactor:  getEnvAsFloat("CACHE_MAX_STALE_FACTOR", 5.0),
			ForegroundWait:  getEnvAsDuration("CACHE_FOREGROUND_WAIT", "5s"),
			BackgroundWait:  getEnvAsDuration("CACHE_BACKGROUND_WAIT", "500ms"),
			RefreshInterval: getEnvAsDuration("CACHE_REFRESH_INTERVAL", "15s"),
		},

		WeightsPath:  getEnv("WEIGHTS_PATH", ""),
		UniversePath: getEnv("UNIVERSE_PATH", "universe.yaml"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set.
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Database.Enabled && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required when DB_ENABLED=true")
	}

	if c.Cache.RefreshAhead <= 0 || c.Cache.RefreshAhead >= 1 {
		return fmt.Errorf("CACHE_REFRESH_AHEAD must be in (0, 1)")
	}

	if c.Cache.MaxStaleFactor <= 1 {
		return fmt.Errorf("CACHE_MAX_STALE_FACTOR must be greater than 1")
	}

	return nil
}

// Providers returns the per-class provider configs keyed by data class name.
func (c *Config) Providers() map[string]ProviderConfig {
	return map[string]ProviderConfig{
		"quotes":       c.Quotes,
		"fundamentals": c.Fundamentals,
		"news":         c.News,
		"sentiment":    c.Sentiment,
		"macro":        c.Macro,
	}
}

// loadEnvFile tries to load .env from multiple locations.
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
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

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
