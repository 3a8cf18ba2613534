package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shupiange/mephisto-quant/observability"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// HTTP configuration
	HTTP HTTPConfig

	// Query limits and breaker configuration
	Query QueryConfig

	// Logging configuration
	Log LogConfig

	// External update process configuration
	Update UpdateConfig

	// Dataset import configuration
	Import ImportConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL                string
	StatementTimeoutMS int
	MaxConns           int
	ConnectRetries     int
}

// StatementTimeout returns the per-statement timeout as a duration
func (d DatabaseConfig) StatementTimeout() time.Duration {
	return time.Duration(d.StatementTimeoutMS) * time.Millisecond
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Addr                  string
	RequestTimeoutSeconds int
	CORSAllowedOrigins    string
}

// QueryConfig holds read-side limits
type QueryConfig struct {
	MaxRows               int
	BreakerTimeoutSeconds int
}

// LogConfig holds logger configuration
type LogConfig struct {
	Format     string // text or json
	Level      string
	File       string
	MaxSizeMB  int
	MaxAgeDays int
}

// LogOptions converts the logging settings for observability.InitLoggerWithOptions
func (l LogConfig) LogOptions() observability.LogOptions {
	return observability.LogOptions{
		JSON:       l.Format == "json",
		Level:      observability.ParseLevel(l.Level),
		File:       l.File,
		MaxSizeMB:  l.MaxSizeMB,
		MaxAgeDays: l.MaxAgeDays,
	}
}

// UpdateConfig holds the external update process invocation settings
type UpdateConfig struct {
	Python      string
	Script      string
	WorkDir     string
	StagingPath string
}

// ImportConfig holds dataset importer defaults
type ImportConfig struct {
	Encoding   string
	ArchiveDir string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			URL:                os.Getenv("DATABASE_URL"),
			StatementTimeoutMS: getEnvInt("DB_STATEMENT_TIMEOUT_MS", 30_000),
			MaxConns:           getEnvInt("DB_MAX_CONNS", 10),
			ConnectRetries:     getEnvInt("DB_CONNECT_RETRIES", 3),
		},
		HTTP: HTTPConfig{
			Addr:                  getEnvString("HTTP_ADDR", ":8080"),
			RequestTimeoutSeconds: getEnvInt("HTTP_REQUEST_TIMEOUT_SECONDS", 60),
			CORSAllowedOrigins:    getEnvString("CORS_ALLOWED_ORIGINS", "*"),
		},
		Query: QueryConfig{
			MaxRows:               getEnvInt("QUERY_MAX_ROWS", 10_000),
			BreakerTimeoutSeconds: getEnvInt("BREAKER_TIMEOUT_SECONDS", 30),
		},
		Log: LogConfig{
			Format:     getEnvString("LOG_FORMAT", "text"),
			Level:      getEnvString("LOG_LEVEL", "info"),
			File:       os.Getenv("LOG_FILE"),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 14),
		},
		Update: UpdateConfig{
			Python:      getEnvString("UPDATE_PYTHON", "python3"),
			Script:      getEnvString("UPDATE_SCRIPT", "main.py"),
			WorkDir:     os.Getenv("UPDATE_WORKDIR"),
			StagingPath: getEnvString("UPDATE_STAGING_PATH", "./dataset"),
		},
		Import: ImportConfig{
			Encoding:   strings.ToLower(getEnvString("IMPORT_ENCODING", "utf-8")),
			ArchiveDir: getEnvString("IMPORT_ARCHIVE_DIR", "archived"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.StatementTimeoutMS <= 0 {
		return fmt.Errorf("DB_STATEMENT_TIMEOUT_MS must be positive, got %d", c.Database.StatementTimeoutMS)
	}
	if c.Database.MaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive, got %d", c.Database.MaxConns)
	}
	if c.Database.ConnectRetries <= 0 {
		return fmt.Errorf("DB_CONNECT_RETRIES must be positive, got %d", c.Database.ConnectRetries)
	}
	if c.HTTP.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("HTTP_REQUEST_TIMEOUT_SECONDS must be positive, got %d", c.HTTP.RequestTimeoutSeconds)
	}
	if c.Query.MaxRows <= 0 {
		return fmt.Errorf("QUERY_MAX_ROWS must be positive, got %d", c.Query.MaxRows)
	}
	if c.Query.BreakerTimeoutSeconds <= 0 {
		return fmt.Errorf("BREAKER_TIMEOUT_SECONDS must be positive, got %d", c.Query.BreakerTimeoutSeconds)
	}

	if c.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("LOG_MAX_SIZE_MB must be positive, got %d", c.Log.MaxSizeMB)
	}
	if c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("LOG_MAX_AGE_DAYS must not be negative, got %d", c.Log.MaxAgeDays)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.Log.Format)
	}

	switch c.Import.Encoding {
	case "utf-8", "utf8", "gbk", "gb18030":
	default:
		return fmt.Errorf("IMPORT_ENCODING must be utf-8, gbk or gb18030, got %q", c.Import.Encoding)
	}
	if c.Import.ArchiveDir == "" {
		return fmt.Errorf("IMPORT_ARCHIVE_DIR must not be empty")
	}

	return nil
}

// HasDatabase returns true if database configuration is available
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// HasUpdateScript returns true if an update script is configured
func (c *Config) HasUpdateScript() bool {
	return c.Update.Python != "" && c.Update.Script != ""
}

func getEnvString(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

// getEnvInt returns the parsed value, falling back to the default only when the
// variable is unset or not a number. Range checks belong to Validate.
func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// NewTestConfig creates a Config with default values for testing
func NewTestConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			URL:                "",
			StatementTimeoutMS: 30_000,
			MaxConns:           10,
			ConnectRetries:     3,
		},
		HTTP: HTTPConfig{
			Addr:                  ":8080",
			RequestTimeoutSeconds: 60,
			CORSAllowedOrigins:    "*",
		},
		Query: QueryConfig{
			MaxRows:               10_000,
			BreakerTimeoutSeconds: 30,
		},
		Log: LogConfig{
			Format:     "text",
			Level:      "info",
			MaxSizeMB:  100,
			MaxAgeDays: 14,
		},
		Update: UpdateConfig{
			Python:      "python3",
			Script:      "main.py",
			StagingPath: "./dataset",
		},
		Import: ImportConfig{
			Encoding:   "utf-8",
			ArchiveDir: "archived",
		},
	}
}
