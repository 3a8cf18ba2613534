package config

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

// saveEnv saves current environment variables for restoration
func saveEnv(t *testing.T, keys []string) map[string]string {
	t.Helper()
	saved := make(map[string]string)
	for _, key := range keys {
		saved[key] = os.Getenv(key)
	}
	return saved
}

// restoreEnv restores previously saved environment variables
func restoreEnv(t *testing.T, saved map[string]string) {
	t.Helper()
	for key, val := range saved {
		if val == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, val)
		}
	}
}

// clearEnv clears environment variables
func clearEnv(t *testing.T, keys []string) {
	t.Helper()
	for _, key := range keys {
		os.Unsetenv(key)
	}
}

var allEnvKeys = []string{
	"DATABASE_URL",
	"DB_STATEMENT_TIMEOUT_MS",
	"DB_MAX_CONNS",
	"DB_CONNECT_RETRIES",
	"HTTP_ADDR",
	"HTTP_REQUEST_TIMEOUT_SECONDS",
	"CORS_ALLOWED_ORIGINS",
	"QUERY_MAX_ROWS",
	"BREAKER_TIMEOUT_SECONDS",
	"LOG_FORMAT",
	"LOG_LEVEL",
	"LOG_FILE",
	"LOG_MAX_SIZE_MB",
	"LOG_MAX_AGE_DAYS",
	"UPDATE_PYTHON",
	"UPDATE_SCRIPT",
	"UPDATE_WORKDIR",
	"UPDATE_STAGING_PATH",
	"IMPORT_ENCODING",
	"IMPORT_ARCHIVE_DIR",
}

func TestLoad_Defaults(t *testing.T) {
	saved := saveEnv(t, allEnvKeys)
	defer restoreEnv(t, saved)
	clearEnv(t, allEnvKeys)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with defaults failed: %v", err)
	}

	if cfg.Database.StatementTimeoutMS != 30_000 {
		t.Errorf("expected StatementTimeoutMS=30000, got %d", cfg.Database.StatementTimeoutMS)
	}
	if cfg.Database.StatementTimeout() != 30*time.Second {
		t.Errorf("expected StatementTimeout()=30s, got %v", cfg.Database.StatementTimeout())
	}
	if cfg.Database.MaxConns != 10 {
		t.Errorf("expected MaxConns=10, got %d", cfg.Database.MaxConns)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("expected HTTP.Addr=':8080', got %s", cfg.HTTP.Addr)
	}
	if cfg.HTTP.CORSAllowedOrigins != "*" {
		t.Errorf("expected CORSAllowedOrigins='*', got %s", cfg.HTTP.CORSAllowedOrigins)
	}
	if cfg.Query.MaxRows != 10_000 {
		t.Errorf("expected MaxRows=10000, got %d", cfg.Query.MaxRows)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("expected Log.Format='text', got %s", cfg.Log.Format)
	}
	if cfg.Update.Python != "python3" {
		t.Errorf("expected Update.Python='python3', got %s", cfg.Update.Python)
	}
	if cfg.Update.Script != "main.py" {
		t.Errorf("expected Update.Script='main.py', got %s", cfg.Update.Script)
	}
	if cfg.Import.Encoding != "utf-8" {
		t.Errorf("expected Import.Encoding='utf-8', got %s", cfg.Import.Encoding)
	}
	if cfg.Import.ArchiveDir != "archived" {
		t.Errorf("expected Import.ArchiveDir='archived', got %s", cfg.Import.ArchiveDir)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	saved := saveEnv(t, allEnvKeys)
	defer restoreEnv(t, saved)
	clearEnv(t, allEnvKeys)

	os.Setenv("DATABASE_URL", "postgres://localhost/quotes")
	os.Setenv("DB_STATEMENT_TIMEOUT_MS", "1500")
	os.Setenv("DB_MAX_CONNS", "4")
	os.Setenv("HTTP_ADDR", "127.0.0.1:9000")
	os.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	os.Setenv("QUERY_MAX_ROWS", "500")
	os.Setenv("LOG_FORMAT", "json")
	os.Setenv("LOG_FILE", "/var/log/quotestore.log")
	os.Setenv("UPDATE_PYTHON", "/opt/venv/bin/python")
	os.Setenv("UPDATE_SCRIPT", "daily_update.py")
	os.Setenv("IMPORT_ENCODING", "GBK")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with custom values failed: %v", err)
	}

	if cfg.Database.URL != "postgres://localhost/quotes" {
		t.Errorf("expected Database.URL='postgres://localhost/quotes', got %s", cfg.Database.URL)
	}
	if cfg.Database.StatementTimeout() != 1500*time.Millisecond {
		t.Errorf("expected StatementTimeout()=1.5s, got %v", cfg.Database.StatementTimeout())
	}
	if cfg.Database.MaxConns != 4 {
		t.Errorf("expected MaxConns=4, got %d", cfg.Database.MaxConns)
	}
	if cfg.HTTP.Addr != "127.0.0.1:9000" {
		t.Errorf("expected HTTP.Addr='127.0.0.1:9000', got %s", cfg.HTTP.Addr)
	}
	if cfg.HTTP.CORSAllowedOrigins != "http://localhost:3000" {
		t.Errorf("expected CORSAllowedOrigins='http://localhost:3000', got %s", cfg.HTTP.CORSAllowedOrigins)
	}
	if cfg.Query.MaxRows != 500 {
		t.Errorf("expected MaxRows=500, got %d", cfg.Query.MaxRows)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("expected Log.Format='json', got %s", cfg.Log.Format)
	}
	if cfg.Log.File != "/var/log/quotestore.log" {
		t.Errorf("expected Log.File='/var/log/quotestore.log', got %s", cfg.Log.File)
	}
	if cfg.Update.Python != "/opt/venv/bin/python" {
		t.Errorf("expected Update.Python='/opt/venv/bin/python', got %s", cfg.Update.Python)
	}
	if cfg.Update.Script != "daily_update.py" {
		t.Errorf("expected Update.Script='daily_update.py', got %s", cfg.Update.Script)
	}
	if cfg.Import.Encoding != "gbk" {
		t.Errorf("expected Import.Encoding='gbk', got %s", cfg.Import.Encoding)
	}
}

func TestValidate_LogFormat(t *testing.T) {
	saved := saveEnv(t, allEnvKeys)
	defer restoreEnv(t, saved)
	clearEnv(t, allEnvKeys)

	os.Setenv("LOG_FORMAT", "xml")

	if _, err := Load(); err == nil {
		t.Error("expected error for unsupported LOG_FORMAT")
	}
}

func TestValidate_ImportEncoding(t *testing.T) {
	saved := saveEnv(t, allEnvKeys)
	defer restoreEnv(t, saved)
	clearEnv(t, allEnvKeys)

	os.Setenv("IMPORT_ENCODING", "latin1")

	if _, err := Load(); err == nil {
		t.Error("expected error for unsupported IMPORT_ENCODING")
	}
}

func TestValidate_PositiveIntegers(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"statement timeout", func(c *Config) { c.Database.StatementTimeoutMS = 0 }},
		{"max conns", func(c *Config) { c.Database.MaxConns = -1 }},
		{"connect retries", func(c *Config) { c.Database.ConnectRetries = 0 }},
		{"request timeout", func(c *Config) { c.HTTP.RequestTimeoutSeconds = 0 }},
		{"max rows", func(c *Config) { c.Query.MaxRows = 0 }},
		{"breaker timeout", func(c *Config) { c.Query.BreakerTimeoutSeconds = 0 }},
		{"log max size", func(c *Config) { c.Log.MaxSizeMB = 0 }},
		{"log max age", func(c *Config) { c.Log.MaxAgeDays = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewTestConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoad_NonNumericUsesDefault(t *testing.T) {
	saved := saveEnv(t, allEnvKeys)
	defer restoreEnv(t, saved)
	clearEnv(t, allEnvKeys)

	os.Setenv("QUERY_MAX_ROWS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Query.MaxRows != 10_000 {
		t.Errorf("expected default MaxRows=10000, got %d", cfg.Query.MaxRows)
	}
}

func TestLoad_NonPositiveNumbersRejected(t *testing.T) {
	tests := []struct {
		name   string
		envKey string
		envVal string
	}{
		{"negative timeout", "DB_STATEMENT_TIMEOUT_MS", "-5"},
		{"zero max conns", "DB_MAX_CONNS", "0"},
		{"zero connect retries", "DB_CONNECT_RETRIES", "0"},
		{"zero request timeout", "HTTP_REQUEST_TIMEOUT_SECONDS", "0"},
		{"negative max rows", "QUERY_MAX_ROWS", "-1"},
		{"zero breaker timeout", "BREAKER_TIMEOUT_SECONDS", "0"},
		{"zero log size", "LOG_MAX_SIZE_MB", "0"},
		{"negative log age", "LOG_MAX_AGE_DAYS", "-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saved := saveEnv(t, allEnvKeys)
			defer restoreEnv(t, saved)
			clearEnv(t, allEnvKeys)

			os.Setenv(tt.envKey, tt.envVal)

			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%s", tt.envKey, tt.envVal)
			}
		})
	}
}

func TestNewTestConfig_Valid(t *testing.T) {
	if err := NewTestConfig().Validate(); err != nil {
		t.Errorf("NewTestConfig() should validate, got %v", err)
	}
}

func TestHasDatabase(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{URL: ""},
	}
	if cfg.HasDatabase() {
		t.Error("expected HasDatabase() to return false for empty URL")
	}

	cfg.Database.URL = "postgres://localhost/test"
	if !cfg.HasDatabase() {
		t.Error("expected HasDatabase() to return true for non-empty URL")
	}
}

func TestHasUpdateScript(t *testing.T) {
	cfg := NewTestConfig()
	if !cfg.HasUpdateScript() {
		t.Error("expected HasUpdateScript() to return true for defaults")
	}

	cfg.Update.Script = ""
	if cfg.HasUpdateScript() {
		t.Error("expected HasUpdateScript() to return false without script")
	}
}

func TestGetEnvString(t *testing.T) {
	key := "TEST_GET_ENV_STRING"
	defer os.Unsetenv(key)

	// Empty returns default
	os.Unsetenv(key)
	if got := getEnvString(key, "default"); got != "default" {
		t.Errorf("expected 'default', got %s", got)
	}

	// Set value returns value
	os.Setenv(key, "custom")
	if got := getEnvString(key, "default"); got != "custom" {
		t.Errorf("expected 'custom', got %s", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	key := "TEST_GET_ENV_INT"
	defer os.Unsetenv(key)

	// Empty returns default
	os.Unsetenv(key)
	if got := getEnvInt(key, 42); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}

	// Valid integer
	os.Setenv(key, "100")
	if got := getEnvInt(key, 42); got != 100 {
		t.Errorf("expected 100, got %d", got)
	}

	// Invalid integer returns default
	os.Setenv(key, "invalid")
	if got := getEnvInt(key, 42); got != 42 {
		t.Errorf("expected 42 for invalid value, got %d", got)
	}

	// Negative is returned as is for Validate to reject
	os.Setenv(key, "-5")
	if got := getEnvInt(key, 42); got != -5 {
		t.Errorf("expected -5, got %d", got)
	}
}

func TestLogConfig_LogOptions(t *testing.T) {
	opts := LogConfig{Format: "json", Level: "debug", File: "/tmp/q.log", MaxSizeMB: 5, MaxAgeDays: 2}.LogOptions()

	if !opts.JSON {
		t.Error("expected JSON handler for json format")
	}
	if opts.Level != slog.LevelDebug {
		t.Errorf("expected debug level, got %v", opts.Level)
	}
	if opts.File != "/tmp/q.log" || opts.MaxSizeMB != 5 || opts.MaxAgeDays != 2 {
		t.Errorf("unexpected file sink options: %+v", opts)
	}

	if (LogConfig{Format: "text"}).LogOptions().JSON {
		t.Error("expected text handler for text format")
	}
}
