package config

import (
	"os"
	"strconv"
	"strings"

	"pdf-annotation-sync/internal/domain"
)

// Store backends selectable through STORE_BACKEND.
const (
	BackendFile     = "file"
	BackendBadger   = "badger"
	BackendSupabase = "supabase"
)

// AppConfig implements the domain.Config interface
type AppConfig struct {
	ServerPort     string
	LogLevel       string
	LogFormat      string
	StoreBackend   string
	DataFile       string
	BadgerPath     string
	SupabaseURL    string
	SupabaseKey    string
	SupabaseTable  string
	MaxBodyBytes   int64
	RateLimitRPS   float64
	RateLimitBurst int
	AllowedOrigins []string
}

// NewConfig creates a new configuration instance with default values
func NewConfig() domain.Config {
	return &AppConfig{
		// PaaS platforms provide the listening port via PORT.
		// Keep SERVER_PORT for local/dev compatibility.
		ServerPort:     getEnvOrDefault("PORT", getEnvOrDefault("SERVER_PORT", "5000")),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:      getEnvOrDefault("LOG_FORMAT", "json"),
		StoreBackend:   strings.ToLower(getEnvOrDefault("STORE_BACKEND", BackendFile)),
		DataFile:       getEnvOrDefault("DATA_FILE", "./data/highlights.json"),
		BadgerPath:     getEnvOrDefault("BADGER_PATH", "./data/badger"),
		SupabaseURL:    getEnvOrDefault("SUPABASE_URL", ""),
		SupabaseKey:    getEnvOrDefault("SUPABASE_ANON_KEY", ""),
		SupabaseTable:  getEnvOrDefault("SUPABASE_TABLE", "annotations"),
		MaxBodyBytes:   getEnvInt64OrDefault("MAX_BODY_BYTES", 10*1024*1024), // 10MB default
		RateLimitRPS:   getEnvFloatOrDefault("RATE_LIMIT_RPS", 0),
		RateLimitBurst: int(getEnvInt64OrDefault("RATE_LIMIT_BURST", 20)),
		AllowedOrigins: getEnvListOrDefault("CORS_ALLOWED_ORIGINS", nil),
	}
}

// GetServerPort returns the server port
func (c *AppConfig) GetServerPort() string {
	return c.ServerPort
}

// GetLogLevel returns the logging level
func (c *AppConfig) GetLogLevel() string {
	return c.LogLevel
}

// GetLogFormat returns json or console
func (c *AppConfig) GetLogFormat() string {
	return c.LogFormat
}

// GetStoreBackend returns which annotation store to open
func (c *AppConfig) GetStoreBackend() string {
	return c.StoreBackend
}

// GetDataFile returns the path of the JSON document used by the file backend
func (c *AppConfig) GetDataFile() string {
	return c.DataFile
}

// GetBadgerPath returns the Badger directory; empty means in-memory
func (c *AppConfig) GetBadgerPath() string {
	return c.BadgerPath
}

// GetSupabaseURL returns the Supabase URL
func (c *AppConfig) GetSupabaseURL() string {
	return c.SupabaseURL
}

// GetSupabaseKey returns the Supabase anon key
func (c *AppConfig) GetSupabaseKey() string {
	return c.SupabaseKey
}

// GetSupabaseTable returns the table holding annotation collections
func (c *AppConfig) GetSupabaseTable() string {
	return c.SupabaseTable
}

// GetMaxBodyBytes returns the request body limit
func (c *AppConfig) GetMaxBodyBytes() int64 {
	return c.MaxBodyBytes
}

// GetRateLimitRPS returns requests per second per client; 0 disables limiting
func (c *AppConfig) GetRateLimitRPS() float64 {
	return c.RateLimitRPS
}

func (c *AppConfig) GetRateLimitBurst() int {
	return c.RateLimitBurst
}

func (c *AppConfig) GetAllowedOrigins() []string {
	return c.AllowedOrigins
}

// Helper functions for environment variable handling
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvListOrDefault splits a comma separated value, dropping empty items.
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
