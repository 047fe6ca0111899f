package domain

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
}

// Config defines the interface for configuration management
type Config interface {
	GetServerPort() string
	GetLogLevel() string
	GetLogFormat() string
	GetStoreBackend() string
	GetDataFile() string
	GetBadgerPath() string
	GetSupabaseURL() string
	GetSupabaseKey() string
	GetSupabaseTable() string
	GetMaxBodyBytes() int64
	GetRateLimitRPS() float64
	GetRateLimitBurst() int
	GetAllowedOrigins() []string
}
