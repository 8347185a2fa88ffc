package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for InvestDash
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Backend   BackendConfig   `yaml:"backend"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Environment    string   `yaml:"environment"`
	JWTSecret      string   `yaml:"jwt_secret"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// BackendConfig describes the investment backend the records are fetched from
type BackendConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
	ServiceToken string        `yaml:"service_token"`
}

// AnalyticsConfig holds aggregation defaults
type AnalyticsConfig struct {
	TrailingMonths  int    `yaml:"trailing_months"`
	WeeklyWindow    int    `yaml:"weekly_window"`
	DefaultTimeline string `yaml:"default_timeline"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load loads configuration from a YAML file. Values missing from the file
// keep the environment defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := LoadFromEnv()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           getEnvInt("PORT", 3010),
			Environment:    getEnv("ENVIRONMENT", "development"),
			JWTSecret:      getEnv("JWT_SECRET", ""),
			AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		},
		Backend: BackendConfig{
			BaseURL:      getEnv("BACKEND_URL", "http://localhost:4000/api"),
			Timeout:      getEnvDuration("BACKEND_TIMEOUT", 15*time.Second),
			ServiceToken: getEnv("BACKEND_SERVICE_TOKEN", ""),
		},
		Analytics: AnalyticsConfig{
			TrailingMonths:  getEnvInt("ANALYTICS_TRAILING_MONTHS", 6),
			WeeklyWindow:    getEnvInt("ANALYTICS_WEEKLY_WINDOW", 10),
			DefaultTimeline: getEnv("ANALYTICS_DEFAULT_TIMELINE", "month"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
	}
}

// Validate checks the configuration for values the engine cannot work with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return ErrInvalidPort
	}
	if c.Backend.BaseURL == "" {
		return ErrMissingBackend
	}
	if c.Analytics.TrailingMonths <= 0 || c.Analytics.WeeklyWindow <= 0 {
		return ErrInvalidWindow
	}
	switch c.Analytics.DefaultTimeline {
	case "week", "month", "year":
	default:
		return ErrInvalidTimeline
	}
	return nil
}

// Errors
var (
	ErrInvalidPort     = &Error{Code: "INVALID_PORT", Message: "server port must be positive"}
	ErrMissingBackend  = &Error{Code: "MISSING_BACKEND", Message: "backend base url is required"}
	ErrInvalidWindow   = &Error{Code: "INVALID_WINDOW", Message: "analytics windows must be positive"}
	ErrInvalidTimeline = &Error{Code: "INVALID_TIMELINE", Message: "default timeline must be week, month or year"}
)

// Error represents a configuration error
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
