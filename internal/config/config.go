package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Database  Database  `mapstructure:"database"`
	Logger    Logger    `mapstructure:"logger"`
	Server    Server    `mapstructure:"server"`
	Analytics Analytics `mapstructure:"analytics"`
	Recompute Recompute `mapstructure:"recompute"`
	Goals     Goals     `mapstructure:"goals"`
	Client    Client    `mapstructure:"client"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Server holds the configuration for the HTTP API.
type Server struct {
	Port int `mapstructure:"port"`
}

// Analytics tunes the ratio suite.
type Analytics struct {
	// CalmarMinDays is the shortest trade-day span for which Calmar is annualized.
	CalmarMinDays int `mapstructure:"calmar_min_days"`
}

// Recompute controls the MLL daily recompute workers.
type Recompute struct {
	Workers        int `mapstructure:"workers"`
	RetryAttempts  int `mapstructure:"retry_attempts"`
	RetryBackoffMs int `mapstructure:"retry_backoff_ms"`
}

// RetryBackoff returns the base delay between persistence retries.
func (r Recompute) RetryBackoff() time.Duration {
	return time.Duration(r.RetryBackoffMs) * time.Millisecond
}

// Goals holds the configuration for the periodic goal sweep.
type Goals struct {
	SweepInterval int `mapstructure:"sweep_interval"` // seconds
}

// Client holds the configuration for the analytics API client.
type Client struct {
	BaseURL        string  `mapstructure:"base_url"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	Timeout        int     `mapstructure:"timeout"` // seconds
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	err = v.ReadInConfig()
	if err != nil {
		return
	}

	err = v.Unmarshal(&config)
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.dsn", "analytics.db")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("server.port", 8080)
	v.SetDefault("analytics.calmar_min_days", 30)
	v.SetDefault("recompute.workers", 4)
	v.SetDefault("recompute.retry_attempts", 3)
	v.SetDefault("recompute.retry_backoff_ms", 200)
	v.SetDefault("goals.sweep_interval", 300)
	v.SetDefault("client.base_url", "http://localhost:8080")
	v.SetDefault("client.rate_limit", 20)      // requests per second
	v.SetDefault("client.rate_limit_burst", 5) // burst size
	v.SetDefault("client.timeout", 10)
}
