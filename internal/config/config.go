// Package config loads service settings from the environment and an optional .env file
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Port       string
	DBPath     string
	DBInMemory bool
	LogLevel   string

	BaseCurrency         string
	RatesURL             string
	RatesTimeout         time.Duration
	RatesMaxRetries      int
	RatesRefreshInterval time.Duration

	ShutdownTimeout time.Duration

	// Warnings collects fallbacks taken while loading, for logging once a logger exists
	Warnings []string
}

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_PATH", "./data")
	v.SetDefault("DB_IN_MEMORY", false)
	v.SetDefault("LOG_LEVEL", "INFO")
	v.SetDefault("BASE_CURRENCY", "EUR")
	v.SetDefault("RATES_URL", "https://api.frankfurter.app/latest")
	v.SetDefault("RATES_TIMEOUT", "5s")
	v.SetDefault("RATES_MAX_RETRIES", 2)
	v.SetDefault("RATES_REFRESH_INTERVAL", "0s")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.AutomaticEnv()

	cfg := &Config{
		Port:            v.GetString("PORT"),
		DBPath:          v.GetString("DB_PATH"),
		DBInMemory:      v.GetBool("DB_IN_MEMORY"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		BaseCurrency:    strings.ToUpper(strings.TrimSpace(v.GetString("BASE_CURRENCY"))),
		RatesURL:        v.GetString("RATES_URL"),
		RatesMaxRetries: v.GetInt("RATES_MAX_RETRIES"),
	}

	cfg.RatesTimeout = cfg.duration(v, "RATES_TIMEOUT", 5*time.Second)
	cfg.RatesRefreshInterval = cfg.duration(v, "RATES_REFRESH_INTERVAL", 0)
	cfg.ShutdownTimeout = cfg.duration(v, "SHUTDOWN_TIMEOUT", 10*time.Second)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// duration parses key, falling back to def on a malformed or negative value
func (c *Config) duration(v *viper.Viper, key string, def time.Duration) time.Duration {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		c.Warnings = append(c.Warnings,
			fmt.Sprintf("Invalid value for %s ('%s'). Defaulting to %s.", key, raw, def))
		return def
	}
	return d
}

// Validate rejects settings the service cannot start with
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if !currencyCode.MatchString(c.BaseCurrency) {
		return fmt.Errorf("BASE_CURRENCY must be a three letter code, got %q", c.BaseCurrency)
	}
	if c.RatesMaxRetries < 0 {
		return fmt.Errorf("RATES_MAX_RETRIES must not be negative, got %d", c.RatesMaxRetries)
	}
	if !c.DBInMemory && strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("DB_PATH must not be empty unless DB_IN_MEMORY is set")
	}
	return nil
}

// Addr is the listen address for the HTTP server
func (c *Config) Addr() string {
	return ":" + c.Port
}
