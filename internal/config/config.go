// Package config loads service configuration from file and environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all service configuration.
type Config struct {
	Host          string
	Port          int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	EnableMetrics bool

	AllowedOrigins []string

	AlpacaAPIKey    string
	AlpacaAPISecret string
	AlpacaBaseURL   string
	AlpacaFeed      string

	RequestsPerSec int
	CacheTTL       time.Duration

	Benchmarks         []string
	PortfolioBenchmark string
}

// Load reads configuration from an optional YAML file at path plus
// environment variables, with defaults for everything. A missing file is
// not an error; a malformed one is.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.enable_metrics", true)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost:8080",
		"http://127.0.0.1:8080",
	})

	v.SetDefault("alpaca.base_url", "")
	v.SetDefault("alpaca.feed", "iex")
	v.SetDefault("alpaca.requests_per_sec", 5)

	v.SetDefault("cache.ttl", "15m")

	v.SetDefault("backtest.benchmarks", []string{"SPY", "QQQ", "DIA"})
	v.SetDefault("backtest.portfolio_benchmark", "SPY")

	v.BindEnv("alpaca.api_key", "ALPACA_API_KEY")
	v.BindEnv("alpaca.api_secret", "ALPACA_API_SECRET")
	v.BindEnv("alpaca.base_url", "ALPACA_DATA_BASE_URL")
	v.BindEnv("alpaca.feed", "ALPACA_FEED")
	v.BindEnv("server.host", "APP_HOST")
	v.BindEnv("server.port", "APP_PORT")
	v.BindEnv("server.allowed_origins", "ALLOWED_ORIGINS")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file %s: %w", path, err)
			}
		}
	}

	return &Config{
		Host:          v.GetString("server.host"),
		Port:          v.GetInt("server.port"),
		ReadTimeout:   v.GetDuration("server.read_timeout"),
		WriteTimeout:  v.GetDuration("server.write_timeout"),
		EnableMetrics: v.GetBool("server.enable_metrics"),

		AllowedOrigins: v.GetStringSlice("server.allowed_origins"),

		AlpacaAPIKey:    v.GetString("alpaca.api_key"),
		AlpacaAPISecret: v.GetString("alpaca.api_secret"),
		AlpacaBaseURL:   v.GetString("alpaca.base_url"),
		AlpacaFeed:      v.GetString("alpaca.feed"),

		RequestsPerSec: v.GetInt("alpaca.requests_per_sec"),
		CacheTTL:       v.GetDuration("cache.ttl"),

		Benchmarks:         v.GetStringSlice("backtest.benchmarks"),
		PortfolioBenchmark: v.GetString("backtest.portfolio_benchmark"),
	}, nil
}
