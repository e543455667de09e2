package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Flight search service.
	SearchAPIURL  string        `mapstructure:"SEARCH_API_URL"`
	SearchAPIPath string        `mapstructure:"SEARCH_API_PATH"`
	SearchTimeout time.Duration `mapstructure:"SEARCH_TIMEOUT"`

	DisplayCurrency string `mapstructure:"DISPLAY_CURRENCY"`

	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	SessionMaxIdle time.Duration `mapstructure:"SESSION_MAX_IDLE"`
}

var keys = map[string]any{
	"PORT":             "8080",
	"ENV":              "development",
	"LOG_LEVEL":        "info",
	"SEARCH_API_URL":   "http://localhost:5000",
	"SEARCH_API_PATH":  "/api/flights/search",
	"SEARCH_TIMEOUT":   "10s",
	"DISPLAY_CURRENCY": "",
	"RATE_LIMIT_RPS":   1.0,
	"RATE_LIMIT_BURST": 3,
	"SESSION_MAX_IDLE": "30m",
}

// Load reads config.yaml from the working directory or ./config when present
// and lets environment variables override every key.
func Load() (*Config, error) {
	return load(viper.New(), ".", "./config")
}

func load(v *viper.Viper, paths ...string) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	for key, def := range keys {
		v.SetDefault(key, def)
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.SearchAPIURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("config: SEARCH_API_URL must be an absolute http(s) URL, got %q", c.SearchAPIURL)
	}
	if c.SearchTimeout <= 0 {
		return fmt.Errorf("config: SEARCH_TIMEOUT must be positive")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("config: RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}
