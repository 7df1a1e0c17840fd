package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment override, e.g. HARVESTER_HTTP_ADDR
const EnvPrefix = "HARVESTER"

// Store drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all runtime configuration parameters
type Config struct {
	ConcurrentWorkers int          `mapstructure:"concurrent_workers"`
	RequestTimeoutMs  int          `mapstructure:"request_timeout_ms"`
	Scrape            ScrapeConfig `mapstructure:"scrape"`
	Store             StoreConfig  `mapstructure:"store"`
	RedisURL          string       `mapstructure:"redis_url"`
	HTTPAddr          string       `mapstructure:"http_addr"`
	MetricsPath       string       `mapstructure:"metrics_path"`
	LogLevel          string       `mapstructure:"log_level"`
	LogFormat         string       `mapstructure:"log_format"`
	Schedules         []Schedule   `mapstructure:"schedules"`
}

// ScrapeConfig points at the scraping provider
type ScrapeConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	APIKey    string `mapstructure:"api_key"`
	WaitForMs int    `mapstructure:"wait_for_ms"`
}

// StoreConfig selects the result store backend
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

// Schedule is a recurring harvest of fixed job titles
type Schedule struct {
	Name      string   `mapstructure:"name"`
	Spec      string   `mapstructure:"spec"`
	JobTitles []string `mapstructure:"job_titles"`
}

// RequestTimeout returns the per-fetch timeout
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// WaitFor returns the provider render delay
func (c *Config) WaitFor() time.Duration {
	return time.Duration(c.Scrape.WaitForMs) * time.Millisecond
}

// LoadConfig reads configuration from path (optional; ./config.yaml is tried
// when empty), then environment variables, and validates the result
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setupViper(v)
	setDefaults(v)

	if err := bindEnvAliases(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setupViper(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
}

// setDefaults registers every key so AutomaticEnv can reach nested ones
func setDefaults(v *viper.Viper) {
	v.SetDefault("concurrent_workers", 3)
	v.SetDefault("request_timeout_ms", 60000)
	v.SetDefault("scrape.endpoint", "https://api.firecrawl.dev/v0/scrape")
	v.SetDefault("scrape.api_key", "")
	v.SetDefault("scrape.wait_for_ms", 2000)
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.path", "harvester.db")
	v.SetDefault("store.dsn", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("metrics_path", "metrics.json")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// bindEnvAliases accepts the conventional unprefixed names too
func bindEnvAliases(v *viper.Viper) error {
	aliases := map[string][]string{
		"scrape.api_key": {"HARVESTER_SCRAPE_API_KEY", "FIRECRAWL_API_KEY"},
		"store.dsn":      {"HARVESTER_STORE_DSN", "DATABASE_URL"},
		"redis_url":      {"HARVESTER_REDIS_URL", "REDIS_URL"},
	}
	for key, envs := range aliases {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

// applyDefaults covers zero values an explicit config file may have set
func applyDefaults(cfg *Config) {
	if cfg.ConcurrentWorkers == 0 {
		cfg.ConcurrentWorkers = 3
	}
	if cfg.RequestTimeoutMs == 0 {
		cfg.RequestTimeoutMs = 60000
	}
	if cfg.Scrape.WaitForMs == 0 {
		cfg.Scrape.WaitForMs = 2000
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DriverSQLite
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "harvester.db"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "metrics.json"
	}
	cfg.Store.Driver = strings.ToLower(cfg.Store.Driver)
}

// validate checks that values are sensible
func validate(cfg *Config) error {
	if cfg.ConcurrentWorkers < 1 {
		return fmt.Errorf("concurrent_workers must be >= 1")
	}
	if cfg.RequestTimeoutMs < 1000 {
		return fmt.Errorf("request_timeout_ms must be >= 1000")
	}
	if cfg.Scrape.Endpoint == "" {
		return fmt.Errorf("scrape.endpoint is required")
	}

	switch cfg.Store.Driver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if cfg.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", cfg.Store.Driver)
	}

	for i, s := range cfg.Schedules {
		if strings.TrimSpace(s.Spec) == "" {
			return fmt.Errorf("schedules[%d]: spec is required", i)
		}
		if len(s.JobTitles) == 0 {
			return fmt.Errorf("schedules[%d]: job_titles is required", i)
		}
	}
	return nil
}
