package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Catalog struct {
		CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
	} `yaml:"catalog"`

	Oracle struct {
		Provider       string  `yaml:"provider"` // "openai" or "gemini"
		BaseURL        string  `yaml:"base_url"`
		APIKey         string  `yaml:"api_key"`
		Model          string  `yaml:"model"`
		TimeoutSeconds int     `yaml:"timeout_seconds"`
		RequestsPerSec float64 `yaml:"requests_per_sec"`
	} `yaml:"oracle"`

	Booking struct {
		CommitTimeoutSeconds int `yaml:"commit_timeout_seconds"`
	} `yaml:"booking"`

	Reminders struct {
		Enabled              bool    `yaml:"enabled"`
		CheckIntervalSeconds int     `yaml:"check_interval_seconds"`
		LeadTimeMinutes      int     `yaml:"lead_time_minutes"`
		MaxConcurrent        int     `yaml:"max_concurrent"`
		SendsPerSec          float64 `yaml:"sends_per_sec"`
	} `yaml:"reminders"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/innoviahub.db"
	}
	if cfg.Oracle.Provider == "" {
		cfg.Oracle.Provider = "openai"
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) CommitTimeout() time.Duration {
	if c.Booking.CommitTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Booking.CommitTimeoutSeconds) * time.Second
}

func (c *Config) OracleTimeout() time.Duration {
	if c.Oracle.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Oracle.TimeoutSeconds) * time.Second
}

func (c *Config) CatalogCacheTTL() time.Duration {
	return time.Duration(c.Catalog.CacheTTLSeconds) * time.Second
}

func (c *Config) ReminderCheckInterval() time.Duration {
	return time.Duration(c.Reminders.CheckIntervalSeconds) * time.Second
}

func (c *Config) ReminderLeadTime() time.Duration {
	return time.Duration(c.Reminders.LeadTimeMinutes) * time.Minute
}
