// Package config loads runtime configuration for the floor binaries.
// A YAML file supplies defaults; environment variables override it, so
// deployments can ship a file and still tweak single values per host.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	// API is the backend root, e.g. "http://localhost:8000/api/v1".
	API APIConfig `yaml:"api"`

	// Poll controls the refresh loop.
	Poll PollConfig `yaml:"poll"`

	// Log controls the zap logger.
	Log LogConfig `yaml:"log"`
}

// APIConfig describes the backend connection.
type APIConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Token    string        `yaml:"token"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`
}

// PollConfig describes the refresh loop.
type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// LogConfig describes logging.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL: "http://localhost:8000/api/v1",
			Timeout: 15 * time.Second,
		},
		Poll: PollConfig{Interval: 10 * time.Second},
		Log:  LogConfig{Level: "info"},
	}
}

// Load reads the optional YAML file at path, then applies environment
// overrides. A missing file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// File is optional.
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if cfg.API.Timeout <= 0 {
		cfg.API.Timeout = 15 * time.Second
	}
	if cfg.Poll.Interval <= 0 {
		cfg.Poll.Interval = 10 * time.Second
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.API.BaseURL = GetEnv("MYCAFE_API_URL", c.API.BaseURL)
	c.API.Token = GetEnv("MYCAFE_TOKEN", c.API.Token)
	c.API.Username = GetEnv("MYCAFE_USERNAME", c.API.Username)
	c.API.Password = GetEnv("MYCAFE_PASSWORD", c.API.Password)
	c.API.Timeout = GetEnvDuration("MYCAFE_API_TIMEOUT", c.API.Timeout)
	c.Poll.Interval = GetEnvDuration("MYCAFE_POLL_INTERVAL", c.Poll.Interval)
	c.Log.Level = GetEnv("LOG_LEVEL", c.Log.Level)
	if GetEnv("APP_ENV", "") == "development" {
		c.Log.Development = true
	}
}

// --- Environment helpers ---

// GetEnv returns the value of key or fallback when unset/empty.
func GetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// GetEnvInt parses an integer environment variable with a fallback.
func GetEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvDuration parses a duration environment variable with a fallback.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
