// Package config loads switchboard settings from defaults, an optional YAML
// file and SWITCHBOARD_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/switchboard/internal/logging"
	"github.com/aretw0/switchboard/pkg/registry"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "SWITCHBOARD_"

// Config is the full process configuration.
type Config struct {
	HTTP  HTTPConfig  `yaml:"http" envPrefix:"HTTP_"`
	MCP   MCPConfig   `yaml:"mcp" envPrefix:"MCP_"`
	Redis RedisConfig `yaml:"redis" envPrefix:"REDIS_"`
	Log   LogConfig   `yaml:"log" envPrefix:"LOG_"`

	// Groups is the path of the groups fixture served by the built-in kernel.
	Groups          string        `yaml:"groups" env:"GROUPS"`
	StatusInterval  time.Duration `yaml:"status_interval" env:"STATUS_INTERVAL"`
	DisabledActions []string      `yaml:"disabled_actions" env:"DISABLED_ACTIONS"`
	DuplicatePolicy string        `yaml:"duplicate_policy" env:"DUPLICATE_POLICY"`
}

type HTTPConfig struct {
	Enabled   bool          `yaml:"enabled" env:"ENABLED"`
	Addr      string        `yaml:"addr" env:"ADDR"`
	Token     string        `yaml:"token" env:"TOKEN"`
	Timeout   time.Duration `yaml:"timeout" env:"TIMEOUT"`
	RateLimit float64       `yaml:"rate_limit" env:"RATE_LIMIT"`
	RateBurst int           `yaml:"rate_burst" env:"RATE_BURST"`
}

type MCPConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Mode    string `yaml:"mode" env:"MODE"`
	Addr    string `yaml:"addr" env:"ADDR"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled" env:"ENABLED"`
	Addr     string        `yaml:"addr" env:"ADDR"`
	Password string        `yaml:"password" env:"PASSWORD"`
	DB       int           `yaml:"db" env:"DB"`
	Queue    string        `yaml:"queue" env:"QUEUE"`
	Workers  int           `yaml:"workers" env:"WORKERS"`
	ReplyTTL time.Duration `yaml:"reply_ttl" env:"REPLY_TTL"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// Default returns the built-in settings: HTTP on :3000, everything else off.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Enabled:   true,
			Addr:      ":3000",
			Timeout:   30 * time.Second,
			RateBurst: 20,
		},
		MCP: MCPConfig{
			Mode: "stdio",
			Addr: "127.0.0.1:8081",
		},
		Redis: RedisConfig{
			Addr:     "127.0.0.1:6379",
			Queue:    "switchboard:requests",
			Workers:  4,
			ReplyTTL: time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Groups:          "groups.yaml",
		StatusInterval:  3 * time.Second,
		DuplicatePolicy: "replace",
	}
}

// Load applies the file at path (when non-empty) and the environment over
// Default, then validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if c.HTTP.Enabled && c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required when http is enabled"))
	}
	if c.HTTP.Timeout < 0 {
		errs = append(errs, errors.New("http.timeout must not be negative"))
	}
	if c.HTTP.RateLimit < 0 {
		errs = append(errs, errors.New("http.rate_limit must not be negative"))
	}
	if c.HTTP.RateLimit > 0 && c.HTTP.RateBurst < 1 {
		errs = append(errs, errors.New("http.rate_burst must be at least 1 when rate limiting"))
	}

	if c.MCP.Enabled {
		switch c.MCP.Mode {
		case "stdio":
		case "sse":
			if c.MCP.Addr == "" {
				errs = append(errs, errors.New("mcp.addr is required in sse mode"))
			}
		default:
			errs = append(errs, fmt.Errorf("mcp.mode %q is not one of stdio, sse", c.MCP.Mode))
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required when redis is enabled"))
		}
		if c.Redis.Queue == "" {
			errs = append(errs, errors.New("redis.queue is required when redis is enabled"))
		}
		if c.Redis.Workers < 1 {
			errs = append(errs, errors.New("redis.workers must be at least 1"))
		}
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q is not one of text, json", c.Log.Format))
	}

	if c.StatusInterval <= 0 {
		errs = append(errs, errors.New("status_interval must be positive"))
	}
	if _, err := c.Policy(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Policy maps DuplicatePolicy to the registry setting.
func (c Config) Policy() (registry.DuplicatePolicy, error) {
	switch c.DuplicatePolicy {
	case "", "replace":
		return registry.Replace, nil
	case "keep":
		return registry.Keep, nil
	default:
		return 0, fmt.Errorf("duplicate_policy %q is not one of replace, keep", c.DuplicatePolicy)
	}
}

// Disabled reports whether the named action is switched off.
func (c Config) Disabled(name string) bool {
	return slices.Contains(c.DisabledActions, name)
}
