// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultListenAddr      = ":8080"
	DefaultBaseURL         = "http://localhost:8080"
	DefaultCredentialsPath = "config.yaml"
	DefaultModel           = "gemini-2.0-flash"
	DefaultAPIKeyEnv       = "GOOGLE_API_KEY"
	DefaultTimeoutSeconds  = 60
	DefaultMaxConcurrent   = 4
	DefaultTemperature     = 0.7
	DefaultAuthPerMinute   = 30
	DefaultQuizPerMinute   = 10
)

// Config represents the main configuration structure
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Credentials CredentialsConfig `toml:"credentials"`
	Cache       CacheConfig       `toml:"cache"`
	Generator   GeneratorConfig   `toml:"generator"`
	RateLimit   RateLimitConfig   `toml:"ratelimit"`
	Log         LogConfig         `toml:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	ListenAddr string `toml:"listen_addr" env:"QUIZZER__LISTEN_ADDR"`
	// BaseURL is the externally reachable address, used to build OAuth redirect URIs.
	BaseURL string `toml:"base_url" env:"QUIZZER__BASE_URL"`
}

// CredentialsConfig points at the YAML credential file.
type CredentialsConfig struct {
	Path string `toml:"path" env:"QUIZZER__CREDENTIALS_PATH"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type  string      `toml:"type" env:"CACHE_TYPE"`
	Redis RedisConfig `toml:"redis"`
}

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	Host string `toml:"host" env:"REDIS_HOST"`
	Port int    `toml:"port" env:"REDIS_PORT"`
}

// GeneratorConfig configures the text-generation backend.
type GeneratorConfig struct {
	Model          string `toml:"model" env:"QUIZZER__MODEL"`
	APIKeyEnv      string `toml:"api_key_env"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxConcurrent  int    `toml:"max_concurrent"`
	// nil means unset; an explicit 0 is kept.
	Temperature *float64 `toml:"temperature"`
}

// SamplingTemperature returns the configured temperature or the default.
func (g GeneratorConfig) SamplingTemperature() float64 {
	if g.Temperature == nil {
		return DefaultTemperature
	}
	return *g.Temperature
}

// RateLimitConfig bounds form submissions per client IP.
type RateLimitConfig struct {
	AuthPerMinute int `toml:"auth_per_minute"`
	QuizPerMinute int `toml:"quiz_per_minute"`
}

type LogConfig struct {
	Level string `toml:"level" env:"QUIZZER__LOG_LEVEL"`
}

// Default returns a configuration populated with defaults only.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig loads the configuration from a TOML file. A missing file is
// reported with fs.ErrNotExist wrapped so callers can fall back to Default.
func LoadConfig(path string) (*Config, error) {
	loadDotEnv()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := &Config{}
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error decoding config file: %w", err)
	}

	if err := LoadEnvOverrides(config); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}
	config.applyDefaults()

	return config, nil
}

// LoadOrDefault is LoadConfig that tolerates a missing file.
func LoadOrDefault(path string) (*Config, bool, error) {
	cfg, err := LoadConfig(path)
	if err == nil {
		return cfg, true, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}

	cfg = &Config{}
	if err := LoadEnvOverrides(cfg); err != nil {
		return nil, false, err
	}
	cfg.applyDefaults()
	return cfg, false, nil
}

// loadDotEnv reads .env into the process environment without overriding
// variables that are already set.
func loadDotEnv() {
	_ = godotenv.Load()
}

// LoadEnvOverrides checks for environment variables and overrides config values
func LoadEnvOverrides(config *Config) error {
	loadDotEnv()

	if env := os.Getenv("QUIZZER__LISTEN_ADDR"); env != "" {
		config.Server.ListenAddr = env
	}
	if env := os.Getenv("QUIZZER__BASE_URL"); env != "" {
		config.Server.BaseURL = env
	}
	if env := os.Getenv("QUIZZER__CREDENTIALS_PATH"); env != "" {
		config.Credentials.Path = env
	}

	if env := os.Getenv("CACHE_TYPE"); env != "" {
		config.Cache.Type = env
	}
	if env := os.Getenv("REDIS_HOST"); env != "" {
		config.Cache.Redis.Host = env
	}
	if env := os.Getenv("REDIS_PORT"); env != "" {
		port, err := strconv.Atoi(env)
		if err != nil {
			return fmt.Errorf("invalid REDIS_PORT %q: %w", env, err)
		}
		config.Cache.Redis.Port = port
	}

	if env := os.Getenv("QUIZZER__MODEL"); env != "" {
		config.Generator.Model = env
	}
	if env := os.Getenv("QUIZZER__LOG_LEVEL"); env != "" {
		config.Log.Level = env
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = DefaultBaseURL
	}
	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")
	if c.Credentials.Path == "" {
		c.Credentials.Path = DefaultCredentialsPath
	}
	if c.Cache.Type == "" {
		if c.Cache.Redis.Host != "" {
			c.Cache.Type = "redis"
		} else {
			c.Cache.Type = "memory"
		}
	}
	if c.Cache.Redis.Port == 0 {
		c.Cache.Redis.Port = 6379
	}
	if c.Generator.Model == "" {
		c.Generator.Model = DefaultModel
	}
	if c.Generator.APIKeyEnv == "" {
		c.Generator.APIKeyEnv = DefaultAPIKeyEnv
	}
	if c.Generator.TimeoutSeconds <= 0 {
		c.Generator.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.Generator.MaxConcurrent <= 0 {
		c.Generator.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.Generator.Temperature == nil {
		temperature := DefaultTemperature
		c.Generator.Temperature = &temperature
	}
	if c.RateLimit.AuthPerMinute <= 0 {
		c.RateLimit.AuthPerMinute = DefaultAuthPerMinute
	}
	if c.RateLimit.QuizPerMinute <= 0 {
		c.RateLimit.QuizPerMinute = DefaultQuizPerMinute
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}
