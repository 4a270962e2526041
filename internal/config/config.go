// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/codingconcepts/env"
	"github.com/joho/godotenv"
)

// DefaultEnvFile is the dotenv file read by Load when it exists.
const DefaultEnvFile = ".env"

// allKeys lists every variable bound into Config.
var allKeys = []string{
	"OPENAI_API_KEY",
	"OPENAI_BASE_URL",
	"CHATRELAY_MODEL",
	"CHATRELAY_LISTEN_ADDR",
	"CHATRELAY_UPSTREAM_TIMEOUT",
	"CHATRELAY_LOG_LEVEL",
}

// maskedKeyPrefix is how many leading characters of the API key are shown in logs.
const maskedKeyPrefix = 6

// Config holds the application configuration loaded from environment variables.
type Config struct {
	APIKey          string        `env:"OPENAI_API_KEY"`
	BaseURL         string        `env:"OPENAI_BASE_URL"`
	Model           string        `env:"CHATRELAY_MODEL" default:"gpt-4o-mini"`
	ListenAddr      string        `env:"CHATRELAY_LISTEN_ADDR" default:"127.0.0.1:8000"`
	UpstreamTimeout time.Duration `env:"CHATRELAY_UPSTREAM_TIMEOUT" default:"60s"`
	LogLevel        string        `env:"CHATRELAY_LOG_LEVEL" default:"info"`
}

// HasCredential returns true when an API key is configured. Used by the
// composition root to decide whether to build an upstream client at all.
func (c *Config) HasCredential() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// MaskedKey returns a short prefix of the API key suitable for log output.
func (c *Config) MaskedKey() string {
	key := strings.TrimSpace(c.APIKey)
	if key == "" {
		return ""
	}
	if len(key) <= maskedKeyPrefix {
		return "..."
	}
	return key[:maskedKeyPrefix] + "..."
}

// SlogLevel maps LogLevel onto a slog.Level. Load has already validated it.
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

// Load reads the .env file in the working directory (if any) and then the
// process environment, returning a validated Config.
// OPENAI_API_KEY is optional; without it the server starts but /chat answers
// with an error payload.
func Load() (*Config, error) {
	return LoadFrom(DefaultEnvFile)
}

// LoadFrom is Load with an explicit dotenv path. Variables already present in
// the environment win over values in the file. A missing file is not an error.
func LoadFrom(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", envFile, err)
		}
	}

	unsetBlank(allKeys)

	var cfg Config
	if err := env.Set(&cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)

	if cfg.UpstreamTimeout < 0 {
		return nil, fmt.Errorf("CHATRELAY_UPSTREAM_TIMEOUT must not be negative, got %s", cfg.UpstreamTimeout)
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// unsetBlank removes variables that are set to an empty or whitespace-only
// value. The env binder only applies defaults to unset variables, and a
// blank entry in .env or a compose file means "use the default".
func unsetBlank(keys []string) {
	for _, key := range keys {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) == "" {
			os.Unsetenv(key)
		}
	}
}

func parseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("CHATRELAY_LOG_LEVEL has invalid level %q", raw)
	}
}
