// Package config loads service configuration from an optional TOML file,
// an optional .env file and the process environment, in that order of priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config is the top-level configuration.
type Config struct {
	LLM       LLMConfig       `toml:"llm"`
	Server    ServerConfig    `toml:"server"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Log       LogConfig       `toml:"log"`
}

// LLMConfig configures the completion provider.
// An empty APIKey is valid: every analysis then uses the fallback classifier.
type LLMConfig struct {
	APIKey   string        `toml:"api_key"`
	Model    string        `toml:"model" validate:"required"`
	Endpoint string        `toml:"endpoint" validate:"omitempty,url"`
	Referer  string        `toml:"referer"`
	Title    string        `toml:"title"`
	Timeout  time.Duration `toml:"timeout" validate:"gte=0"`
	Strict   bool          `toml:"strict"`
}

// ServerConfig configures the HTTP listeners.
type ServerConfig struct {
	Addr         string `toml:"addr" validate:"required"`
	MetricsAddr  string `toml:"metrics_addr"`
	MaxBodyBytes int64  `toml:"max_body_bytes" validate:"gt=0"`
}

// RateLimitConfig configures inbound rate limiting. Limit 0 disables it.
type RateLimitConfig struct {
	Limit    int           `toml:"limit" validate:"gte=0"`
	Window   time.Duration `toml:"window" validate:"required_with=Limit"`
	RedisURL string        `toml:"redis_url"`
}

// LogConfig configures the zerolog logger.
type LogConfig struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=console json"`
}

// Environment keys.
const (
	EnvAPIKey       = "OPENROUTER_API_KEY"
	EnvModel        = "OPENROUTER_MODEL"
	EnvTimeout      = "OPENROUTER_TIMEOUT"
	EnvAddr         = "EXPLAINER_ADDR"
	EnvMetricsAddr  = "EXPLAINER_METRICS_ADDR"
	EnvMaxBodyBytes = "EXPLAINER_MAX_BODY_BYTES"
	EnvRateLimit    = "EXPLAINER_RATE_LIMIT"
	EnvRateWindow   = "EXPLAINER_RATE_WINDOW"
	EnvRedisURL     = "REDIS_URL"
	EnvLogLevel     = "LOG_LEVEL"
	EnvLogFormat    = "LOG_FORMAT"
	EnvStrict       = "EXPLAINER_STRICT"
)

// DefaultEnvFile is read by Load when present.
const DefaultEnvFile = ".env"

var validate = validator.New()

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Model:   "amazon/nova-2-lite-v1:free",
			Timeout: 30 * time.Second,
		},
		Server: ServerConfig{
			Addr:         ":8000",
			MaxBodyBytes: 256 << 10,
		},
		RateLimit: RateLimitConfig{
			Window: time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds a validated Config. path names an optional TOML file; an empty
// path skips it. A .env file in the working directory is applied when present.
func Load(path string) (*Config, error) {
	return LoadFiles(path, DefaultEnvFile)
}

// LoadFiles is Load with an explicit .env location. A missing envFile is ignored.
func LoadFiles(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("config file not found: %s", path)
			}
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	dotenv := map[string]string{}
	if envFile != "" {
		values, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			dotenv = values
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("read %s: %w", envFile, err)
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	str(EnvAPIKey, &c.LLM.APIKey)
	str(EnvModel, &c.LLM.Model)
	str(EnvAddr, &c.Server.Addr)
	str(EnvMetricsAddr, &c.Server.MetricsAddr)
	str(EnvRedisURL, &c.RateLimit.RedisURL)
	str(EnvLogLevel, &c.Log.Level)
	str(EnvLogFormat, &c.Log.Format)
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)

	if v, ok := lookup(EnvTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.LLM.Timeout = d
	}
	if v, ok := lookup(EnvRateWindow); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRateWindow, err)
		}
		c.RateLimit.Window = d
	}
	if v, ok := lookup(EnvMaxBodyBytes); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxBodyBytes, err)
		}
		c.Server.MaxBodyBytes = n
	}
	if v, ok := lookup(EnvRateLimit); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRateLimit, err)
		}
		c.RateLimit.Limit = n
	}
	if v, ok := lookup(EnvStrict); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvStrict, err)
		}
		c.LLM.Strict = b
	}
	return nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// RateLimitEnabled reports whether inbound requests are rate limited.
func (c *Config) RateLimitEnabled() bool {
	return c.RateLimit.Limit > 0
}
