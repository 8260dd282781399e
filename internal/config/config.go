// Package config loads runtime configuration from environment variables and
// an optional config file. Accessors read through the live viper instance,
// so values changed between calls are picked up without a reload.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "ACROGEN"

// numberedKeyPattern is the environment naming scheme for credential
// discovery: GEMINI_API_KEY_1, GEMINI_API_KEY_2, ...
const numberedKeyPattern = "GEMINI_API_KEY_%d"

// Config wraps a viper instance. All accessors read live values.
type Config struct {
	v *viper.Viper
}

// Load builds a Config from defaults, an optional YAML file and ACROGEN_*
// environment variables. The file path comes from ACROGEN_CONFIG; when
// unset, ./acrogen.yaml is used if present.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("model", "gemini-2.0-flash")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("rate.requests_per_minute", 60.0)
	v.SetDefault("rate.burst", 10)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", "2s")
	v.SetDefault("retry.max_delay", "60s")

	v.SetDefault("pool.daily_limit", 60)
	v.SetDefault("pool.max_consecutive_errors", 3)
	v.SetDefault("pool.min_interval", "1s")
	v.SetDefault("pool.force_reset_when_exhausted", true)

	v.SetDefault("processor.max_concurrency", 5)
	v.SetDefault("processor.wait_timeout", "30s")
	v.SetDefault("processor.cache_ttl", "1h")

	v.SetDefault("validation.min_description_length", 20)
	v.SetDefault("validation.min_related_terms", 1)

	v.SetDefault("metrics.addr", ":9090")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv(envPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("acrogen")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	return &Config{v: v}, nil
}

// APIKeys collects credentials from ACROGEN_API_KEYS (comma separated) and
// numbered GEMINI_API_KEY_n variables, in that order, deduplicated.
// Discovery of numbered keys stops at the first gap.
func (c *Config) APIKeys() []string {
	seen := make(map[string]struct{})
	var keys []string

	add := func(key string) {
		key = strings.TrimSpace(key)
		if key == "" {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}

	for _, key := range strings.Split(c.v.GetString("api_keys"), ",") {
		add(key)
	}

	for i := 1; ; i++ {
		key, ok := os.LookupEnv(fmt.Sprintf(numberedKeyPattern, i))
		if !ok {
			break
		}
		add(key)
	}

	return keys
}

func (c *Config) Model() string { return c.v.GetString("model") }

func (c *Config) RedisAddr() string     { return c.v.GetString("redis.addr") }
func (c *Config) RedisDB() int          { return c.v.GetInt("redis.db") }
func (c *Config) RedisPassword() string { return c.v.GetString("redis.password") }

func (c *Config) LogLevel() string  { return c.v.GetString("log.level") }
func (c *Config) LogFormat() string { return c.v.GetString("log.format") }

// RequestsPerMinute is the configured admission rate. TokensPerSecond is
// the same value normalized for the token bucket; the per-minute form never
// leaves this package.
func (c *Config) RequestsPerMinute() float64 { return c.v.GetFloat64("rate.requests_per_minute") }
func (c *Config) TokensPerSecond() float64   { return c.RequestsPerMinute() / 60.0 }
func (c *Config) Burst() int                 { return c.v.GetInt("rate.burst") }

func (c *Config) MaxAttempts() int         { return c.v.GetInt("retry.max_attempts") }
func (c *Config) BaseDelay() time.Duration { return c.v.GetDuration("retry.base_delay") }
func (c *Config) MaxDelay() time.Duration  { return c.v.GetDuration("retry.max_delay") }

func (c *Config) DailyLimit() int               { return c.v.GetInt("pool.daily_limit") }
func (c *Config) MaxConsecutiveErrors() int     { return c.v.GetInt("pool.max_consecutive_errors") }
func (c *Config) MinInterval() time.Duration    { return c.v.GetDuration("pool.min_interval") }
func (c *Config) ForceResetWhenExhausted() bool { return c.v.GetBool("pool.force_reset_when_exhausted") }

func (c *Config) MaxConcurrency() int        { return c.v.GetInt("processor.max_concurrency") }
func (c *Config) WaitTimeout() time.Duration { return c.v.GetDuration("processor.wait_timeout") }
func (c *Config) CacheTTL() time.Duration    { return c.v.GetDuration("processor.cache_ttl") }

func (c *Config) MinDescriptionLength() int { return c.v.GetInt("validation.min_description_length") }
func (c *Config) MinRelatedTerms() int      { return c.v.GetInt("validation.min_related_terms") }

func (c *Config) MetricsAddr() string { return c.v.GetString("metrics.addr") }

// Validate checks the values a run cannot start without.
func (c *Config) Validate() error {
	if len(c.APIKeys()) == 0 {
		return errors.New("no API keys configured: set ACROGEN_API_KEYS or GEMINI_API_KEY_1..n")
	}
	if c.RequestsPerMinute() <= 0 {
		return errors.New("rate.requests_per_minute must be positive")
	}
	if c.MaxAttempts() <= 0 {
		return errors.New("retry.max_attempts must be positive")
	}
	if c.Model() == "" {
		return errors.New("model must not be empty")
	}
	return nil
}
