package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/FrenchMajesty/yuko/rest"
	"github.com/FrenchMajesty/yuko/utils/errs"
	"github.com/FrenchMajesty/yuko/utils/logger"
	"github.com/FrenchMajesty/yuko/utils/retry"
	"gopkg.in/yaml.v3"
)

// TokenEnv overrides the token of any loaded file
const TokenEnv = "YUKO_TOKEN"

// Config is the on-disk configuration of a client. Durations are strings such as "500ms".
type Config struct {
	Token                   string                `yaml:"token"`
	APIURL                  string                `yaml:"api_url"`
	UserAgent               string                `yaml:"user_agent"`
	RequestTimeout          string                `yaml:"request_timeout"`
	Retry                   RetryConfig           `yaml:"retry"`
	MaxRateLimitRetries     int                   `yaml:"max_ratelimit_retries"`
	GlobalRequestsPerSecond float64               `yaml:"global_requests_per_second"`
	Cache                   map[string]int        `yaml:"cache"`
	AllowedMentions         AllowedMentionsConfig `yaml:"allowed_mentions"`
	Logger                  logger.Config         `yaml:"logger"`
	Stats                   StatsConfig           `yaml:"stats"`
	DebugServer             DebugServerConfig     `yaml:"debug_server"`

	requestTimeout time.Duration
	retry          retry.Config
	statsTTL       time.Duration
}

// RetryConfig is the backoff applied to 5xx and network failures
type RetryConfig struct {
	MaxRetries      int     `yaml:"max_retries"`
	BaseDelay       string  `yaml:"base_delay"`
	MaxDelay        string  `yaml:"max_delay"`
	BackoffMultiple float64 `yaml:"backoff_multiple"`
}

// AllowedMentionsConfig is injected into outgoing messages that do not set their own
type AllowedMentionsConfig struct {
	Parse       []string `yaml:"parse"`
	RepliedUser bool     `yaml:"replied_user"`
}

// StatsConfig selects where request outcomes are recorded
type StatsConfig struct {
	Backend       string `yaml:"backend"` // none, memory or redis
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	Prefix        string `yaml:"prefix"`
	TTL           string `yaml:"ttl"`
}

// DebugServerConfig exposes dispatcher state over HTTP
type DebugServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

const (
	StatsBackendNone   = "none"
	StatsBackendMemory = "memory"
	StatsBackendRedis  = "redis"
)

// Default returns a configuration with every optional field filled in
func Default() *Config {
	defaults := retry.DefaultConfig()
	return &Config{
		APIURL:         rest.DefaultBaseURL,
		UserAgent:      rest.DefaultUserAgent,
		RequestTimeout: rest.DefaultRequestTimeout.String(),
		Retry: RetryConfig{
			MaxRetries:      defaults.MaxRetries,
			BaseDelay:       defaults.BaseDelay.String(),
			MaxDelay:        defaults.MaxDelay.String(),
			BackoffMultiple: defaults.BackoffMultiple,
		},
		MaxRateLimitRetries:     rest.DefaultMaxRateLimitRetries,
		GlobalRequestsPerSecond: 50,
		Cache:                   map[string]int{"messages": 100},
		AllowedMentions: AllowedMentionsConfig{
			Parse: []string{"users"},
		},
		Logger: logger.Config{Type: logger.LoggerTypeStdout},
		Stats: StatsConfig{
			Backend: StatsBackendMemory,
			Prefix:  "yuko:rest",
			TTL:     "24h",
		},
		DebugServer: DebugServerConfig{Addr: "127.0.0.1:8089"},
	}
}

// LoadConfig reads filename over the defaults, applies the environment and validates the result
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyEnv()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// ApplyEnv overrides fields from the environment
func (c *Config) ApplyEnv() {
	if token := strings.TrimSpace(os.Getenv(TokenEnv)); token != "" {
		c.Token = token
	}
}

// Validate checks every field and parses durations. It must succeed before the accessors are used.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("token is required (set it in the file or %s): %w", TokenEnv, errs.ErrInvalidArgument)
	}
	if c.APIURL == "" || !(strings.HasPrefix(c.APIURL, "http://") || strings.HasPrefix(c.APIURL, "https://")) {
		return fmt.Errorf("api_url %q must be an http(s) URL: %w", c.APIURL, errs.ErrInvalidArgument)
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")

	var err error
	if c.requestTimeout, err = parseDuration("request_timeout", c.RequestTimeout); err != nil {
		return err
	}

	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative: %w", errs.ErrInvalidArgument)
	}
	if c.Retry.BackoffMultiple < 1 {
		return fmt.Errorf("retry.backoff_multiple must be at least 1: %w", errs.ErrInvalidArgument)
	}
	baseDelay, err := parseDuration("retry.base_delay", c.Retry.BaseDelay)
	if err != nil {
		return err
	}
	maxDelay, err := parseDuration("retry.max_delay", c.Retry.MaxDelay)
	if err != nil {
		return err
	}
	if maxDelay < baseDelay {
		return fmt.Errorf("retry.max_delay must not be below retry.base_delay: %w", errs.ErrInvalidArgument)
	}
	c.retry = retry.Config{
		MaxRetries:      c.Retry.MaxRetries,
		BaseDelay:       baseDelay,
		MaxDelay:        maxDelay,
		BackoffMultiple: c.Retry.BackoffMultiple,
	}

	if c.MaxRateLimitRetries < 0 {
		return fmt.Errorf("max_ratelimit_retries must not be negative: %w", errs.ErrInvalidArgument)
	}
	if c.GlobalRequestsPerSecond < 0 {
		return fmt.Errorf("global_requests_per_second must not be negative: %w", errs.ErrInvalidArgument)
	}

	for name, limit := range c.Cache {
		if limit < -1 {
			return fmt.Errorf("cache.%s: limit must be -1 (unlimited) or more: %w", name, errs.ErrInvalidArgument)
		}
	}

	for _, parse := range c.AllowedMentions.Parse {
		switch parse {
		case "users", "roles", "everyone":
		default:
			return fmt.Errorf("allowed_mentions.parse: unknown type %q: %w", parse, errs.ErrInvalidArgument)
		}
	}

	switch c.Logger.Type {
	case "", logger.LoggerTypeStdout, logger.LoggerTypeNoop:
	case logger.LoggerTypeFile:
		if c.Logger.Path == "" {
			return fmt.Errorf("logger.path is required for a file logger: %w", errs.ErrInvalidArgument)
		}
	default:
		return fmt.Errorf("logger.type %q: %w", c.Logger.Type, errs.ErrInvalidArgument)
	}

	switch c.Stats.Backend {
	case "", StatsBackendNone, StatsBackendMemory:
	case StatsBackendRedis:
		if c.Stats.RedisAddr == "" {
			return fmt.Errorf("stats.redis_addr is required for the redis backend: %w", errs.ErrInvalidArgument)
		}
	default:
		return fmt.Errorf("stats.backend %q: %w", c.Stats.Backend, errs.ErrInvalidArgument)
	}
	if c.statsTTL, err = parseDuration("stats.ttl", c.Stats.TTL); err != nil {
		return err
	}

	if c.DebugServer.Enabled && c.DebugServer.Addr == "" {
		return fmt.Errorf("debug_server.addr is required when enabled: %w", errs.ErrInvalidArgument)
	}
	return nil
}

// RequestTimeoutDuration returns the parsed request_timeout
func (c *Config) RequestTimeoutDuration() time.Duration { return c.requestTimeout }

// RetryPolicy returns the parsed retry section
func (c *Config) RetryPolicy() retry.Config { return c.retry }

// StatsTTL returns the parsed stats.ttl
func (c *Config) StatsTTL() time.Duration { return c.statsTTL }

// CacheLimit returns the configured limit of the named cache, unlimited (-1) when absent
func (c *Config) CacheLimit(name string) int {
	if limit, ok := c.Cache[name]; ok {
		return limit
	}
	return -1
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", field, value, errs.ErrInvalidArgument)
	}
	return d, nil
}
