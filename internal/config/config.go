package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the rankpulse server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
	Engine    EngineConfig
	Notify    NotifyConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type SchedulerConfig struct {
	// Enabled controls the in-process periodic trigger. Deployments that rely
	// on the external poll endpoint (platform cron) run with this off.
	Enabled     bool
	Interval    time.Duration
	ReapTimeout time.Duration
	Parallelism int
	PollToken   string
}

type EngineConfig struct {
	Provider  string
	OpenAI    OpenAIConfig
	Anthropic AnthropicConfig
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

type AnthropicConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

type NotifyConfig struct {
	SlackWebhookURL string
	Channel         string
}

var validProviders = map[string]bool{
	"openai":    true,
	"anthropic": true,
	"mock":      true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("RANKPULSE_PORT", 8080),
			Env:  envString("RANKPULSE_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Scheduler: SchedulerConfig{
			Enabled:     envBool("SCHEDULER_ENABLED", true),
			Interval:    envDuration("SCHEDULER_INTERVAL", time.Minute),
			ReapTimeout: envDuration("SCHEDULER_REAP_TIMEOUT", 10*time.Minute),
			Parallelism: envInt("SCHEDULER_PARALLELISM", 4),
			PollToken:   os.Getenv("SCHEDULER_POLL_TOKEN"),
		},
		Engine: EngineConfig{
			Provider: os.Getenv("ENGINE_PROVIDER"),
			OpenAI: OpenAIConfig{
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				Model:   envString("OPENAI_MODEL", "gpt-4o"),
				Timeout: envDurationSecs("OPENAI_TIMEOUT_SECS", 120*time.Second),
			},
			Anthropic: AnthropicConfig{
				APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
				Model:   envString("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
				Timeout: envDurationSecs("ANTHROPIC_TIMEOUT_SECS", 120*time.Second),
			},
		},
		Notify: NotifyConfig{
			SlackWebhookURL: os.Getenv("SLACK_WEBHOOK_URL"),
			Channel:         envString("SLACK_CHANNEL", "#marketing-ops"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Scheduler.PollToken == "" {
		return fmt.Errorf("SCHEDULER_POLL_TOKEN is required")
	}
	if c.Scheduler.Interval < time.Second {
		return fmt.Errorf("SCHEDULER_INTERVAL must be at least 1s, got %s", c.Scheduler.Interval)
	}
	if c.Scheduler.ReapTimeout < time.Minute {
		return fmt.Errorf("SCHEDULER_REAP_TIMEOUT must be at least 1m, got %s", c.Scheduler.ReapTimeout)
	}
	if c.Scheduler.Parallelism < 1 {
		return fmt.Errorf("SCHEDULER_PARALLELISM must be at least 1, got %d", c.Scheduler.Parallelism)
	}

	if c.Engine.Provider == "" {
		return fmt.Errorf("ENGINE_PROVIDER is required")
	}
	if !validProviders[c.Engine.Provider] {
		return fmt.Errorf("ENGINE_PROVIDER must be one of openai, anthropic, mock; got %q", c.Engine.Provider)
	}

	if c.Engine.Provider == "openai" && c.Engine.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when ENGINE_PROVIDER is openai")
	}
	if c.Engine.Provider == "anthropic" && c.Engine.Anthropic.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when ENGINE_PROVIDER is anthropic")
	}

	if c.Notify.SlackWebhookURL != "" &&
		!strings.HasPrefix(c.Notify.SlackWebhookURL, "http://") &&
		!strings.HasPrefix(c.Notify.SlackWebhookURL, "https://") {
		return fmt.Errorf("SLACK_WEBHOOK_URL must start with http:// or https://, got %q", c.Notify.SlackWebhookURL)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
