// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Walker   WalkerConfig   `mapstructure:"walker"`
	Poll     PollConfig     `mapstructure:"poll"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int    `mapstructure:"port"`
	PublicURL             string `mapstructure:"public_url"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
	Streaming             bool   `mapstructure:"streaming"`
}

// UpstreamConfig configures the Bluesky AppView client.
type UpstreamConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	UserAgent      string  `mapstructure:"user_agent"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// WalkerConfig bounds thread traversal.
type WalkerConfig struct {
	MaxSteps int `mapstructure:"max_steps"`
}

// PollConfig controls the thread updates endpoint.
type PollConfig struct {
	Enabled                bool `mapstructure:"enabled"`
	InitialIntervalSeconds int  `mapstructure:"initial_interval_seconds"`
	MaxIntervalSeconds     int  `mapstructure:"max_interval_seconds"`
	DisableAfterSeconds    int  `mapstructure:"disable_after_seconds"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// legacyEnv maps config keys to the unprefixed variables older deployments set.
var legacyEnv = map[string]string{
	"server.port":                    "PORT",
	"server.public_url":              "PUBLIC_URL",
	"server.request_timeout_seconds": "REQUEST_TIMEOUT_SECONDS",
	"upstream.base_url":              "BLUESKY_API_URL",
	"logging.level":                  "LOG_LEVEL",
	"poll.enabled":                   "POLL_ENABLED",
	"poll.initial_interval_seconds":  "POLL_INITIAL_INTERVAL_SECONDS",
	"poll.max_interval_seconds":      "POLL_MAX_INTERVAL_SECONDS",
	"poll.disable_after_seconds":     "POLL_DISABLE_AFTER_SECONDS",
}

// Load builds a Config from disk/environment. Prefixed variables
// (SKLONGER_SERVER_PORT) take precedence over legacy ones (PORT).
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SKLONGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	for key, env := range legacyEnv {
		prefixed := "SKLONGER_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.public_url", "https://sklonger.app")
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("server.streaming", false)
	v.SetDefault("upstream.base_url", "https://public.api.bsky.app")
	v.SetDefault("upstream.timeout_seconds", 10)
	v.SetDefault("upstream.user_agent", "sklonger/1.0")
	v.SetDefault("upstream.rate_limit_rps", 20)
	v.SetDefault("upstream.rate_limit_burst", 40)
	v.SetDefault("walker.max_steps", 500)
	v.SetDefault("poll.enabled", true)
	v.SetDefault("poll.initial_interval_seconds", 30)
	v.SetDefault("poll.max_interval_seconds", 120)
	v.SetDefault("poll.disable_after_seconds", 1800)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.Server.PublicURL != "" {
		if u, err := url.Parse(c.Server.PublicURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("server.public_url must be an absolute URL")
		}
	}
	if u, err := url.Parse(c.Upstream.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("upstream.base_url must be an http(s) URL")
	}
	if c.Upstream.TimeoutSeconds <= 0 {
		return fmt.Errorf("upstream.timeout_seconds must be > 0")
	}
	if c.Upstream.RateLimitRPS < 0 {
		return fmt.Errorf("upstream.rate_limit_rps must be >= 0")
	}
	if c.Walker.MaxSteps <= 0 {
		return fmt.Errorf("walker.max_steps must be > 0")
	}
	if c.Poll.Enabled {
		if c.Poll.InitialIntervalSeconds <= 0 {
			return fmt.Errorf("poll.initial_interval_seconds must be > 0 when polling is enabled")
		}
		if c.Poll.MaxIntervalSeconds < c.Poll.InitialIntervalSeconds {
			return fmt.Errorf("poll.max_interval_seconds must be >= poll.initial_interval_seconds")
		}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	return nil
}

// RequestTimeout is the overall budget for one inbound request.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// UpstreamTimeout is the budget for a single upstream call.
func (c Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.Upstream.TimeoutSeconds) * time.Second
}

// PollIntervals returns the initial and maximum poll intervals and the age
// after which a thread is no longer polled.
func (c Config) PollIntervals() (initial, max, disableAfter time.Duration) {
	return time.Duration(c.Poll.InitialIntervalSeconds) * time.Second,
		time.Duration(c.Poll.MaxIntervalSeconds) * time.Second,
		time.Duration(c.Poll.DisableAfterSeconds) * time.Second
}
