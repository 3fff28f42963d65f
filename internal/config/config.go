// Package config loads runtime configuration from file and environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"domotica-bridge/internal/domotica"
)

// Config is the full runtime configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Domotica DomoticaConfig `mapstructure:"domotica"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Events   EventsConfig   `mapstructure:"events"`
	DB       DBConfig       `mapstructure:"db"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Probe    ProbeConfig    `mapstructure:"probe"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port            int `mapstructure:"port"`
	RequestTimeoutS int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig controls API key authentication on the HTTP surface.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// DomoticaConfig locates the console and its account.
type DomoticaConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	StepTimeoutS int    `mapstructure:"step_timeout_seconds"`
	Headless     bool   `mapstructure:"headless"`
}

// RetryConfig bounds transient retries on DOM steps.
type RetryConfig struct {
	MaxAttempts      int `mapstructure:"max_attempts"`
	BackoffInitialMS int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMS     int `mapstructure:"backoff_max_ms"`
}

// SyncConfig controls the poll loop.
type SyncConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	IntervalS int  `mapstructure:"interval_seconds"`
}

// EventsConfig sizes the hub buffers.
type EventsConfig struct {
	Buffer           int `mapstructure:"buffer"`
	SubscriberBuffer int `mapstructure:"subscriber_buffer"`
}

// DBConfig enables the Postgres event journal.
type DBConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// RabbitMQConfig enables the queue intake.
type RabbitMQConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
	Queue    string `mapstructure:"queue"`
}

// ProbeConfig enables the startup reachability probe.
type ProbeConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig selects the log encoder.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load reads configuration from the optional file path and DOMOTICA_*
// environment variables. Environment wins over the file.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DOMOTICA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
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
	v.SetDefault("server.request_timeout_seconds", 120)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("domotica.step_timeout_seconds", 15)
	v.SetDefault("domotica.headless", true)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.backoff_initial_ms", 250)
	v.SetDefault("retry.backoff_max_ms", 5000)
	v.SetDefault("sync.enabled", true)
	v.SetDefault("sync.interval_seconds", 30)
	v.SetDefault("events.buffer", 256)
	v.SetDefault("events.subscriber_buffer", 16)
	v.SetDefault("db.enabled", false)
	v.SetDefault("rabbitmq.enabled", false)
	v.SetDefault("rabbitmq.exchange", "domotica")
	v.SetDefault("rabbitmq.queue", "domotica.tasks")
	v.SetDefault("probe.enabled", true)
	v.SetDefault("logging.development", false)
}

// Validate checks the fields no default can supply.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Domotica.BaseURL == "" {
		return fmt.Errorf("domotica.base_url is required")
	}
	if c.Domotica.Username == "" || c.Domotica.Password == "" {
		return fmt.Errorf("domotica.username and domotica.password are required")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required when auth.enabled")
	}
	if c.DB.Enabled && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required when db.enabled")
	}
	if c.RabbitMQ.Enabled && c.RabbitMQ.URL == "" {
		return fmt.Errorf("rabbitmq.url is required when rabbitmq.enabled")
	}
	if c.Sync.Enabled && c.Sync.IntervalS <= 0 {
		return fmt.Errorf("sync.interval_seconds must be > 0")
	}
	return nil
}

// Credentials builds the session credentials from the config.
func (c Config) Credentials() domotica.Credentials {
	return domotica.Credentials{
		Usuario:     c.Domotica.Username,
		Password:    c.Domotica.Password,
		BaseURL:     c.Domotica.BaseURL,
		StepTimeout: time.Duration(c.Domotica.StepTimeoutS) * time.Second,
	}
}

// RetryPolicy builds the DOM retry policy from the config.
func (c Config) RetryPolicy() domotica.RetryPolicy {
	return domotica.RetryPolicy{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   time.Duration(c.Retry.BackoffInitialMS) * time.Millisecond,
		MaxDelay:    time.Duration(c.Retry.BackoffMaxMS) * time.Millisecond,
	}
}

// SyncInterval returns the poll period.
func (c Config) SyncInterval() time.Duration {
	return time.Duration(c.Sync.IntervalS) * time.Second
}
