// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

// Package config loads Fableforge configuration from defaults, an optional
// YAML file, and command-line flags, in increasing order of precedence.
package config

import (
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the full Fableforge configuration.
type Config struct {
	Log     LogConfig     `koanf:"log"`
	DB      DBConfig      `koanf:"db"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// LogConfig configures the slog setup.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// DBConfig configures the PostgreSQL connection.
type DBConfig struct {
	URL         string        `koanf:"url"`
	MaxAttempts int           `koanf:"max_attempts"`
	PingTimeout time.Duration `koanf:"ping_timeout"`
}

// MetricsConfig configures the observability HTTP server.
type MetricsConfig struct {
	// Addr is the metrics/health listen address. Empty disables the server.
	Addr string `koanf:"addr"`
}

// Default returns the configuration used when no file or flag overrides it.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		DB: DBConfig{
			MaxAttempts: 5,
			PingTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9100",
		},
	}
}

// flagKeys maps command-line flag names to config keys. Flags not listed
// here (such as --config itself) never reach the config tree.
var flagKeys = map[string]string{
	"log-level":       "log.level",
	"log-format":      "log.format",
	"db-url":          "db.url",
	"db-max-attempts": "db.max_attempts",
	"db-ping-timeout": "db.ping_timeout",
	"metrics-addr":    "metrics.addr",
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then any flags the user explicitly set.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.
				Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrapf(err, "failed to load config file")
		}
	}

	if flags != nil {
		// Only flags the user actually set override the file; flag
		// defaults stay out of the tree so Default() wins for them.
		provider := posflag.ProviderWithValue(flags, ".", k, func(key, value string) (string, any) {
			mapped, ok := flagKeys[key]
			if !ok || !flags.Changed(key) {
				return "", nil
			}
			return mapped, value
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").Wrapf(err, "failed to load flags")
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrapf(err, "failed to unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Log.Format {
	case "json", "text":
	default:
		return oops.
			Code("CONFIG_INVALID").
			With("log_format", c.Log.Format).
			Errorf("log format must be 'json' or 'text'")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return oops.
			Code("CONFIG_INVALID").
			With("log_level", c.Log.Level).
			Errorf("log level must be one of debug, info, warn, error")
	}

	if c.DB.MaxAttempts < 1 {
		return oops.
			Code("CONFIG_INVALID").
			With("max_attempts", c.DB.MaxAttempts).
			Errorf("db max_attempts must be at least 1")
	}

	return nil
}

// RegisterFlags adds the config override flags to a flag set. Flag defaults
// mirror Default() for help output but are only applied when set.
func RegisterFlags(flags *pflag.FlagSet) {
	def := Default()
	flags.String("log-level", def.Log.Level, "log level (debug, info, warn, error)")
	flags.String("log-format", def.Log.Format, "log format (json or text)")
	flags.String("db-url", "", "PostgreSQL connection URL")
	flags.Int("db-max-attempts", def.DB.MaxAttempts, "connection attempts before giving up")
	flags.Duration("db-ping-timeout", def.DB.PingTimeout, "per-attempt ping timeout")
	flags.String("metrics-addr", def.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
}
