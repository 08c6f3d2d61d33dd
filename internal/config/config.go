// Copyright 2025 The Uplink Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the daemon configuration from YAML plus environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/uplinkhq/uplink/internal/transport"
)

// ErrInvalidConfig is returned when configuration validation fails.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the complete daemon configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Storage   StorageConfig   `yaml:"storage"`
	Transport TransportConfig `yaml:"transport"`
	Refdata   RefdataConfig   `yaml:"refdata"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Addr is the listen address.
	// Environment: UPLINK_ADDR
	// Default: :8080
	Addr string `yaml:"addr,omitempty"`

	// ReadTimeout bounds reading a full request. Default: 30s.
	ReadTimeout time.Duration `yaml:"read_timeout,omitempty"`

	// WriteTimeout bounds writing a full response. Default: 120s; it must
	// exceed the longest allowed upstream invocation.
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty"`

	// ShutdownTimeout bounds graceful shutdown. Default: 15s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of trace, debug, info, warn, error. Default: info.
	Level string `yaml:"level,omitempty"`

	// Format is json or text. Default: json.
	Format string `yaml:"format,omitempty"`
}

// CatalogConfig locates the catalog definition file.
type CatalogConfig struct {
	// Path is the YAML catalog file.
	// Environment: UPLINK_CATALOG
	Path string `yaml:"path"`
}

// StorageConfig configures invocation log persistence.
type StorageConfig struct {
	// InvocationDB is the SQLite database path for invocation records.
	// Environment: UPLINK_DB
	// Default: uplink.db. Empty string with Disabled=false still gets the
	// default; set Disabled to turn persistence off.
	InvocationDB string `yaml:"invocation_db,omitempty"`

	// Disabled turns off invocation persistence entirely.
	Disabled bool `yaml:"disabled,omitempty"`
}

// TransportConfig tunes the upstream HTTP executor.
type TransportConfig struct {
	Retry     transport.RetryConfig     `yaml:"retry"`
	Breaker   transport.BreakerConfig   `yaml:"breaker"`
	RateLimit transport.RateLimitConfig `yaml:"rate_limit"`

	// DefaultTimeout bounds each upstream attempt when the caller does not
	// pass its own timeout. Default: 30s.
	DefaultTimeout time.Duration `yaml:"default_timeout,omitempty"`
}

// RefdataConfig tunes the reference data cache.
type RefdataConfig struct {
	// TTL is how long cached reference datasets stay fresh. Default: 5m.
	TTL time.Duration `yaml:"ttl,omitempty"`
}

// Default returns a Config with all defaults applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Storage: StorageConfig{
			InvocationDB: "uplink.db",
		},
		Transport: TransportConfig{
			Retry:          *transport.DefaultRetryConfig(),
			DefaultTimeout: 30 * time.Second,
		},
		Refdata: RefdataConfig{
			TTL: 5 * time.Minute,
		},
	}
}

// Load reads the YAML file at path (when non-empty), applies environment
// overrides, fills defaults, and validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if addr := os.Getenv("UPLINK_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if path := os.Getenv("UPLINK_CATALOG"); path != "" {
		c.Catalog.Path = path
	}
	if db := os.Getenv("UPLINK_DB"); db != "" {
		c.Storage.InvocationDB = db
	}
}

// fillDefaults repairs zero values a partial YAML file may have left behind.
func (c *Config) fillDefaults() {
	def := Default()
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = def.Server.ReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = def.Server.WriteTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
	if c.Storage.InvocationDB == "" {
		c.Storage.InvocationDB = def.Storage.InvocationDB
	}
	if c.Transport.Retry.MaxAttempts == 0 {
		c.Transport.Retry = def.Transport.Retry
	}
	if c.Transport.DefaultTimeout == 0 {
		c.Transport.DefaultTimeout = def.Transport.DefaultTimeout
	}
	if c.Refdata.TTL == 0 {
		c.Refdata.TTL = def.Refdata.TTL
	}
}

// Validate checks the configuration for invalid combinations.
func (c *Config) Validate() error {
	if err := c.Transport.Retry.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("%w: log format must be json or text, got %q", ErrInvalidConfig, c.Log.Format)
	}
	if c.Transport.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: requests_per_second cannot be negative", ErrInvalidConfig)
	}
	return nil
}
