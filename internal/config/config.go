// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

// Package config loads Dikser configuration from defaults, a YAML file,
// the environment and command-line flags, in that order of precedence.
package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/samber/oops"

	"github.com/dikser/dikser/internal/auth"
)

// Config is the complete runtime configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server" json:"server,omitempty" jsonschema:"description=HTTP API server"`
	Metrics  MetricsConfig  `koanf:"metrics" json:"metrics,omitempty" jsonschema:"description=Metrics and health probe server"`
	Database DatabaseConfig `koanf:"database" json:"database,omitempty" jsonschema:"description=PostgreSQL connection"`
	Auth     AuthConfig     `koanf:"auth" json:"auth,omitempty" jsonschema:"description=Token signing and session lifetime"`
	Log      LogConfig      `koanf:"log" json:"log,omitempty" jsonschema:"description=Structured logging"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string   `koanf:"addr" json:"addr,omitempty" jsonschema:"description=Listen address (host:port)"`
	AllowedOrigins  []string `koanf:"allowed_origins" json:"allowed_origins,omitempty" jsonschema:"description=CORS origin globs such as https://*.example.com"`
	ShutdownTimeout string   `koanf:"shutdown_timeout" json:"shutdown_timeout,omitempty" jsonschema:"description=Graceful shutdown timeout (Go duration)"`
	LoginBurst      int      `koanf:"login_burst" json:"login_burst,omitempty" jsonschema:"minimum=0,description=Login attempts a client may make back to back (0 disables throttling)"`
	LoginRate       float64  `koanf:"login_rate" json:"login_rate,omitempty" jsonschema:"minimum=0,description=Login attempts per second refilled for each client"`
}

// MetricsConfig configures the observability server. An empty address
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty" jsonschema:"description=Listen address for /metrics and /healthz (empty disables)"`
}

// DatabaseConfig configures PostgreSQL access.
type DatabaseConfig struct {
	URL        string `koanf:"url" json:"url,omitempty" jsonschema:"description=PostgreSQL connection URL"`
	MaxRetries uint64 `koanf:"max_retries" json:"max_retries,omitempty" jsonschema:"description=Connection attempts at startup before giving up"`
}

// AuthConfig configures token issuance.
type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret" json:"jwt_secret,omitempty" jsonschema:"description=HMAC signing key (at least 32 bytes)"`
	TokenTTL  string `koanf:"token_ttl" json:"token_ttl,omitempty" jsonschema:"description=Token and session lifetime (Go duration)"`
	Issuer    string `koanf:"issuer" json:"issuer,omitempty" jsonschema:"description=Token issuer claim"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// Default values.
const (
	DefaultServerAddr      = "127.0.0.1:8080"
	DefaultMetricsAddr     = "127.0.0.1:9100"
	DefaultShutdownTimeout = "10s"
	DefaultTokenTTL        = "24h"
	DefaultIssuer          = "dikser"
	DefaultLogFormat       = "json"
	DefaultLogLevel        = "info"
	DefaultMaxRetries      = 8
	DefaultLoginBurst      = 10
	DefaultLoginRate       = 0.2
)

// Defaults returns the configuration used when nothing else is set.
func Defaults() map[string]any {
	return map[string]any{
		"server.addr":             DefaultServerAddr,
		"server.shutdown_timeout": DefaultShutdownTimeout,
		"server.login_burst":      DefaultLoginBurst,
		"server.login_rate":       DefaultLoginRate,
		"metrics.addr":            DefaultMetricsAddr,
		"database.max_retries":    DefaultMaxRetries,
		"auth.token_ttl":          DefaultTokenTTL,
		"auth.issuer":             DefaultIssuer,
		"log.format":              DefaultLogFormat,
		"log.level":               DefaultLogLevel,
	}
}

// Validate checks value formats. Presence of secrets and the database URL is
// checked by RequireServe and RequireDatabase.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return oops.Code("CONFIG_INVALID").With("key", "server.addr").Errorf("server.addr is required")
	}
	if _, err := parseDuration("server.shutdown_timeout", c.Server.ShutdownTimeout); err != nil {
		return err
	}
	if _, err := parseDuration("auth.token_ttl", c.Auth.TokenTTL); err != nil {
		return err
	}
	if c.Server.LoginBurst < 0 {
		return oops.Code("CONFIG_INVALID").
			With("key", "server.login_burst").
			Errorf("server.login_burst must not be negative, got %d", c.Server.LoginBurst)
	}
	if c.Server.LoginBurst > 0 && c.Server.LoginRate <= 0 {
		return oops.Code("CONFIG_INVALID").
			With("key", "server.login_rate").
			Errorf("server.login_rate must be positive when throttling is enabled, got %g", c.Server.LoginRate)
	}
	if !slices.Contains([]string{"json", "text"}, c.Log.Format) {
		return oops.Code("CONFIG_INVALID").
			With("key", "log.format").
			Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		return oops.Code("CONFIG_INVALID").
			With("key", "log.level").
			Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < auth.MinSigningKeyLength {
		return oops.Code("CONFIG_INVALID").
			With("key", "auth.jwt_secret").
			Errorf("auth.jwt_secret must be at least %d bytes", auth.MinSigningKeyLength)
	}
	return nil
}

// RequireDatabase fails when no database URL is configured.
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").
			With("key", "database.url").
			Errorf("database.url is required (or set DATABASE_URL)")
	}
	return nil
}

// RequireServe checks everything the API server needs.
func (c *Config) RequireServe() error {
	if err := c.RequireDatabase(); err != nil {
		return err
	}
	if c.Auth.JWTSecret == "" {
		return oops.Code("CONFIG_INVALID").
			With("key", "auth.jwt_secret").
			Errorf("auth.jwt_secret is required")
	}
	return nil
}

// TokenTTL returns the parsed token lifetime.
func (c *Config) TokenTTL() time.Duration {
	d, _ := parseDuration("auth.token_ttl", c.Auth.TokenTTL)
	return d
}

// ShutdownTimeout returns the parsed graceful shutdown timeout.
func (c *Config) ShutdownTimeout() time.Duration {
	d, _ := parseDuration("server.shutdown_timeout", c.Server.ShutdownTimeout)
	return d
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, oops.Code("CONFIG_INVALID").With("key", key).Wrap(fmt.Errorf("%s: %w", key, err))
	}
	if d <= 0 {
		return 0, oops.Code("CONFIG_INVALID").With("key", key).Errorf("%s must be positive, got %s", key, value)
	}
	return d, nil
}
