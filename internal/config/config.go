// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

// Package config loads the service configuration.
//
// Sources are layered, later ones overriding earlier ones:
//
//  1. built-in defaults
//  2. a YAML file (--config)
//  3. environment variables prefixed VORO_, with "__" separating levels
//     (VORO_CRYPTO__SECRET sets crypto.secret)
//  4. command-line flags
package config

import (
	"net/url"
	"slices"
	"time"

	"github.com/samber/oops"

	"github.com/voro/voro/internal/auth"
	"github.com/voro/voro/internal/logging"
	"github.com/voro/voro/internal/ratelimit"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Rate limit store kinds.
const (
	RateStoreMemory = "memory"
	RateStoreBucket = "bucket"
	RateStoreRedis  = "redis"
)

const redacted = "[REDACTED]"

// Config is the complete service configuration.
type Config struct {
	Log        LogConfig        `koanf:"log" yaml:"log"`
	HTTP       HTTPConfig       `koanf:"http" yaml:"http"`
	Metrics    MetricsConfig    `koanf:"metrics" yaml:"metrics"`
	Storage    StorageConfig    `koanf:"storage" yaml:"storage"`
	Database   DatabaseConfig   `koanf:"database" yaml:"database"`
	Crypto     CryptoConfig     `koanf:"crypto" yaml:"crypto"`
	Token      TokenConfig      `koanf:"token" yaml:"token"`
	Password   PasswordConfig   `koanf:"password" yaml:"password"`
	RateLimit  RateLimitConfig  `koanf:"ratelimit" yaml:"ratelimit"`
	Revocation RevocationConfig `koanf:"revocation" yaml:"revocation"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Format string `koanf:"format" yaml:"format"`
	Level  string `koanf:"level" yaml:"level"`
}

// HTTPConfig controls the API listener.
type HTTPConfig struct {
	Addr              string        `koanf:"addr" yaml:"addr"`
	RequestTimeout    time.Duration `koanf:"request_timeout" yaml:"request_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`
	BodyLimit         int64         `koanf:"body_limit" yaml:"body_limit"`
	// TrustProxy takes the client IP from the first X-Forwarded-For hop.
	TrustProxy bool `koanf:"trust_proxy" yaml:"trust_proxy"`
}

// MetricsConfig controls the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" yaml:"addr"`
}

// StorageConfig selects where users and revocations live.
type StorageConfig struct {
	Driver string `koanf:"driver" yaml:"driver"`
}

// DatabaseConfig is used when Storage.Driver is postgres.
type DatabaseConfig struct {
	URL            string        `koanf:"url" yaml:"url"`
	MaxConns       int32         `koanf:"max_conns" yaml:"max_conns"`
	ConnectRetries uint64        `koanf:"connect_retries" yaml:"connect_retries"`
	ConnectBackoff time.Duration `koanf:"connect_backoff" yaml:"connect_backoff"`
	MaxBackoff     time.Duration `koanf:"max_backoff" yaml:"max_backoff"`
	AutoMigrate    bool          `koanf:"auto_migrate" yaml:"auto_migrate"`
}

// CryptoConfig holds the token key material.
type CryptoConfig struct {
	Secret string `koanf:"secret" yaml:"secret"`
	Salt   string `koanf:"salt" yaml:"salt"`
}

// TokenConfig controls session token lifetime and validation.
type TokenConfig struct {
	TTL             time.Duration `koanf:"ttl" yaml:"ttl"`
	Version         int           `koanf:"version" yaml:"version"`
	BindFingerprint bool          `koanf:"bind_fingerprint" yaml:"bind_fingerprint"`
}

// PasswordConfig controls hashing and the strength gate.
type PasswordConfig struct {
	Algorithm     string              `koanf:"algorithm" yaml:"algorithm"`
	MinScore      int                 `koanf:"min_score" yaml:"min_score"`
	MaxConcurrent int64               `koanf:"max_concurrent" yaml:"max_concurrent"`
	BcryptCost    int                 `koanf:"bcrypt_cost" yaml:"bcrypt_cost"`
	Argon2id      auth.Argon2idParams `koanf:"argon2id" yaml:"argon2id"`
}

// Budget is a limit per window.
type Budget struct {
	Limit  int           `koanf:"limit" yaml:"limit"`
	Window time.Duration `koanf:"window" yaml:"window"`
}

// RedisConfig is used when RateLimit.Store is redis.
type RedisConfig struct {
	Addr     string `koanf:"addr" yaml:"addr"`
	Password string `koanf:"password" yaml:"password"`
	DB       int    `koanf:"db" yaml:"db"`
	Prefix   string `koanf:"prefix" yaml:"prefix"`
}

// RateLimitConfig controls the request budgets.
type RateLimitConfig struct {
	Store           string        `koanf:"store" yaml:"store"`
	CleanupInterval time.Duration `koanf:"cleanup_interval" yaml:"cleanup_interval"`
	Global          Budget        `koanf:"global" yaml:"global"`
	Register        Budget        `koanf:"register" yaml:"register"`
	Redis           RedisConfig   `koanf:"redis" yaml:"redis"`
}

// RevocationConfig controls pruning of expired revocations.
type RevocationConfig struct {
	// PruneInterval of zero disables the background pruner.
	PruneInterval time.Duration `koanf:"prune_interval" yaml:"prune_interval"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: LogConfig{Format: "json", Level: "info"},
		HTTP: HTTPConfig{
			Addr:              ":8080",
			RequestTimeout:    10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			BodyLimit:         1 << 20,
		},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
		Storage: StorageConfig{Driver: StoragePostgres},
		Database: DatabaseConfig{
			MaxConns:       10,
			ConnectRetries: 5,
			ConnectBackoff: 500 * time.Millisecond,
			MaxBackoff:     10 * time.Second,
		},
		Token: TokenConfig{
			TTL:             auth.DefaultTokenTTL,
			Version:         auth.DefaultTokenVersion,
			BindFingerprint: true,
		},
		Password: PasswordConfig{
			Algorithm:  string(auth.AlgorithmArgon2id),
			MinScore:   auth.DefaultStrengthScore,
			BcryptCost: auth.DefaultBcryptCost,
			Argon2id:   auth.DefaultArgon2idParams(),
		},
		RateLimit: RateLimitConfig{
			Store:           RateStoreMemory,
			CleanupInterval: ratelimit.DefaultCleanupInterval,
			Global:          Budget{Limit: ratelimit.DefaultGlobalLimit, Window: ratelimit.DefaultGlobalWindow},
			Register:        Budget{Limit: ratelimit.DefaultRegisterLimit, Window: ratelimit.DefaultRegisterWindow},
			Redis:           RedisConfig{Addr: "localhost:6379", Prefix: ratelimit.DefaultRedisPrefix},
		},
		Revocation: RevocationConfig{PruneInterval: time.Hour},
	}
}

// Validate checks the configuration is complete and consistent.
func (c *Config) Validate() error {
	if !slices.Contains([]string{"json", "text"}, c.Log.Format) {
		return invalid("log.format", c.Log.Format, "must be 'json' or 'text'")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", c.Log.Level, "must be debug, info, warn or error")
	}
	if c.HTTP.Addr == "" {
		return invalid("http.addr", c.HTTP.Addr, "is required")
	}
	if c.HTTP.RequestTimeout <= 0 {
		return invalid("http.request_timeout", c.HTTP.RequestTimeout.String(), "must be positive")
	}
	if c.HTTP.BodyLimit <= 0 {
		return invalid("http.body_limit", c.HTTP.BodyLimit, "must be positive")
	}

	switch c.Storage.Driver {
	case StoragePostgres:
		if c.Database.URL == "" {
			return invalid("database.url", "", "is required for the postgres driver")
		}
	case StorageMemory:
	default:
		return invalid("storage.driver", c.Storage.Driver, "must be 'postgres' or 'memory'")
	}

	if c.Crypto.Secret == "" {
		return invalid("crypto.secret", "", "is required")
	}
	if c.Crypto.Salt == "" {
		return invalid("crypto.salt", "", "is required")
	}

	if c.Token.TTL <= 0 {
		return invalid("token.ttl", c.Token.TTL.String(), "must be positive")
	}
	if c.Token.Version < 1 {
		return invalid("token.version", c.Token.Version, "must be at least 1")
	}

	switch auth.Algorithm(c.Password.Algorithm) {
	case auth.AlgorithmArgon2id, auth.AlgorithmBcrypt:
	default:
		return invalid("password.algorithm", c.Password.Algorithm, "must be 'argon2id' or 'bcrypt'")
	}
	if c.Password.MinScore < auth.MinStrengthScore || c.Password.MinScore > auth.MaxStrengthScore {
		return invalid("password.min_score", c.Password.MinScore, "must be between 0 and 4")
	}

	switch c.RateLimit.Store {
	case RateStoreMemory, RateStoreBucket:
	case RateStoreRedis:
		if c.RateLimit.Redis.Addr == "" {
			return invalid("ratelimit.redis.addr", "", "is required for the redis store")
		}
	default:
		return invalid("ratelimit.store", c.RateLimit.Store, "must be 'memory', 'bucket' or 'redis'")
	}
	if err := validateBudget("ratelimit.global", c.RateLimit.Global); err != nil {
		return err
	}
	if err := validateBudget("ratelimit.register", c.RateLimit.Register); err != nil {
		return err
	}

	if c.Revocation.PruneInterval < 0 {
		return invalid("revocation.prune_interval", c.Revocation.PruneInterval.String(), "cannot be negative")
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	out := *c
	out.redact()
	return out
}

func (c *Config) redact() {
	if c.Crypto.Secret != "" {
		c.Crypto.Secret = redacted
	}
	if c.Crypto.Salt != "" {
		c.Crypto.Salt = redacted
	}
	if c.RateLimit.Redis.Password != "" {
		c.RateLimit.Redis.Password = redacted
	}
	if c.Database.URL != "" {
		if u, err := url.Parse(c.Database.URL); err == nil {
			c.Database.URL = u.Redacted()
		} else {
			c.Database.URL = redacted
		}
	}
}

// GlobalPolicy is the budget applied ahead of every route.
func (c *Config) GlobalPolicy() ratelimit.Policy {
	return ratelimit.Policy{Route: ratelimit.RouteGlobal, Limit: c.RateLimit.Global.Limit, Window: c.RateLimit.Global.Window}
}

// RegisterPolicy is the budget for account creation.
func (c *Config) RegisterPolicy() ratelimit.Policy {
	return ratelimit.Policy{Route: ratelimit.RouteRegister, Limit: c.RateLimit.Register.Limit, Window: c.RateLimit.Register.Window}
}

// CredentialConfig converts the password section.
func (c *Config) CredentialConfig() auth.CredentialConfig {
	return auth.CredentialConfig{
		Algorithm:     auth.Algorithm(c.Password.Algorithm),
		Argon2id:      c.Password.Argon2id,
		BcryptCost:    c.Password.BcryptCost,
		MinScore:      c.Password.MinScore,
		MaxConcurrent: c.Password.MaxConcurrent,
	}
}

// TokenConfig converts the token section.
func (c *Config) TokenConfig() auth.TokenConfig {
	return auth.TokenConfig{
		TTL:             c.Token.TTL,
		Version:         c.Token.Version,
		BindFingerprint: c.Token.BindFingerprint,
	}
}

func validateBudget(key string, b Budget) error {
	if b.Limit < 1 {
		return invalid(key+".limit", b.Limit, "must be at least 1")
	}
	if b.Window <= 0 {
		return invalid(key+".window", b.Window.String(), "must be positive")
	}
	return nil
}

func invalid(key string, value any, msg string) error {
	return oops.Code("CONFIG_INVALID").
		With("key", key).
		With("value", value).
		Errorf("%s %s", key, msg)
}
