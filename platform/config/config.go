// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"profile_server/platform/validator"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// RateLimitConfig provides settings for the per-IP rate limiter.
type RateLimitConfig interface {
	GetRateLimitRPS() float64
	GetRateLimitBurst() int
}

// OAuthConfig provides settings for bearer credential verification.
type OAuthConfig interface {
	GetOAuthJWTSecret() string
	GetOAuthVerifyURL() string
	GetOAuthVerifyTimeout() time.Duration
}

// ServerCacheConfig provides the aggregation cache policy.
type ServerCacheConfig interface {
	GetServerCacheExpiresIn() time.Duration
	GetServerCacheGenerateTimeout() time.Duration
	GetServerCacheStaleFor() time.Duration
}

// UpstreamConfig provides settings for the backing identity services.
type UpstreamConfig interface {
	GetUpstreamURL() string
	GetUpstreamTimeout() time.Duration
	GetRoutesFile() string
}

// RedisConfig provides settings for the shared cache store.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetProfileChangesChannel() string
	IsRedisEnabled() bool
}

// ProfileConfig provides settings for the profile response.
type ProfileConfig interface {
	ServerCacheConfig
	GetEmitEmptyETag() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                        string        `validate:"required"`
	HTTPAddr                   string        `validate:"required"`
	CORSAllowAll               bool
	CORSOrigins                []string
	CORSAllowCreds             bool
	RateLimitRPS               float64       `validate:"gte=0"`
	RateLimitBurst             int           `validate:"gte=0"`
	OAuthJWTSecret             string
	OAuthVerifyURL             string        `validate:"omitempty,url"`
	OAuthVerifyTimeout         time.Duration `validate:"gt=0s"`
	ServerCacheExpiresIn       time.Duration `validate:"gt=0s"`
	ServerCacheGenerateTimeout time.Duration `validate:"gt=0s"`
	ServerCacheStaleFor        time.Duration `validate:"gte=0s"`
	UpstreamURL                string        `validate:"required,url"`
	UpstreamTimeout            time.Duration `validate:"gt=0s"`
	RoutesFile                 string
	RedisURL                   string
	RedisTLSInsecure           bool
	ProfileChangesChannel      string
	EmitEmptyETag              bool
}

// =============================================================================
// Interface Implementations
// =============================================================================

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// RateLimitConfig implementation
func (c *Config) GetRateLimitRPS() float64 { return c.RateLimitRPS }
func (c *Config) GetRateLimitBurst() int   { return c.RateLimitBurst }

// OAuthConfig implementation
func (c *Config) GetOAuthJWTSecret() string            { return c.OAuthJWTSecret }
func (c *Config) GetOAuthVerifyURL() string            { return c.OAuthVerifyURL }
func (c *Config) GetOAuthVerifyTimeout() time.Duration { return c.OAuthVerifyTimeout }

// ServerCacheConfig implementation
func (c *Config) GetServerCacheExpiresIn() time.Duration       { return c.ServerCacheExpiresIn }
func (c *Config) GetServerCacheGenerateTimeout() time.Duration { return c.ServerCacheGenerateTimeout }
func (c *Config) GetServerCacheStaleFor() time.Duration        { return c.ServerCacheStaleFor }

// UpstreamConfig implementation
func (c *Config) GetUpstreamURL() string            { return c.UpstreamURL }
func (c *Config) GetUpstreamTimeout() time.Duration { return c.UpstreamTimeout }
func (c *Config) GetRoutesFile() string             { return c.RoutesFile }

// RedisConfig implementation
func (c *Config) GetRedisURL() string              { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool        { return c.RedisTLSInsecure }
func (c *Config) GetProfileChangesChannel() string { return c.ProfileChangesChannel }
func (c *Config) IsRedisEnabled() bool             { return c.RedisURL != "" }

// ProfileConfig implementation
func (c *Config) GetEmitEmptyETag() bool { return c.EmitEmptyETag }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds and validates the configuration from the process
// environment without touching .env files.
func FromEnv() (*Config, error) {
	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3030"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	etagEmpty := strings.ToLower(strings.TrimSpace(getEnv("PROFILE_ETAG_EMPTY", "omit")))
	if etagEmpty != "omit" && etagEmpty != "emit" {
		return nil, fmt.Errorf("PROFILE_ETAG_EMPTY must be one of omit, emit")
	}

	cfg := &Config{
		Env:                        getEnv("APP_ENV", "development"),
		HTTPAddr:                   getEnv("HTTP_ADDR", ":1111"),
		CORSAllowAll:               corsAllowAll,
		CORSOrigins:                corsOrigins,
		CORSAllowCreds:             strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "false"), "true"),
		RateLimitRPS:               mustFloat(getEnv("RATE_LIMIT_RPS", "20")),
		RateLimitBurst:             mustInt(getEnv("RATE_LIMIT_BURST", "40")),
		OAuthJWTSecret:             getEnv("OAUTH_JWT_SECRET", ""),
		OAuthVerifyURL:             getEnv("OAUTH_VERIFY_URL", ""),
		OAuthVerifyTimeout:         mustDuration(getEnv("OAUTH_VERIFY_TIMEOUT", "5s")),
		ServerCacheExpiresIn:       mustDuration(getEnv("SERVER_CACHE_EXPIRES_IN", "1h")),
		ServerCacheGenerateTimeout: mustDuration(getEnv("SERVER_CACHE_GENERATE_TIMEOUT", "2s")),
		ServerCacheStaleFor:        mustDuration(getEnv("SERVER_CACHE_STALE_FOR", "0s")),
		UpstreamURL:                getEnv("PROFILE_UPSTREAM_URL", ""),
		UpstreamTimeout:            mustDuration(getEnv("PROFILE_UPSTREAM_TIMEOUT", "5s")),
		RoutesFile:                 getEnv("PROFILE_ROUTES_FILE", ""),
		RedisURL:                   getEnv("REDIS_URL", ""),
		RedisTLSInsecure:           strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		ProfileChangesChannel:      getEnv("PROFILE_CHANGES_CHANNEL", "profile:changes"),
		EmitEmptyETag:              etagEmpty == "emit",
	}

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if !cfg.CORSAllowAll {
		for _, origin := range cfg.CORSOrigins {
			if err := v.Var(origin, "http_url"); err != nil {
				return nil, fmt.Errorf("CORS_ORIGINS: invalid origin %q", origin)
			}
		}
	}
	if cfg.OAuthJWTSecret == "" && cfg.OAuthVerifyURL == "" {
		return nil, fmt.Errorf("OAUTH_JWT_SECRET or OAUTH_VERIFY_URL is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
