package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Auth        AuthConfig
	Quota       QuotaConfig
	Cache       CacheConfig
	AuditExport AuditExportConfig
	RateLimit   RateLimitConfig
	Signup      SignupConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
}

// QuotaConfig controls what the quota enforcer does for tenants without an
// active subscription. "deny" treats every limit as zero.
type QuotaConfig struct {
	Fallback       string // "deny" or "trial"
	TrialUserLimit int
	TrialStorageGB int
}

type CacheConfig struct {
	Backend string // "none", "lru" or "redis"
	Size    int
	TTL     time.Duration
}

type AuditExportConfig struct {
	URL    string // empty disables export
	Secret string
}

// SignupConfig names the plan public signups are subscribed to. Empty leaves
// new tenants on the quota fallback.
type SignupConfig struct {
	Plan string
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

func Load() (*Config, error) {
	var errs *multierror.Error

	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("invalid SERVER_PORT: %w", err))
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("invalid DB_MAX_CONNS: %w", err))
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("invalid DB_MIN_CONNS: %w", err))
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("invalid REDIS_DB: %w", err))
	}

	trialUsers, err := getEnvInt("TRIAL_USER_LIMIT", 3)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("invalid TRIAL_USER_LIMIT: %w", err))
	}

	trialStorage, err := getEnvInt("TRIAL_STORAGE_GB", 1)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("invalid TRIAL_STORAGE_GB: %w", err))
	}

	cacheSize, err := getEnvInt("PERM_CACHE_SIZE", 10000)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("invalid PERM_CACHE_SIZE: %w", err))
	}

	cacheTTL, err := getEnvDuration("PERM_CACHE_TTL", 10*time.Minute)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("invalid PERM_CACHE_TTL: %w", err))
	}

	rps, err := getEnvFloat("RATE_LIMIT_RPS", 100)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err))
	}

	burst, err := getEnvInt("RATE_LIMIT_BURST", 200)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err))
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			MaxConns: maxConns,
			MinConns: minConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Quota: QuotaConfig{
			Fallback:       getEnv("QUOTA_FALLBACK", "deny"),
			TrialUserLimit: trialUsers,
			TrialStorageGB: trialStorage,
		},
		Cache: CacheConfig{
			Backend: getEnv("PERM_CACHE", "lru"),
			Size:    cacheSize,
			TTL:     cacheTTL,
		},
		AuditExport: AuditExportConfig{
			URL:    getEnv("AUDIT_EXPORT_URL", ""),
			Secret: getEnv("AUDIT_EXPORT_SECRET", ""),
		},
		RateLimit: RateLimitConfig{
			RPS:   rps,
			Burst: burst,
		},
		Signup: SignupConfig{
			Plan: getEnv("SIGNUP_PLAN", ""),
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var errs *multierror.Error
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.AuditExport.URL != "" && c.AuditExport.Secret == "" {
		missing = append(missing, "AUDIT_EXPORT_SECRET")
	}
	if len(missing) > 0 {
		errs = multierror.Append(errs, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", ")))
	}

	switch c.Quota.Fallback {
	case "deny", "trial":
	default:
		errs = multierror.Append(errs, fmt.Errorf("QUOTA_FALLBACK must be deny or trial, got %q", c.Quota.Fallback))
	}
	if c.Quota.TrialUserLimit < 0 || c.Quota.TrialStorageGB < 0 {
		errs = multierror.Append(errs, fmt.Errorf("trial limits must be >= 0"))
	}
	if c.Quota.TrialUserLimit > math.MaxInt32 || c.Quota.TrialStorageGB > math.MaxInt32 {
		errs = multierror.Append(errs, fmt.Errorf("trial limits must fit in 32 bits"))
	}

	switch c.Cache.Backend {
	case "none", "lru", "redis":
	default:
		errs = multierror.Append(errs, fmt.Errorf("PERM_CACHE must be none, lru or redis, got %q", c.Cache.Backend))
	}

	return errs.ErrorOrNil()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}
