// Package config loads application configuration from environment variables,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/farmtech/livestock-auth/internal/errs"
)

// MinSecretBytes mirrors the token service requirement so a short secret is
// reported before anything is opened.
const MinSecretBytes = 32

// Revocation backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable.
type Config struct {
	Env  string // APP_ENV (dev, test, prod)
	Port string // APP_PORT

	DBUser string // DB_USER
	DBPass string // DB_PASS (empty allowed)
	DBHost string // DB_HOST
	DBPort string // DB_PORT
	DBName string // DB_NAME

	JWTSecret  string        // JWT_SECRET, at least 32 bytes
	AccessTTL  time.Duration // ACCESS_TOKEN_TTL_MIN
	RefreshTTL time.Duration // REFRESH_TOKEN_TTL_DAYS

	BcryptCost      int // BCRYPT_COST
	HashConcurrency int // HASH_CONCURRENCY, 0 = GOMAXPROCS

	RevocationBackend string // REVOCATION_BACKEND: memory | redis
	LogLevel          string // LOG_LEVEL
	AMQPURL           string // AMQP_URL, empty disables events
	AuditDir          string // AUDIT_LOG_DIR

	RateLimit RateLimitConfig
	Redis     RedisConfig
}

// LoadDotEnv seeds the environment from the given files (default ".env").
// Variables already set win. A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads configuration values from environment variables. The first
// missing or invalid required value is returned as a *errs.ConfigError.
func Load() (Config, error) {
	var r reader
	cfg := Config{
		Env:  envStr("APP_ENV", "dev"),
		Port: envStr("APP_PORT", "8080"),

		DBUser: r.must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: r.must("DB_HOST"),
		DBPort: r.must("DB_PORT"),
		DBName: r.must("DB_NAME"),

		JWTSecret:  r.must("JWT_SECRET"),
		AccessTTL:  time.Duration(r.mustPositiveInt("ACCESS_TOKEN_TTL_MIN")) * time.Minute,
		RefreshTTL: time.Duration(r.mustPositiveInt("REFRESH_TOKEN_TTL_DAYS")) * 24 * time.Hour,

		BcryptCost:      envInt("BCRYPT_COST", 10),
		HashConcurrency: envInt("HASH_CONCURRENCY", 0),

		RevocationBackend: strings.ToLower(envStr("REVOCATION_BACKEND", BackendMemory)),
		LogLevel:          envStr("LOG_LEVEL", "info"),
		AMQPURL:           firstEnv("AMQP_URL", "RABBITMQ_URL"),
		AuditDir:          envStr("AUDIT_LOG_DIR", "logs"),

		RateLimit: LoadRateLimitConfig(),
		Redis:     LoadRedisConfig(),
	}
	if r.err != nil {
		return Config{}, r.err
	}
	if len(cfg.JWTSecret) < MinSecretBytes {
		return Config{}, &errs.ConfigError{Key: "JWT_SECRET", Reason: fmt.Sprintf("must be at least %d bytes", MinSecretBytes)}
	}
	switch cfg.RevocationBackend {
	case BackendMemory, BackendRedis:
	default:
		return Config{}, &errs.ConfigError{Key: "REVOCATION_BACKEND", Reason: fmt.Sprintf("unknown backend %q", cfg.RevocationBackend)}
	}
	return cfg, nil
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "prod") || strings.EqualFold(c.Env, "production")
}

// reader keeps the first error so Load can read every key in one pass.
type reader struct{ err error }

// must retrieves a required environment variable.
func (r *reader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if (!ok || strings.TrimSpace(v) == "") && r.err == nil {
		r.err = &errs.ConfigError{Key: key, Reason: "is required"}
	}
	return v
}

// mustPositiveInt is like must but converts the value to an int > 0.
func (r *reader) mustPositiveInt(key string) int {
	s := r.must(key)
	if r.err != nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		r.err = &errs.ConfigError{Key: key, Reason: fmt.Sprintf("must be a positive integer, got %q", s)}
		return 0
	}
	return n
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
