package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App        AppConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Auth       AuthConfig
	Revocation RevocationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr leaves the
// revocation store unconfigured.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
	OpTimeout   time.Duration
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level       string
	Development bool
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret         string
	Issuer            string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	BcryptCost        int
	RevokeAllOnReplay bool
}

// RevocationConfig tunes the revocation store.
type RevocationConfig struct {
	KeyPrefix       string
	MinTTL          time.Duration
	ConnectAttempts int
	BackoffBase     time.Duration
	BackoffMax      time.Duration
	FailClosed      bool
}

// ErrMissingSecret is returned when no signing secret is configured.
var ErrMissingSecret = errors.New("AUTH_JWT_SECRET environment variable is required")

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	accessTTL, err := getEnvAsDuration("AUTH_ACCESS_TOKEN_TTL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	refreshTTL, err := getEnvAsDuration("AUTH_REFRESH_TOKEN_TTL", 30*24*time.Hour)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "event-admin"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:        os.Getenv("REDIS_ADDR"),
			Password:    os.Getenv("REDIS_PASSWORD"),
			DB:          redisDB,
			DialTimeout: mustDuration("REDIS_DIAL_TIMEOUT", 2*time.Second),
			OpTimeout:   mustDuration("REDIS_OP_TIMEOUT", 500*time.Millisecond),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:         os.Getenv("AUTH_JWT_SECRET"),
			Issuer:            getEnv("AUTH_ISSUER", "event-admin"),
			AccessTokenTTL:    accessTTL,
			RefreshTokenTTL:   refreshTTL,
			BcryptCost:        getEnvAsInt("AUTH_BCRYPT_COST", 12),
			RevokeAllOnReplay: getEnvAsBool("AUTH_REVOKE_ALL_ON_REPLAY", false),
		},
		Revocation: RevocationConfig{
			KeyPrefix:       getEnv("REVOCATION_KEY_PREFIX", "auth:revoked:"),
			MinTTL:          mustDuration("REVOCATION_MIN_TTL", time.Hour),
			ConnectAttempts: getEnvAsInt("REVOCATION_CONNECT_ATTEMPTS", 5),
			BackoffBase:     mustDuration("REVOCATION_BACKOFF_BASE", 200*time.Millisecond),
			BackoffMax:      mustDuration("REVOCATION_BACKOFF_MAX", 2*time.Second),
			FailClosed:      getEnvAsBool("REVOCATION_FAIL_CLOSED", false),
		},
	}

	cfg.Logger.Development = cfg.App.IsDevelopment()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that must hold before the service starts.
func (c *Config) Validate() error {
	if err := ValidateSecret(c.Auth.JWTSecret, c.App.IsDevelopment()); err != nil {
		return err
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.Auth.AccessTokenTTL >= c.Auth.RefreshTokenTTL {
		return fmt.Errorf("access token TTL (%s) must be shorter than refresh token TTL (%s)",
			c.Auth.AccessTokenTTL, c.Auth.RefreshTokenTTL)
	}
	if c.Revocation.ConnectAttempts <= 0 {
		return errors.New("REVOCATION_CONNECT_ATTEMPTS must be positive")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// IsDevelopment reports whether the service runs in a development environment.
func (a AppConfig) IsDevelopment() bool {
	switch strings.ToLower(a.Env) {
	case "development", "dev", "local", "test":
		return true
	default:
		return false
	}
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvAsDuration parses Go durations ("15m", "720h"); a malformed value is an error
// because token lifetimes must never silently fall back.
func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func mustDuration(key string, fallback time.Duration) time.Duration {
	parsed, err := getEnvAsDuration(key, fallback)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
