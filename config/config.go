package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"

	"storefront-access-gate/shared"
)

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN returns the lib/pq connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig holds the change-feed Redis settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// TemporalConfig holds the Temporal client settings.
type TemporalConfig struct {
	HostPort  string
	Namespace string
}

// NotifyConfig selects how merchant notifications are delivered. An empty
// WebhookURL logs notifications instead.
type NotifyConfig struct {
	WebhookURL string
}

// LogConfig selects the zap level and encoding.
type LogConfig struct {
	Level  string
	Format string
}

// Config is the full process configuration.
type Config struct {
	Gate        shared.GateConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Temporal    TemporalConfig
	Log         LogConfig
	Notify      NotifyConfig
	MetricsAddr string
}

// Default returns a configuration suitable for local development.
func Default() *Config {
	return &Config{
		Gate: shared.DefaultGateConfig(),
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Database: "storefront",
			SSLMode:  "disable",
			MaxConns: 10,
			MaxIdle:  5,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Temporal: TemporalConfig{
			HostPort:  "localhost:7233",
			Namespace: "default",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		MetricsAddr: ":9464",
	}
}

// Load reads a .env file from the working directory when one exists and then
// applies environment overrides on top of the defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv applies GATE_, DB_, REDIS_, TEMPORAL_, LOG_, NOTIFY_ and METRICS_ variables.
func (c *Config) LoadFromEnv() error {
	e := &envReader{}

	e.duration("GATE_ONBOARDING_WINDOW", &c.Gate.OnboardingWindow)
	e.integer("GATE_WARNING_DAYS", &c.Gate.WarningDays)
	e.integer("GATE_TRIAL_DAYS", &c.Gate.TrialDays)
	e.duration("GATE_SESSION_TTL", &c.Gate.SessionTTL)
	e.integer("GATE_CATEGORY_THRESHOLD", &c.Gate.Thresholds.Categories)
	e.integer("GATE_PRODUCT_THRESHOLD", &c.Gate.Thresholds.Products)
	e.integer("GATE_VIEW_THRESHOLD", &c.Gate.Thresholds.Views)

	e.str("DB_HOST", &c.Database.Host)
	e.integer("DB_PORT", &c.Database.Port)
	e.str("DB_USER", &c.Database.User)
	e.str("DB_PASSWORD", &c.Database.Password)
	e.str("DB_DATABASE", &c.Database.Database)
	e.str("DB_SSLMODE", &c.Database.SSLMode)
	e.integer("DB_MAX_CONNS", &c.Database.MaxConns)
	e.integer("DB_MAX_IDLE", &c.Database.MaxIdle)

	e.str("REDIS_ADDR", &c.Redis.Addr)
	e.str("REDIS_PASSWORD", &c.Redis.Password)
	e.integer("REDIS_DB", &c.Redis.DB)

	e.str("TEMPORAL_HOST_PORT", &c.Temporal.HostPort)
	e.str("TEMPORAL_NAMESPACE", &c.Temporal.Namespace)

	e.str("LOG_LEVEL", &c.Log.Level)
	e.str("LOG_FORMAT", &c.Log.Format)

	e.str("NOTIFY_WEBHOOK_URL", &c.Notify.WebhookURL)
	e.str("METRICS_ADDR", &c.MetricsAddr)

	return e.err
}

// Validate rejects gate settings that would make every store resolve to locked.
func (c *Config) Validate() error {
	if c.Gate.OnboardingWindow <= 0 {
		return fmt.Errorf("GATE_ONBOARDING_WINDOW must be positive, got %s", c.Gate.OnboardingWindow)
	}
	if c.Gate.TrialDays <= 0 {
		return fmt.Errorf("GATE_TRIAL_DAYS must be positive, got %d", c.Gate.TrialDays)
	}
	if c.Gate.WarningDays < 0 {
		return fmt.Errorf("GATE_WARNING_DAYS must not be negative, got %d", c.Gate.WarningDays)
	}
	if c.Gate.SessionTTL <= 0 {
		return fmt.Errorf("GATE_SESSION_TTL must be positive, got %s", c.Gate.SessionTTL)
	}
	return nil
}

// envReader keeps the first parse error so LoadFromEnv reads as a flat list.
type envReader struct {
	err error
}

func (e *envReader) str(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" || e.err != nil {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.err = fmt.Errorf("invalid %s %q: %w", key, v, err)
		return
	}
	*dst = n
}

func (e *envReader) duration(key string, dst *time.Duration) {
	v := os.Getenv(key)
	if v == "" || e.err != nil {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.err = fmt.Errorf("invalid %s %q: %w", key, v, err)
		return
	}
	*dst = d
}

// ClientOptions returns Temporal client options for c that log through l.
func (c *TemporalConfig) ClientOptions(l log.Logger) client.Options {
	return client.Options{
		HostPort:  c.HostPort,
		Namespace: c.Namespace,
		Logger:    l,
	}
}
