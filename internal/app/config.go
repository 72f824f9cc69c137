package app

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v6"
)

// Драйверы серверного хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Драйверы хранилища сессии клиента.
const (
	SessionDriverFile   = "file"
	SessionDriverMemory = "memory"
	SessionDriverRedis  = "redis"
)

// Config — настройки mock Orders Gateway (cmd/minicrm-api).
type Config struct {
	APIAddr                    string        `env:"MINICRM_API_ADDR"`
	MetricsAddr                string        `env:"MINICRM_METRICS_ADDR"`
	StorageDriver              string        `env:"MINICRM_STORAGE_DRIVER"`
	PostgresDSN                string        `env:"MINICRM_POSTGRES_DSN"`
	PostgresAutoMigrate        bool          `env:"MINICRM_POSTGRES_AUTO_MIGRATE"`
	JWTSecret                  string        `env:"MINICRM_JWT_SECRET"`
	TokenTTL                   time.Duration `env:"MINICRM_TOKEN_TTL"`
	APIDelay                   time.Duration `env:"MINICRM_API_DELAY"`
	KafkaBrokers               []string      `env:"MINICRM_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic                 string        `env:"MINICRM_KAFKA_TOPIC"`
	JaegerEndpoint             string        `env:"MINICRM_JAEGER_ENDPOINT"`
	IdempotencyTTL             time.Duration `env:"MINICRM_IDEMPOTENCY_TTL"`
	IdempotencyCleanupInterval time.Duration `env:"MINICRM_IDEMPOTENCY_CLEANUP_INTERVAL"`
	ShutdownTimeout            time.Duration `env:"MINICRM_SHUTDOWN_TIMEOUT"`
}

// DefaultConfig возвращает настройки для локального запуска без внешних сервисов.
func DefaultConfig() Config {
	return Config{
		APIAddr:                    ":3000",
		MetricsAddr:                ":9090",
		StorageDriver:              StorageDriverMemory,
		PostgresAutoMigrate:        true,
		JWTSecret:                  "minicrm-dev-secret",
		TokenTTL:                   24 * time.Hour,
		KafkaTopic:                 "minicrm.order.events",
		IdempotencyTTL:             24 * time.Hour,
		IdempotencyCleanupInterval: time.Minute,
		ShutdownTimeout:            5 * time.Second,
	}
}

// LoadConfig накладывает переменные окружения на DefaultConfig.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error
	if c.APIAddr == "" {
		errs = append(errs, errors.New("MINICRM_API_ADDR is empty"))
	}
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("MINICRM_POSTGRES_DSN is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.StorageDriver))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("MINICRM_JWT_SECRET is empty"))
	}
	if c.APIDelay < 0 {
		errs = append(errs, errors.New("MINICRM_API_DELAY must not be negative"))
	}
	return errors.Join(errs...)
}

// ClientConfig — настройки консольного клиента (cmd/minicrm).
type ClientConfig struct {
	APIURL        string        `env:"MINICRM_API_URL"`
	SessionDriver string        `env:"MINICRM_SESSION_DRIVER"`
	SessionFile   string        `env:"MINICRM_SESSION_FILE"`
	RedisAddr     string        `env:"MINICRM_REDIS_ADDR"`
	RedisPrefix   string        `env:"MINICRM_REDIS_PREFIX"`
	HTTPTimeout   time.Duration `env:"MINICRM_HTTP_TIMEOUT"`
	LogFile       string        `env:"MINICRM_LOG_FILE"`
}

// DefaultClientConfig хранит сессию в ~/.config/minicrm/session.json.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		APIURL:        "http://localhost:3000",
		SessionDriver: SessionDriverFile,
		SessionFile:   defaultSessionFile(),
		RedisAddr:     "localhost:6379",
		RedisPrefix:   "minicrm:session:",
		HTTPTimeout:   10 * time.Second,
	}
}

// LoadClientConfig накладывает переменные окружения на DefaultClientConfig.
func LoadClientConfig() (ClientConfig, error) {
	cfg := DefaultClientConfig()
	if err := env.Parse(&cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate проверяет адрес сервера и драйвер сессии.
func (c ClientConfig) Validate() error {
	var errs []error
	if u, err := url.Parse(c.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("MINICRM_API_URL %q is not an absolute URL", c.APIURL))
	}
	switch c.SessionDriver {
	case SessionDriverMemory:
	case SessionDriverFile:
		if c.SessionFile == "" {
			errs = append(errs, errors.New("MINICRM_SESSION_FILE is empty"))
		}
	case SessionDriverRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("MINICRM_REDIS_ADDR is empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown session driver %q", c.SessionDriver))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("MINICRM_HTTP_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "minicrm", "session.json")
}
