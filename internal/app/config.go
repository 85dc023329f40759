package app

import (
	"errors"
	"fmt"
	"time"
)

// StorageDriver выбирает реализацию хранилищ.
type StorageDriver string

const (
	StorageDriverMemory   StorageDriver = "memory"
	StorageDriverPostgres StorageDriver = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       StorageDriver
	PostgresDSN         string
	PostgresAutoMigrate bool
	// SeedFile JSON с клиентами и товарами, загружается при старте.
	SeedFile string

	RedisAddr        string
	CustomerCacheTTL time.Duration

	KafkaBrokers []string
	KafkaTopic   string
	// Повторная публикация событий, не ушедших в Kafka сразу.
	EventRetryInterval time.Duration
	EventRetryAttempts int

	OTLPEndpoint     string
	Environment      string
	TraceSampleRatio float64

	ShutdownTimeout time.Duration
}

// DefaultConfig возвращает конфигурацию для локального запуска на in-memory хранилищах.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:            ":50051",
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		CustomerCacheTTL:    5 * time.Minute,
		EventRetryInterval:  5 * time.Second,
		EventRetryAttempts:  3,
		Environment:         "local",
		TraceSampleRatio:    1,
		ShutdownTimeout:     5 * time.Second,
	}
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error

	if c.GRPCAddr == "" {
		errs = append(errs, errors.New("grpc address is required"))
	}
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("postgres dsn is required for postgres storage driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}
	if c.CustomerCacheTTL < 0 {
		errs = append(errs, errors.New("customer cache ttl must be >= 0"))
	}
	if c.EventRetryInterval <= 0 {
		errs = append(errs, errors.New("event retry interval must be > 0"))
	}
	if c.EventRetryAttempts <= 0 {
		errs = append(errs, errors.New("event retry attempts must be > 0"))
	}
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		errs = append(errs, errors.New("trace sample ratio must be within [0, 1]"))
	}

	return errors.Join(errs...)
}
