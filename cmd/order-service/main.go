package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordercore/internal/app"
	"github.com/vladislavdragonenkov/ordercore/internal/version"
)

const (
	envGRPCAddr            = "ORDERCORE_GRPC_ADDR"
	envMetricsAddr         = "ORDERCORE_HTTP_ADDR"
	envStorageDriver       = "ORDERCORE_STORAGE_DRIVER"
	envPostgresDSN         = "ORDERCORE_POSTGRES_DSN"
	envPostgresAutoMigrate = "ORDERCORE_POSTGRES_AUTO_MIGRATE"
	envSeedFile            = "ORDERCORE_SEED_FILE"
	envRedisAddr           = "ORDERCORE_REDIS_ADDR"
	envCustomerCacheTTL    = "ORDERCORE_CUSTOMER_CACHE_TTL"
	envKafkaBrokers        = "ORDERCORE_KAFKA_BROKERS"
	envKafkaTopic          = "ORDERCORE_KAFKA_TOPIC"
	envEventRetryInterval  = "ORDERCORE_EVENT_RETRY_INTERVAL"
	envEventRetryAttempts  = "ORDERCORE_EVENT_RETRY_ATTEMPTS"
	envOTLPEndpoint        = "ORDERCORE_OTLP_ENDPOINT"
	envEnvironment         = "ORDERCORE_ENVIRONMENT"
	envTraceSampleRatio    = "ORDERCORE_TRACE_SAMPLE_RATIO"
	envShutdownTimeout     = "ORDERCORE_SHUTDOWN_TIMEOUT"
	envLogLevel            = "ORDERCORE_LOG_LEVEL"
	envLogFormat           = "ORDERCORE_LOG_FORMAT"
)

type envLookup func(string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(lookup envLookup) []string {
	var warnings []string

	if format, ok := lookupTrimmed(lookup, envLogFormat); ok && strings.EqualFold(format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	log.SetLevel(log.InfoLevel)
	if raw, ok := lookupTrimmed(lookup, envLogLevel); ok {
		level, err := log.ParseLevel(raw)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", envLogLevel, err))
		} else {
			log.SetLevel(level)
		}
	}
	return warnings
}

// readConfigFromEnv накладывает переменные окружения на конфигурацию по умолчанию.
// Некорректные значения не останавливают запуск: остаётся значение по умолчанию и пишется предупреждение.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	warn := func(key string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s: %v", key, err))
	}

	if v, ok := lookupTrimmed(lookup, envGRPCAddr); ok {
		cfg.GRPCAddr = v
	}
	if v, ok := lookup(envMetricsAddr); ok {
		cfg.MetricsAddr = strings.TrimSpace(v)
	}
	if v, ok := lookupTrimmed(lookup, envStorageDriver); ok {
		cfg.StorageDriver = app.StorageDriver(strings.ToLower(v))
	}
	if v, ok := lookupTrimmed(lookup, envPostgresDSN); ok {
		cfg.PostgresDSN = v
	}
	if v, ok := lookupTrimmed(lookup, envPostgresAutoMigrate); ok {
		parsed, err := parseBool(v)
		if err != nil {
			warn(envPostgresAutoMigrate, err)
		} else {
			cfg.PostgresAutoMigrate = parsed
		}
	}
	if v, ok := lookupTrimmed(lookup, envSeedFile); ok {
		cfg.SeedFile = v
	}
	if v, ok := lookupTrimmed(lookup, envRedisAddr); ok {
		cfg.RedisAddr = v
	}
	if v, ok := lookupTrimmed(lookup, envCustomerCacheTTL); ok {
		parsed, err := parseDuration(v, func(d time.Duration) bool { return d > 0 }, "must be > 0")
		if err != nil {
			warn(envCustomerCacheTTL, err)
		} else {
			cfg.CustomerCacheTTL = parsed
		}
	}
	if v, ok := lookupTrimmed(lookup, envKafkaBrokers); ok {
		cfg.KafkaBrokers = splitList(v)
	}
	if v, ok := lookupTrimmed(lookup, envKafkaTopic); ok {
		cfg.KafkaTopic = v
	}
	if v, ok := lookupTrimmed(lookup, envEventRetryInterval); ok {
		parsed, err := parseDuration(v, func(d time.Duration) bool { return d > 0 }, "must be > 0")
		if err != nil {
			warn(envEventRetryInterval, err)
		} else {
			cfg.EventRetryInterval = parsed
		}
	}
	if v, ok := lookupTrimmed(lookup, envEventRetryAttempts); ok {
		parsed, err := strconv.Atoi(v)
		switch {
		case err != nil:
			warn(envEventRetryAttempts, err)
		case parsed <= 0:
			warn(envEventRetryAttempts, fmt.Errorf("%d must be > 0", parsed))
		default:
			cfg.EventRetryAttempts = parsed
		}
	}
	if v, ok := lookupTrimmed(lookup, envOTLPEndpoint); ok {
		cfg.OTLPEndpoint = v
	}
	if v, ok := lookupTrimmed(lookup, envEnvironment); ok {
		cfg.Environment = v
	}
	if v, ok := lookupTrimmed(lookup, envTraceSampleRatio); ok {
		parsed, err := parseFloat(v, func(f float64) bool { return f >= 0 && f <= 1 }, "must be within [0, 1]")
		if err != nil {
			warn(envTraceSampleRatio, err)
		} else {
			cfg.TraceSampleRatio = parsed
		}
	}
	if v, ok := lookupTrimmed(lookup, envShutdownTimeout); ok {
		parsed, err := parseDuration(v, func(d time.Duration) bool { return d > 0 }, "must be > 0")
		if err != nil {
			warn(envShutdownTimeout, err)
		} else {
			cfg.ShutdownTimeout = parsed
		}
	}

	return cfg, warnings
}

func lookupTrimmed(lookup envLookup, key string) (string, bool) {
	v, ok := lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", raw)
	}
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if !valid(d) {
		return 0, fmt.Errorf("%s %s", d, rule)
	}
	return d, nil
}

func parseFloat(raw string, valid func(float64) bool, rule string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if !valid(f) {
		return 0, fmt.Errorf("%v %s", f, rule)
	}
	return f, nil
}

func main() {
	logWarnings := setupLogger(os.LookupEnv)
	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, w := range append(logWarnings, warnings...) {
		log.WithField("warning", w).Warn("invalid environment value, using default")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"grpc_addr":      cfg.GRPCAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
		"redis":          cfg.RedisAddr != "",
		"kafka":          len(cfg.KafkaBrokers) > 0,
		"tracing":        cfg.OTLPEndpoint != "",
		"version":        version.String(),
	}).Info("запускаем order-service")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("order-service остановлен")
}
