package app

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/ordercore/internal/health"
	"github.com/vladislavdragonenkov/ordercore/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/ordercore/internal/metrics"
	"github.com/vladislavdragonenkov/ordercore/internal/service/outbox"
	"github.com/vladislavdragonenkov/ordercore/internal/storage/memory"
	"github.com/vladislavdragonenkov/ordercore/internal/storage/postgres"
	"github.com/vladislavdragonenkov/ordercore/internal/storage/rediscache"
)

type healthComponent struct {
	name     string
	check    healthcheck.CheckFunc
	critical bool
}

// runtimeDependencies коллабораторы оформления заказа и ресурсы, которые надо закрыть.
type runtimeDependencies struct {
	customers domain.CustomerDirectory
	catalog   domain.ProductCatalog
	orders    domain.OrderStore
	reader    domain.OrderReader
	publisher domain.OrderEventPublisher
	// eventQueue хранилище отложенных событий того же драйвера, что и заказы.
	eventQueue domain.EventOutbox
	// outboxWorker повторно публикует отложенные события; nil без Kafka.
	outboxWorker *outbox.Worker

	checks  []healthComponent
	closers []func() error
}

// close освобождает ресурсы в обратном порядке.
func (d *runtimeDependencies) close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

// initRuntimeDependencies собирает хранилища, кэш клиентов и паблишер событий по конфигурации.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	var seed *memory.Seed
	if cfg.SeedFile != "" {
		loaded, err := memory.LoadSeedFile(cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		seed = &loaded
	}

	deps := &runtimeDependencies{}

	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		initMemoryStorage(deps, seed)
		logger.Info("using in-memory storage")
	case StorageDriverPostgres:
		if err := initPostgresStorage(ctx, deps, cfg, seed, logger); err != nil {
			_ = deps.close()
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	if cfg.RedisAddr != "" {
		initCustomerCache(ctx, deps, cfg, logger)
	}

	producer, err := initKafkaProducer(cfg.KafkaBrokers, logger)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without order events")
	}
	if producer != nil {
		initOrderEvents(deps, cfg, producer, logger)
	}

	return deps, nil
}

// initOrderEvents подключает публикацию order.placed: прямую отправку в Kafka,
// очередь для неудачных отправок и воркер повторной публикации с DLQ.
func initOrderEvents(deps *runtimeDependencies, cfg Config, producer *kafka.Producer, logger *log.Entry) {
	orderPublisher := kafka.NewOrderPublisher(producer, cfg.KafkaTopic)
	outboxMetrics := metrics.NewOutboxMetrics()
	queue := deps.eventQueue
	if queue == nil {
		queue = memory.NewEventOutbox()
	}
	outboxLogger := logger.WithField("layer", "outbox")

	deps.publisher = outbox.NewDeferringPublisher(orderPublisher, queue, outboxLogger, outboxMetrics)
	deps.outboxWorker = outbox.NewWorker(queue, orderPublisher,
		outbox.WithLogger(outboxLogger),
		outbox.WithMetrics(outboxMetrics),
		outbox.WithDeadLetter(orderPublisher),
		outbox.WithPollInterval(cfg.EventRetryInterval),
		outbox.WithMaxAttempts(cfg.EventRetryAttempts),
	)
	deps.closers = append(deps.closers, func() error {
		closeKafka(producer, logger)
		return nil
	})
}

func initMemoryStorage(deps *runtimeDependencies, seed *memory.Seed) {
	customers := memory.NewCustomerDirectory()
	catalog := memory.NewProductCatalog()
	orders := memory.NewOrderStore()
	if seed != nil {
		seed.Apply(customers, catalog)
	}

	deps.customers = customers
	deps.catalog = catalog
	deps.orders = orders
	deps.reader = orders
	deps.eventQueue = memory.NewEventOutbox()
}

func initPostgresStorage(ctx context.Context, deps *runtimeDependencies, cfg Config, seed *memory.Seed, logger *log.Entry) error {
	if cfg.PostgresDSN == "" {
		return errors.New("postgres dsn is required for postgres storage driver")
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	deps.closers = append(deps.closers, store.Close)

	if cfg.PostgresAutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("apply postgres migrations: %w", err)
		}
	}

	customers := postgres.NewCustomerDirectory(store)
	catalog := postgres.NewProductCatalog(store)
	orders := postgres.NewOrderStore(store)

	if seed != nil {
		if err := seedPostgres(ctx, *seed, customers, catalog); err != nil {
			return err
		}
		logger.WithFields(log.Fields{
			"customers": len(seed.Customers),
			"products":  len(seed.Products),
		}).Info("seed applied to postgres")
	}

	deps.customers = customers
	deps.catalog = catalog
	deps.orders = orders
	deps.reader = orders
	deps.eventQueue = postgres.NewEventOutbox(store)
	deps.checks = append(deps.checks, healthComponent{name: "postgres", check: store.Ping, critical: true})

	logger.Info("using postgres storage")
	return nil
}

func seedPostgres(ctx context.Context, seed memory.Seed, customers *postgres.CustomerDirectory, catalog *postgres.ProductCatalog) error {
	for _, c := range seed.Customers {
		if err := customers.Upsert(ctx, domain.Customer{ID: c.ID, Name: c.Name, Email: c.Email}); err != nil {
			return err
		}
	}
	for _, p := range seed.Products {
		entry := domain.CatalogEntry{ID: p.ID, Price: p.Price, Quantity: p.Quantity}
		if err := catalog.Upsert(ctx, p.Name, entry); err != nil {
			return err
		}
	}
	return nil
}

// initCustomerCache ставит redis-кэш перед справочником клиентов. Недоступный
// redis не мешает старту: кэш сам уходит в исходный справочник при ошибках.
func initCustomerCache(ctx context.Context, deps *runtimeDependencies, cfg Config, logger *log.Entry) {
	client := rediscache.NewClient(cfg.RedisAddr)
	cache := rediscache.NewRedisCache(client, "ordercore")

	if err := cache.Ping(ctx); err != nil {
		logger.WithError(err).WithField("addr", cfg.RedisAddr).Warn("redis is not reachable, customer cache will fall back to storage")
	}

	deps.customers = rediscache.NewCustomerDirectory(
		deps.customers,
		cache,
		cfg.CustomerCacheTTL,
		logger.WithField("layer", "customer-cache"),
	)
	deps.checks = append(deps.checks, healthComponent{name: "redis", check: cache.Ping, critical: false})
	deps.closers = append(deps.closers, client.Close)

	logger.WithField("addr", cfg.RedisAddr).Info("customer cache enabled")
}
