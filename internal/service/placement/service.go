package placement

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
	"github.com/vladislavdragonenkov/ordercore/internal/metrics"
)

const tracerName = "github.com/vladislavdragonenkov/ordercore/internal/service/placement"

// Options задаёт необязательные зависимости сервиса.
type Options struct {
	Logger    *log.Entry
	Metrics   *metrics.PlacementMetrics
	Publisher domain.OrderEventPublisher
	Tracer    trace.Tracer
}

// Option настраивает Service.
type Option func(*Options)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithMetrics включает prometheus-метрики.
func WithMetrics(m *metrics.PlacementMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithPublisher задаёт publisher события order.placed.
func WithPublisher(publisher domain.OrderEventPublisher) Option {
	return func(opts *Options) {
		opts.Publisher = publisher
	}
}

// WithTracer задаёт tracer вместо глобального.
func WithTracer(tracer trace.Tracer) Option {
	return func(opts *Options) {
		opts.Tracer = tracer
	}
}

// Service оформляет заказ: проверяет клиента и остатки, фиксирует цены,
// списывает остатки и сохраняет заказ.
//
// Чтение остатков и запись новых значений не защищены блокировкой или версией.
// Два параллельных вызова по одному товару могут прочитать одинаковый остаток,
// оба пройти проверку и записать значения от одной базы (lost update, перепродажа).
//
// Если товар повторяется в нескольких строках, остаток сверяется с суммой
// количеств по всем его строкам, а не с каждой строкой по отдельности. Построчная
// проверка пропускала бы запрос [{P1,3},{P1,3}] при остатке 5.
type Service struct {
	customers domain.CustomerDirectory
	catalog   domain.ProductCatalog
	orders    domain.OrderStore
	publisher domain.OrderEventPublisher
	logger    *log.Entry
	metrics   *metrics.PlacementMetrics
	tracer    trace.Tracer
}

// NewService создаёт сервис оформления заказов.
func NewService(
	customers domain.CustomerDirectory,
	catalog domain.ProductCatalog,
	orders domain.OrderStore,
	options ...Option,
) *Service {
	var opts Options
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New().WithField("component", "placement")
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Service{
		customers: customers,
		catalog:   catalog,
		orders:    orders,
		publisher: opts.Publisher,
		logger:    logger,
		metrics:   opts.Metrics,
		tracer:    tracer,
	}
}

// Place оформляет заказ. Отказы возвращаются как ErrCustomerNotFound,
// ErrProductNotFound или ErrInsufficientStock; ошибки хранилищ возвращаются без обёртки.
func (s *Service) Place(ctx context.Context, req domain.OrderRequest) (order domain.Order, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "placement.Place", trace.WithAttributes(
		attribute.String("customer_id", req.CustomerID),
		attribute.Int("lines", len(req.Products)),
	))
	defer func() {
		s.finish(span, start, order, err)
	}()

	customer, err := s.customers.FindByID(ctx, req.CustomerID)
	if err != nil {
		if errors.Is(err, domain.ErrCustomerNotFound) {
			return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrCustomerNotFound, req.CustomerID)
		}
		return domain.Order{}, err
	}

	entries, err := s.catalog.FindAllByID(ctx, req.ProductIDs())
	if err != nil {
		return domain.Order{}, err
	}

	adjustments, lines, err := price(req.Products, entries)
	if err != nil {
		return domain.Order{}, err
	}

	if err := s.catalog.UpdateQuantity(ctx, adjustments); err != nil {
		return domain.Order{}, err
	}

	order, err = s.orders.Create(ctx, domain.NewOrder{
		Customer: customer,
		Products: lines,
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.publish(order)
	return order, nil
}

// price проверяет строки запроса по снимку каталога и строит список новых
// остатков и позиции с ценами. Ничего не пишет.
// Повторяющиеся товары проверяются по суммарному количеству в int64; на каждый
// уникальный товар приходится ровно одна корректировка.
func price(requested []domain.RequestedProduct, entries []domain.CatalogEntry) ([]domain.QuantityAdjustment, []domain.PricedLineItem, error) {
	byID := make(map[string]domain.CatalogEntry, len(entries))
	for _, entry := range entries {
		byID[entry.ID] = entry
	}

	reserved := make(map[string]int64, len(requested))
	order := make([]string, 0, len(requested))
	lines := make([]domain.PricedLineItem, 0, len(requested))

	for _, p := range requested {
		entry, ok := byID[p.ID]
		if !ok {
			return nil, nil, &domain.ProductError{Err: domain.ErrProductNotFound, ProductID: p.ID}
		}

		if _, seen := reserved[p.ID]; !seen {
			order = append(order, p.ID)
		}
		total := reserved[p.ID] + int64(p.Quantity)
		if total > int64(entry.Quantity) {
			return nil, nil, &domain.ProductError{
				Err:       domain.ErrInsufficientStock,
				ProductID: p.ID,
				Requested: total,
				Available: entry.Quantity,
			}
		}
		reserved[p.ID] = total

		lines = append(lines, domain.PricedLineItem{
			ProductID: p.ID,
			Quantity:  p.Quantity,
			Price:     entry.Price,
		})
	}

	adjustments := make([]domain.QuantityAdjustment, 0, len(order))
	for _, id := range order {
		adjustments = append(adjustments, domain.QuantityAdjustment{
			ID:       id,
			Quantity: int32(int64(byID[id].Quantity) - reserved[id]),
		})
	}

	return adjustments, lines, nil
}

func (s *Service) publish(order domain.Order) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishOrderPlaced(order); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to publish order placed event")
		if s.metrics != nil {
			s.metrics.RecordEventFailed()
		}
	}
}

func (s *Service) finish(span trace.Span, start time.Time, order domain.Order, err error) {
	defer span.End()

	result := resultOf(err)
	if s.metrics != nil {
		s.metrics.RecordResult(result)
		s.metrics.RecordDuration(time.Since(start))
		if err == nil {
			s.metrics.RecordLines(len(order.Products))
		}
	}
	span.SetAttributes(attribute.String("result", result))

	switch {
	case err == nil:
		span.SetAttributes(attribute.String("order_id", order.ID))
		s.logger.WithFields(log.Fields{
			"order_id":    order.ID,
			"customer_id": order.Customer.ID,
			"lines":       len(order.Products),
		}).Info("order placed")
	case domain.IsRejection(err):
		span.SetStatus(codes.Error, result)
		s.logger.WithError(err).Info("order rejected")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.WithError(err).Error("order placement failed")
	}
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultPlaced
	case errors.Is(err, domain.ErrCustomerNotFound):
		return metrics.ResultCustomerNotFound
	case errors.Is(err, domain.ErrProductNotFound):
		return metrics.ResultProductNotFound
	case errors.Is(err, domain.ErrInsufficientStock):
		return metrics.ResultInsufficientStock
	default:
		return metrics.ResultError
	}
}
