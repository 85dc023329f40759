package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты оформления заказа для метки result.
const (
	ResultPlaced            = "placed"
	ResultCustomerNotFound  = "customer_not_found"
	ResultProductNotFound   = "product_not_found"
	ResultInsufficientStock = "insufficient_stock"
	ResultError             = "error"
)

// PlacementMetrics содержит метрики оформления заказов.
type PlacementMetrics struct {
	// Счётчик попыток по результату
	placements *prometheus.CounterVec

	// Время выполнения и размер заказа
	duration prometheus.Histogram
	lines    prometheus.Histogram

	// Неудачные публикации событий
	eventsFailed prometheus.Counter
}

// NewPlacementMetrics создаёт метрики в реестре по умолчанию.
func NewPlacementMetrics() *PlacementMetrics {
	return NewPlacementMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewPlacementMetricsWithRegisterer создаёт метрики в указанном реестре.
func NewPlacementMetricsWithRegisterer(registerer prometheus.Registerer) *PlacementMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &PlacementMetrics{
		placements: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "ordercore_placements_total",
			Help: "Total number of order placement attempts grouped by result",
		}, []string{"result"}),
		duration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "ordercore_placement_duration_seconds",
			Help:    "Duration of order placement in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		lines: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "ordercore_placement_lines",
			Help:    "Number of line items in successfully placed orders",
			Buckets: []float64{1, 2, 3, 5, 10, 20, 50},
		}),
		eventsFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ordercore_order_events_failed_total",
			Help: "Total number of order events that failed to publish",
		}),
	}

	for _, result := range []string{ResultPlaced, ResultCustomerNotFound, ResultProductNotFound, ResultInsufficientStock, ResultError} {
		m.placements.WithLabelValues(result)
	}

	return m
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordResult увеличивает счётчик попыток с указанным результатом.
func (m *PlacementMetrics) RecordResult(result string) {
	m.placements.WithLabelValues(result).Inc()
}

// RecordDuration записывает время оформления.
func (m *PlacementMetrics) RecordDuration(duration time.Duration) {
	m.duration.Observe(duration.Seconds())
}

// RecordLines записывает количество позиций оформленного заказа.
func (m *PlacementMetrics) RecordLines(n int) {
	m.lines.Observe(float64(n))
}

// RecordEventFailed увеличивает счётчик неудачных публикаций.
func (m *PlacementMetrics) RecordEventFailed() {
	m.eventsFailed.Inc()
}
