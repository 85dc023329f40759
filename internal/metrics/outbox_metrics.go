package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты попыток повторной публикации для метки result.
const (
	OutboxSent       = "sent"
	OutboxRetryError = "retry_error"
	OutboxFailed     = "failed"
	OutboxDLQFailed  = "dlq_failed"
	OutboxDeferred   = "deferred"
)

// OutboxMetrics содержит метрики очереди отложенных событий.
type OutboxMetrics struct {
	attempts *prometheus.CounterVec

	// Состояние очереди
	pending       prometheus.Gauge
	oldestPending prometheus.Gauge
}

// NewOutboxMetrics создаёт метрики в реестре по умолчанию.
func NewOutboxMetrics() *OutboxMetrics {
	return NewOutboxMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOutboxMetricsWithRegisterer создаёт метрики в указанном реестре.
func NewOutboxMetricsWithRegisterer(registerer prometheus.Registerer) *OutboxMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &OutboxMetrics{
		attempts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "ordercore_outbox_publish_attempts_total",
			Help: "Total number of deferred order event publish attempts grouped by result",
		}, []string{"result"}),
		pending: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "ordercore_outbox_pending_events",
			Help: "Current number of order events waiting for redelivery",
		}),
		oldestPending: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "ordercore_outbox_oldest_pending_age_seconds",
			Help: "Age in seconds of the oldest order event waiting for redelivery",
		}),
	}

	for _, result := range []string{OutboxSent, OutboxRetryError, OutboxFailed, OutboxDLQFailed, OutboxDeferred} {
		m.attempts.WithLabelValues(result)
	}

	return m
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

// RecordAttempt увеличивает счётчик попыток с указанным результатом.
func (m *OutboxMetrics) RecordAttempt(result string) {
	m.attempts.WithLabelValues(result).Inc()
}

// SetBacklog обновляет размер очереди и возраст самого старого события.
// Нулевой oldest означает пустую очередь.
func (m *OutboxMetrics) SetBacklog(pending int, oldest time.Time) {
	m.pending.Set(float64(pending))
	if pending == 0 || oldest.IsZero() {
		m.oldestPending.Set(0)
		return
	}

	age := time.Since(oldest).Seconds()
	if age < 0 {
		age = 0
	}
	m.oldestPending.Set(age)
}
